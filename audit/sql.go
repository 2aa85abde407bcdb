package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sqlFilter builds the WHERE clause shared by the SQL stores. placeholder
// renders the n-th bind parameter ("$1" or "?"). Time bounds are bound as
// produced by timeArg so each driver gets its native representation.
type sqlFilter struct {
	placeholder func(n int) string
	timeArg     func(t time.Time) any
}

func (f sqlFilter) where(q Query, args []any) (string, []any) {
	var conditions []string
	bind := func(expr string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(expr, f.placeholder(len(args))))
	}

	if !q.Start.IsZero() {
		bind("occurred_at >= %s", f.timeArg(q.Start))
	}
	if !q.End.IsZero() {
		bind("occurred_at <= %s", f.timeArg(q.End))
	}
	if q.UserID != uuid.Nil {
		bind("actor_id = %s", q.UserID.String())
	}
	if len(q.Actions) > 0 {
		holders := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			args = append(args, a.String())
			holders[i] = f.placeholder(len(args))
		}
		conditions = append(conditions, "action IN ("+strings.Join(holders, ", ")+")")
	}
	if q.Severity != nil {
		bind("severity = %s", q.Severity.String())
	}
	if q.ResourceType != "" {
		bind("resource_type = %s", q.ResourceType)
	}
	if q.ResourceID != uuid.Nil {
		bind("resource_id = %s", q.ResourceID.String())
	}
	if q.IPAddress != "" {
		bind("ip_address = %s", q.IPAddress)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// rowColumns are the indexed columns written next to the JSON payload.
func rowColumns(e Entry) (actorID, resourceType, resourceID any) {
	if e.Actor != nil && e.Actor.ID != uuid.Nil {
		actorID = e.Actor.ID.String()
	}
	if e.Resource != nil {
		resourceType = e.Resource.Type
		if e.Resource.ID != uuid.Nil {
			resourceID = e.Resource.ID.String()
		}
	}
	return actorID, resourceType, resourceID
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func decodePayload(raw []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("audit: decode payload: %w", err)
	}
	return e, nil
}
