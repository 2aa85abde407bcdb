package audit

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultQueryLimit applies when Query.Limit is zero.
	DefaultQueryLimit = 100
	// MaxQueryLimit caps Query.Limit.
	MaxQueryLimit = 1000
)

// SecurityActions are the actions returned by security log queries.
var SecurityActions = []Action{
	ActionUnauthorizedAccess,
	ActionSuspiciousActivity,
	ActionSecurityPolicyViolation,
	ActionLoginFailed,
}

// Query filters stored entries. Zero-valued fields do not filter. Results
// are ordered newest first.
type Query struct {
	Start        time.Time
	End          time.Time
	UserID       uuid.UUID
	Actions      []Action
	Severity     *Severity
	ResourceType string
	ResourceID   uuid.UUID
	IPAddress    string
	Limit        int
	Offset       int
}

// Normalized returns q with Limit and Offset clamped to usable values.
func (q Query) Normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit > MaxQueryLimit {
		q.Limit = MaxQueryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Matches reports whether e passes every filter of q. Limit and Offset are
// not considered.
func (q Query) Matches(e Entry) bool {
	if !q.Start.IsZero() && e.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.Timestamp.After(q.End) {
		return false
	}
	if q.UserID != uuid.Nil && (e.Actor == nil || e.Actor.ID != q.UserID) {
		return false
	}
	if len(q.Actions) > 0 && !slices.Contains(q.Actions, e.Action) {
		return false
	}
	if q.Severity != nil && e.Severity != *q.Severity {
		return false
	}
	if q.ResourceType != "" && (e.Resource == nil || e.Resource.Type != q.ResourceType) {
		return false
	}
	if q.ResourceID != uuid.Nil && (e.Resource == nil || e.Resource.ID != q.ResourceID) {
		return false
	}
	if q.IPAddress != "" && e.IPAddress != q.IPAddress {
		return false
	}
	return true
}

// page applies q's offset and limit to entries already ordered newest first.
func page(entries []Entry, q Query) []Entry {
	if q.Offset >= len(entries) {
		return []Entry{}
	}
	entries = entries[q.Offset:]
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return entries
}
