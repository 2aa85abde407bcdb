package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actor identifies who performed the action.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role,omitempty"`
}

// Resource identifies what the action affected.
type Resource struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// Entry is one recorded audit event. Entries are values: stores receive
// copies and never update or delete them.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Action      Action         `json:"action"`
	Severity    Severity       `json:"severity"`
	Actor       *Actor         `json:"actor,omitempty"`
	Resource    *Resource      `json:"resource,omitempty"`
	Description string         `json:"description"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	ServiceName string         `json:"service_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OldValues   map[string]any `json:"old_values,omitempty"`
	NewValues   map[string]any `json:"new_values,omitempty"`
}

// Options enumerates every field an entry can be built from. Only Action and
// Description are required.
type Options struct {
	Action      Action
	Severity    Severity
	Actor       *Actor
	Resource    *Resource
	Description string
	IPAddress   string
	UserAgent   string
	SessionID   string
	RequestID   string
	ServiceName string
	Metadata    map[string]any
	OldValues   map[string]any
	NewValues   map[string]any
	// Timestamp defaults to the current UTC time.
	Timestamp time.Time
}

// New builds an entry from opts with a fresh id. Metadata and change
// snapshots are copied and masked; opts can be reused afterwards.
func New(opts Options) Entry {
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	e := Entry{
		ID:          uuid.New(),
		Timestamp:   ts.UTC(),
		Action:      opts.Action,
		Severity:    opts.Severity,
		Description: opts.Description,
		IPAddress:   opts.IPAddress,
		UserAgent:   opts.UserAgent,
		SessionID:   opts.SessionID,
		RequestID:   opts.RequestID,
		ServiceName: opts.ServiceName,
		Metadata:    MaskSensitive(opts.Metadata),
		OldValues:   MaskSensitive(opts.OldValues),
		NewValues:   MaskSensitive(opts.NewValues),
	}
	if opts.Actor != nil {
		actor := *opts.Actor
		e.Actor = &actor
	}
	if opts.Resource != nil {
		resource := *opts.Resource
		e.Resource = &resource
	}
	return e
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	if e.Actor != nil {
		actor := *e.Actor
		out.Actor = &actor
	}
	if e.Resource != nil {
		resource := *e.Resource
		out.Resource = &resource
	}
	out.Metadata = cloneMap(e.Metadata)
	out.OldValues = cloneMap(e.OldValues)
	out.NewValues = cloneMap(e.NewValues)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Summary is the list view of an entry.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	UserEmail    string    `json:"user_email,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// Summary projects e to its list view.
func (e Entry) Summary() Summary {
	s := Summary{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		Action:      e.Action,
		Severity:    e.Severity,
		Description: e.Description,
		IPAddress:   e.IPAddress,
	}
	if e.Actor != nil {
		s.UserEmail = e.Actor.Email
	}
	if e.Resource != nil {
		s.ResourceType = e.Resource.Type
	}
	return s
}
