package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Recorder writes entries to a Store synchronously. A failed write is logged
// to the fallback logger and never returned to the caller.
type Recorder struct {
	store     Store
	logger    *slog.Logger
	onFailure func(error)
	onRecord  func(Entry)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the fallback logger for failed writes.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFailureHook registers fn to run after a failed write.
func WithFailureHook(fn func(error)) Option {
	return func(r *Recorder) { r.onFailure = fn }
}

// WithRecordHook registers fn to run after a successful write.
func WithRecordHook(fn func(Entry)) Option {
	return func(r *Recorder) { r.onRecord = fn }
}

// NewRecorder returns a recorder writing to store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends entry, filling empty network fields from the request info
// on ctx. It returns once the store has acknowledged or failed.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil {
		return
	}

	entry = entry.Clone()
	stampRequestInfo(ctx, &entry)

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "audit write failed",
			slog.String("audit_id", entry.ID.String()),
			slog.String("action", entry.Action.String()),
			slog.String("severity", entry.Severity.String()),
			slog.String("description", entry.Description),
			slog.Any("error", err),
		)
		if r.onFailure != nil {
			r.onFailure(err)
		}
		return
	}

	if r.onRecord != nil {
		r.onRecord(entry)
	}
}

// Query returns stored entries matching q, newest first.
func (r *Recorder) Query(ctx context.Context, q Query) ([]Entry, error) {
	return r.store.Query(ctx, q.Normalized())
}

// UserActivity returns the most recent entries performed by userID.
func (r *Recorder) UserActivity(ctx context.Context, userID uuid.UUID, limit int) ([]Entry, error) {
	return r.Query(ctx, Query{UserID: userID, Limit: limit})
}

// ResourceActivity returns the most recent entries affecting one resource.
func (r *Recorder) ResourceActivity(ctx context.Context, resourceType string, resourceID uuid.UUID, limit int) ([]Entry, error) {
	return r.Query(ctx, Query{ResourceType: resourceType, ResourceID: resourceID, Limit: limit})
}

// SecurityLogs returns the most recent entries whose action is one of
// SecurityActions.
func (r *Recorder) SecurityLogs(ctx context.Context, limit, offset int) ([]Entry, error) {
	return r.Query(ctx, Query{Actions: SecurityActions, Limit: limit, Offset: offset})
}
