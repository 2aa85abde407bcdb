package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// sqliteTimeFormat is fixed width so lexical order equals time order.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteSchema creates the audit table for single-node deployments.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id            TEXT PRIMARY KEY,
	occurred_at   TEXT NOT NULL,
	action        TEXT NOT NULL,
	severity      TEXT NOT NULL,
	actor_id      TEXT,
	resource_type TEXT,
	resource_id   TEXT,
	ip_address    TEXT,
	payload       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_logs_occurred_at_idx ON audit_logs (occurred_at);
CREATE INDEX IF NOT EXISTS audit_logs_actor_idx ON audit_logs (actor_id);
`

// SQLiteStore persists entries through database/sql. Open the handle with
// the go-sqlite3 driver (`sql.Open("sqlite3", path)`).
type SQLiteStore struct {
	db     *sql.DB
	filter sqlFilter
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db: db,
		filter: sqlFilter{
			placeholder: func(int) string { return "?" },
			timeArg:     func(t time.Time) any { return t.UTC().Format(sqliteTimeFormat) },
		},
	}
}

// Migrate creates the table and indexes when missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}

	actorID, resourceType, resourceID := rowColumns(e)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, occurred_at, action, severity, actor_id, resource_type, resource_id, ip_address, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Timestamp.UTC().Format(sqliteTimeFormat), e.Action.String(), e.Severity.String(),
		actorID, resourceType, resourceID, nullableString(e.IPAddress), string(payload),
	)
	if err != nil {
		return fmt.Errorf("%w: insert audit log: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Entry, error) {
	q = q.Normalized()

	where, args := s.filter.where(q, nil)
	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf("SELECT payload FROM audit_logs %s ORDER BY occurred_at DESC LIMIT ? OFFSET ?", where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit logs: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("audit: scan audit log: %w", err)
		}
		e, err := decodePayload([]byte(raw))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate audit logs: %w", err)
	}
	return entries, nil
}
