package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresSchema creates the audit table. The table has no UPDATE or DELETE
// path in this package.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id            UUID PRIMARY KEY,
	occurred_at   TIMESTAMPTZ NOT NULL,
	action        TEXT NOT NULL,
	severity      TEXT NOT NULL,
	actor_id      UUID,
	resource_type TEXT,
	resource_id   UUID,
	ip_address    TEXT,
	payload       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_logs_occurred_at_idx ON audit_logs (occurred_at DESC);
CREATE INDEX IF NOT EXISTS audit_logs_actor_idx ON audit_logs (actor_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS audit_logs_resource_idx ON audit_logs (resource_type, resource_id, occurred_at DESC);
`

// PgxConn is the subset of *pgxpool.Pool the store uses.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists entries to the audit_logs table.
type PostgresStore struct {
	db     PgxConn
	filter sqlFilter
}

func NewPostgresStore(db PgxConn) *PostgresStore {
	return &PostgresStore{
		db: db,
		filter: sqlFilter{
			placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
			timeArg:     func(t time.Time) any { return t.UTC() },
		},
	}
}

// Migrate creates the table and indexes when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}

	actorID, resourceType, resourceID := rowColumns(e)
	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (id, occurred_at, action, severity, actor_id, resource_type, resource_id, ip_address, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID.String(), e.Timestamp.UTC(), e.Action.String(), e.Severity.String(),
		actorID, resourceType, resourceID, nullableString(e.IPAddress), payload,
	)
	if err != nil {
		return fmt.Errorf("%w: insert audit log: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Entry, error) {
	q = q.Normalized()

	where, args := s.filter.where(q, nil)
	args = append(args, q.Limit, q.Offset)
	sql := fmt.Sprintf(
		"SELECT payload FROM audit_logs %s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args),
	)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit logs: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("audit: scan audit log: %w", err)
		}
		e, err := decodePayload(raw)
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
