// Package audit records an append-only trail of security-relevant events.
//
// An Entry is built once, either directly with New or with one of the family
// constructors (Authentication, Account, UserManagement, ...), and handed to
// a Recorder. The Recorder writes synchronously to a Store and never fails
// the caller: a rejected write is reported to the fallback slog logger.
//
// Credential-like keys in Metadata, OldValues and NewValues are redacted by
// New before the entry leaves the caller; see MaskSensitive.
//
// # Stores
//
//   - MemoryStore: in-process, queryable. Tests and tools.
//   - JSONWriterStore: newline-delimited JSON to any io.Writer. Write-only.
//   - RedisStore: a Redis stream, queryable by scanning newest first.
//   - PostgresStore: the audit_logs table through pgx.
//   - SQLiteStore: the audit_logs table through database/sql and go-sqlite3.
//   - KafkaStore: one message per entry on a topic. Write-only.
//   - BreakerStore: wraps any of the above with a circuit breaker.
//
// # What this package must NOT do
//
//   - expose update or delete on stored entries
//   - return store errors from Recorder.Record
//   - depend on the authentication engine
package audit
