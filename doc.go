// Package medauth is the authentication, authorization and audit core of a
// medical record backend: Argon2id password hashing, stateless HS256 access
// and refresh tokens, fixed role permissions with owner checks, RFC 6238
// two-factor codes, and an append-only audit trail.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// medauth is the public surface. It exposes [Engine], [Builder], [Config],
// [Error] and the request/response value types. Accounts live behind the
// caller-supplied [UserStore]; audit entries go to an audit.Store chosen by
// the caller. Token, hashing, permission and audit mechanics live in the
// jwt, password, permission and audit sub-packages.
//
// # Failure contract
//
// Every rejected credential or token records exactly one LoginFailed entry
// at Warning severity before the error is returned. Login failures all read
// "Invalid email or password". Audit store failures are logged and counted
// and never fail the operation that produced the entry.
//
// # What this package must NOT do
//
//   - Return password hashes, two-factor secrets or token library errors to
//     callers.
//   - Keep token state. Logout is recorded in the audit trail only and a
//     token stays valid until it expires.
//   - Import any sub-package that re-imports medauth (no import cycles).
package medauth
