// Package middleware adapts medauth.Engine to net/http.
//
// # Handlers
//
//   - [RequestInfo] stamps client IP, User-Agent and request id on the context.
//   - [Guard] authenticates the bearer token and injects verified claims.
//   - [RequirePermission] enforces one permission after Guard.
//   - [WriteError] renders medauth errors as JSON with the mapped status.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Make authorization decisions itself; Engine decides and audits.
//   - Expose internal error detail in responses.
package middleware
