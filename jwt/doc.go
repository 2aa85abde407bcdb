// Package jwt issues and validates the HS256 tokens of the authentication
// core: login access/refresh pairs and single-purpose password-reset tokens.
//
// # Claim shapes
//
// Login tokens carry {sub, email, role, exp, iat}. Reset tokens carry
// {sub, type:"password_reset", exp, iat}. Each validator rejects the other
// shape, so a login token can never be replayed as a reset token and a reset
// token can never authenticate a request.
//
// # Architecture boundaries
//
// [Manager] is immutable after [NewManager] and performs no I/O. The signing
// secret is checked by [ValidateSigningSecret] before any token can be issued.
// Validation errors wrap [ErrTokenInvalid] with the library detail for logs;
// callers present a generic message outward.
//
// # What this package must NOT do
//
//   - Keep server-side token state (there is no revocation list).
//   - Accept any algorithm other than HS256.
//   - Import the root medauth package.
package jwt
