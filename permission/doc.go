// Package permission resolves the capability set of each account role and
// answers resource-access questions for an acting identity.
//
// # Model
//
// Capabilities are strings of the form "resource:action" or
// "resource:action_own". Each of the four roles maps to exactly one fixed set
// ([DefaultRolePermissions]). At construction the names are registered into a
// frozen [Registry] and every role's set is compiled into a [Mask64], so
// membership tests are a single bit check and nothing can mutate the sets
// afterwards.
//
// # Access decision
//
// [Resolver.CanAccess] allows admins unconditionally, then a role-wide
// "resource:action", then "resource:action_own" only when the resource owner is
// the actor. An "_own" capability never grants access to another owner's
// resource.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Return errors from access checks; every failure is a deny.
//   - Import any other medauth package.
package permission
