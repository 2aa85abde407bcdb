// Package userstore provides a PostgreSQL medauth.UserStore on pgx.
//
// Lookups with no row return medauth.ErrUserNotFound and a duplicate email
// returns medauth.ErrUserExists, so the engine's error mapping applies
// unchanged. Emails are stored exactly as the engine passes them (already
// normalized).
package userstore
