// Package ratelimit counts requests in Redis fixed windows so the public
// auth endpoints can be throttled per client.
//
// # Window semantics
//
// Each (rule, subject) pair is one counter: INCR, plus EXPIRE on the first
// hit of the window. Keys are "<prefix><rule>:<subject>".
//
// # What this package must NOT do
//
//   - Decide HTTP behaviour (that lives in middleware.RateLimit).
//   - Fail closed when Redis is unreachable; callers receive
//     ErrRedisUnavailable and choose.
package ratelimit
