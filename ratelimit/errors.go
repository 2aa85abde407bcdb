package ratelimit

import "errors"

var (
	// ErrRedisUnavailable wraps every Redis failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidRule is returned for rules with a non-positive limit or window.
	ErrInvalidRule = errors.New("invalid rate limit rule")
)
