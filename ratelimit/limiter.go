package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a named budget of Limit requests per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Budgets for the public auth endpoints.
var (
	Login         = Rule{Name: "login", Limit: 5, Window: time.Minute}
	Register      = Rule{Name: "register", Limit: 3, Window: time.Minute}
	PasswordReset = Rule{Name: "password_reset", Limit: 3, Window: 5 * time.Minute}
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Count is the number of hits in the current window, this one included.
	Count int64
	// RetryAfter is the time left in the window. It is only set when the
	// request was refused.
	RetryAfter time.Duration
}

// Limiter enforces Rules using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] backed by the given Redis client. prefix
// namespaces every key it writes.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Allow counts one hit for subject under rule and reports whether it fits
// in the budget.
func (l *Limiter) Allow(ctx context.Context, rule Rule, subject string) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidRule, rule.Name)
	}

	key := l.key(rule, subject)
	count, ttl, err := l.hit(ctx, key, rule.Window)
	if err != nil {
		return Decision{}, err
	}
	if count <= int64(rule.Limit) {
		return Decision{Allowed: true, Count: count}, nil
	}
	if ttl <= 0 {
		ttl = rule.Window
	}
	return Decision{Count: count, RetryAfter: ttl}, nil
}

// Reset clears the counter for subject under rule.
func (l *Limiter) Reset(ctx context.Context, rule Rule, subject string) error {
	if err := l.redis.Del(ctx, l.key(rule, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(rule Rule, subject string) string {
	return l.prefix + rule.Name + ":" + subject
}

// hit counts one request against key and returns the count and the time
// left in the window. The counter is created with its TTL in the same
// MULTI/EXEC as the INCR, so a window can never be left without an expiry.
func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		// Counter written without a TTL by an older limiter.
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = window
	}
	return incr.Val(), ttl, nil
}
