package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/ratelimit"
)

// TooManyRequestsMessage is the body of every throttled response.
const TooManyRequestsMessage = "Too many requests"

// RateLimit throttles requests per client IP under rule. It must run after
// RequestInfo. A refused request is answered with 429 and a Retry-After
// header and recorded as a SecurityPolicyViolation at Warning severity.
//
// When Redis is unreachable the request is let through and the failure is
// logged.
func RateLimit(limiter *ratelimit.Limiter, rule ratelimit.Rule, recorder *audit.Recorder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subject := medauth.ClientIP(ctx)
			if subject == "" {
				subject = clientIP(r, false)
			}

			decision, err := limiter.Allow(ctx, rule, subject)
			if err != nil {
				logger.WarnContext(ctx, "rate limit check failed",
					slog.String("rule", rule.Name),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			recorder.Record(ctx, audit.SecurityEvent(
				audit.ActionSecurityPolicyViolation,
				audit.SeverityWarning,
				fmt.Sprintf("Rate limit exceeded for %s", rule.Name),
				nil,
				map[string]any{
					"rule":   rule.Name,
					"limit":  rule.Limit,
					"window": rule.Window.String(),
					"count":  decision.Count,
				},
			))

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
			WriteJSON(w, http.StatusTooManyRequests, ErrorBody{Error: TooManyRequestsMessage})
		})
	}
}
