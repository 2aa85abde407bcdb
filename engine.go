package medauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
	"github.com/meddevice/medauth/permission"
)

// Engine runs the authentication, authorization and account flows. Build it
// with New().WithConfig(...).WithUserStore(...).Build(). It holds no mutable
// state of its own and is safe for concurrent use.
type Engine struct {
	config   Config
	users    UserStore
	tokens   *jwt.Manager
	hasher   *password.Argon2
	resolver *permission.Resolver
	recorder *audit.Recorder
	notifier ResetNotifier
	totp     *totpManager
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Audit returns the recorder for direct writes and queries.
func (e *Engine) Audit() *audit.Recorder {
	return e.recorder
}

// Resolver returns the role permission resolver.
func (e *Engine) Resolver() *permission.Resolver {
	return e.resolver
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// AuditFailures returns how many audit writes the store rejected.
func (e *Engine) AuditFailures() uint64 {
	if e == nil {
		return 0
	}
	return e.metrics.Value(MetricAuditWriteFailure)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.tokens == nil || e.users == nil {
		return internalError(ErrEngineNotReady)
	}
	return nil
}

// loginFailure records the one audit entry owed for a rejected credential
// and returns the generic login error.
func (e *Engine) loginFailure(ctx context.Context, userID uuid.UUID, email, reason string, cause error) error {
	e.recordLoginFailure(ctx, userID, email, reason)
	return authenticationError("Invalid email or password", cause)
}

func (e *Engine) recordLoginFailure(ctx context.Context, userID uuid.UUID, email, reason string) {
	e.recorder.Record(ctx, audit.Authentication(userID, email, false, reason))
	e.metricInc(MetricLoginFailure)
	e.logger.WarnContext(ctx, "authentication rejected",
		slog.String("email", audit.MaskEmail(email)),
		slog.String("reason", reason),
	)
}

// tokenFailure records the audit entry for a token that did not validate.
func (e *Engine) tokenFailure(ctx context.Context, kind string, cause error) error {
	e.recorder.Record(ctx, audit.TokenRejected(kind+": "+tokenReason(cause)))
	e.metricInc(MetricTokenRejected)
	e.logger.WarnContext(ctx, "token rejected",
		slog.String("token", kind),
		slog.Any("error", cause),
	)
	return authenticationError("Invalid or expired token", ErrTokenRejected)
}

func tokenReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrMissingBearer):
		return "missing bearer token"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenType):
		return "wrong token type"
	default:
		return "invalid"
	}
}

// requireClaims rejects a call that reached an authenticated operation
// without verified claims.
func (e *Engine) requireClaims(ctx context.Context, claims *jwt.Claims) error {
	if claims == nil || claims.UserID() == uuid.Nil {
		return e.tokenFailure(ctx, "access", jwt.ErrMissingBearer)
	}
	return nil
}

// actorFor is the audit actor for an authenticated caller.
func actorFor(claims *jwt.Claims) audit.Actor {
	return audit.Actor{ID: claims.UserID(), Email: claims.Email, Role: claims.Role.String()}
}

func actorForUser(u User) audit.Actor {
	return audit.Actor{ID: u.ID, Email: u.Email, Role: u.Role.String()}
}

// storeError passes the store sentinels through and hides everything else.
func storeError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrUserExists):
		return err
	default:
		return internalError(err)
	}
}
