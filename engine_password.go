package medauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
)

// PasswordResetRequestedMessage is returned by RequestPasswordReset whether
// or not the email matched an account.
const PasswordResetRequestedMessage = "If an account with that email exists, a password reset link has been sent"

// ChangePassword replaces the caller's password after checking the current
// one. A wrong current password is an authentication failure.
func (e *Engine) ChangePassword(ctx context.Context, claims *jwt.Claims, req ChangePasswordRequest) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireClaims(ctx, claims); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := password.ValidateStrength(req.NewPassword); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return strengthError("new_password", err)
	}

	user, err := e.users.GetUser(ctx, claims.UserID())
	if err != nil {
		return storeError(err)
	}

	if !e.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		e.recordLoginFailure(ctx, user.ID, user.Email, "invalid current password")
		e.metricInc(MetricPasswordChangeFailure)
		return authenticationError("Current password is incorrect", ErrInvalidCredentials)
	}
	if req.CurrentPassword == req.NewPassword {
		e.metricInc(MetricPasswordChangeFailure)
		return validationError("New password must be different from current password", ErrPasswordReuse)
	}

	if err := e.setPassword(ctx, &user, req.NewPassword); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.Account(actorForUser(user), audit.ActionPasswordChanged))
	e.metricInc(MetricPasswordChangeSuccess)
	return nil
}

// RequestPasswordReset issues a reset token for an active account and hands
// it to the ResetNotifier. The answer is the same whether or not the email
// is known; notifier failures are logged, not returned.
func (e *Engine) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := validateRequest(req); err != nil {
		return "", err
	}
	e.metricInc(MetricPasswordResetRequest)

	email := normalizeEmail(req.Email)
	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.logger.DebugContext(ctx, "password reset for unknown email",
				slog.String("email", audit.MaskEmail(email)))
			return PasswordResetRequestedMessage, nil
		}
		return "", internalError(err)
	}
	if !user.IsActive {
		e.logger.DebugContext(ctx, "password reset for inactive account",
			slog.String("user_id", user.ID.String()))
		return PasswordResetRequestedMessage, nil
	}

	token, err := e.tokens.IssuePasswordResetToken(user.ID)
	if err != nil {
		return "", internalError(err)
	}

	if e.notifier == nil {
		e.logger.WarnContext(ctx, "password reset requested but no notifier is configured",
			slog.String("user_id", user.ID.String()))
		return PasswordResetRequestedMessage, nil
	}
	if err := e.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		e.logger.ErrorContext(ctx, "password reset delivery failed",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err),
		)
	}
	return PasswordResetRequestedMessage, nil
}

// ConfirmPasswordReset sets a new password using a reset token. Login
// tokens are rejected.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirmation) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	userID, err := e.tokens.ValidatePasswordResetToken(req.ResetToken)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return e.tokenFailure(ctx, "password reset", err)
	}
	if err := password.ValidateStrength(req.NewPassword); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return strengthError("new_password", err)
	}

	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			return e.tokenFailure(ctx, "password reset", err)
		}
		return internalError(err)
	}
	if !user.IsActive {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return e.loginFailure(ctx, user.ID, user.Email, "account deactivated", ErrAccountDeactivated)
	}

	if err := e.setPassword(ctx, &user, req.NewPassword); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.Account(actorForUser(user), audit.ActionPasswordReset))
	e.metricInc(MetricPasswordResetConfirmSuccess)
	return nil
}

func (e *Engine) setPassword(ctx context.Context, user *User, plain string) error {
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		return internalError(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = e.now().UTC()
	if err := e.users.UpdateUser(ctx, *user); err != nil {
		return storeError(err)
	}
	return nil
}
