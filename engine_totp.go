package medauth

import (
	"context"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
)

// SetupTOTP generates and stores a new secret for the caller. Two-factor
// stays off until EnableTOTP confirms a code from the secret.
func (e *Engine) SetupTOTP(ctx context.Context, claims *jwt.Claims) (TOTPSetup, error) {
	if err := e.ready(); err != nil {
		return TOTPSetup{}, err
	}
	if err := e.requireClaims(ctx, claims); err != nil {
		return TOTPSetup{}, err
	}

	user, err := e.users.GetUser(ctx, claims.UserID())
	if err != nil {
		return TOTPSetup{}, storeError(err)
	}
	if user.TwoFactorEnabled {
		return TOTPSetup{}, conflictError("Two-factor authentication is already enabled", nil)
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return TOTPSetup{}, internalError(err)
	}
	user.TwoFactorSecret = secret
	user.TOTPLastCounter = 0
	user.UpdatedAt = e.now().UTC()
	if err := e.users.UpdateUser(ctx, user); err != nil {
		return TOTPSetup{}, storeError(err)
	}

	return TOTPSetup{
		Secret: secret,
		URI:    e.totp.ProvisionURI(secret, user.Email),
	}, nil
}

// EnableTOTP turns two-factor on once the caller proves they hold the
// secret from SetupTOTP.
func (e *Engine) EnableTOTP(ctx context.Context, claims *jwt.Claims, req TOTPCodeRequest) error {
	user, err := e.totpUser(ctx, claims, req)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return conflictError("Two-factor authentication is already enabled", nil)
	}
	if user.TwoFactorSecret == "" {
		return validationError("Two-factor authentication has not been set up", ErrTOTPNotConfigured)
	}
	if err := e.checkTOTP(ctx, &user, req.Code); err != nil {
		return err
	}

	user.TwoFactorEnabled = true
	user.UpdatedAt = e.now().UTC()
	if err := e.users.UpdateUser(ctx, user); err != nil {
		return storeError(err)
	}

	e.recorder.Record(ctx, audit.Account(actorForUser(user), audit.ActionTwoFactorEnabled))
	return nil
}

// DisableTOTP turns two-factor off and discards the secret. A current code
// is required.
func (e *Engine) DisableTOTP(ctx context.Context, claims *jwt.Claims, req TOTPCodeRequest) error {
	user, err := e.totpUser(ctx, claims, req)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return validationError("Two-factor authentication is not enabled", ErrTOTPNotConfigured)
	}
	if err := e.checkTOTP(ctx, &user, req.Code); err != nil {
		return err
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	user.UpdatedAt = e.now().UTC()
	if err := e.users.UpdateUser(ctx, user); err != nil {
		return storeError(err)
	}

	e.recorder.Record(ctx, audit.Account(actorForUser(user), audit.ActionTwoFactorDisabled))
	return nil
}

func (e *Engine) totpUser(ctx context.Context, claims *jwt.Claims, req TOTPCodeRequest) (User, error) {
	if err := e.ready(); err != nil {
		return User{}, err
	}
	if err := e.requireClaims(ctx, claims); err != nil {
		return User{}, err
	}
	if err := validateRequest(req); err != nil {
		return User{}, err
	}

	user, err := e.users.GetUser(ctx, claims.UserID())
	if err != nil {
		return User{}, storeError(err)
	}
	return user, nil
}

// checkTOTP verifies code and advances user.TOTPLastCounter. A code whose
// time step is not newer than the last accepted one is rejected as a replay.
// The caller persists the user.
func (e *Engine) checkTOTP(ctx context.Context, user *User, code string) error {
	counter, ok, err := e.totp.Verify(user.TwoFactorSecret, code, e.now())
	if err != nil {
		return internalError(err)
	}
	reason := "invalid two-factor code"
	if ok && counter <= user.TOTPLastCounter {
		ok, reason = false, "two-factor code replayed"
	}
	if !ok {
		e.recordLoginFailure(ctx, user.ID, user.Email, reason)
		e.metricInc(MetricTOTPFailure)
		return authenticationError("Invalid two-factor authentication code", ErrTOTPInvalid)
	}
	user.TOTPLastCounter = counter
	e.metricInc(MetricTOTPSuccess)
	return nil
}
