package medauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/permission"
)

// enableTOTP turns two-factor on with the current code, then moves the clock
// to the next period so later codes are not replays of the enabling one.
func enableTOTP(t *testing.T, env *testEnv, resp LoginResponse) string {
	t.Helper()
	ctx := context.Background()
	claims := env.claims(t, resp)

	setup, err := env.engine.SetupTOTP(ctx, claims)
	if err != nil {
		t.Fatalf("SetupTOTP() error = %v", err)
	}
	code, err := env.engine.totp.Code(setup.Secret, env.clock.Now())
	if err != nil {
		t.Fatalf("Code() error = %v", err)
	}
	if err := env.engine.EnableTOTP(ctx, claims, TOTPCodeRequest{Code: code}); err != nil {
		t.Fatalf("EnableTOTP() error = %v", err)
	}
	env.clock.Advance(30 * time.Second)
	return setup.Secret
}

func TestSetupTOTPReturnsProvisioningURI(t *testing.T) {
	env := newTestEngine(t)
	claims := env.claims(t, env.register(t, "a@x.com", permission.RoleDoctor))

	setup, err := env.engine.SetupTOTP(context.Background(), claims)
	if err != nil {
		t.Fatalf("SetupTOTP() error = %v", err)
	}
	if len(setup.Secret) != 32 {
		t.Fatalf("expected 32 char base32 secret, got %q", setup.Secret)
	}
	if !strings.HasPrefix(setup.URI, "otpauth://totp/MedAuth:a@x.com?") || !strings.Contains(setup.URI, "secret="+setup.Secret) {
		t.Fatalf("unexpected uri %q", setup.URI)
	}

	u, _ := env.users.GetUser(context.Background(), claims.UserID())
	if u.TwoFactorEnabled {
		t.Fatalf("setup alone must not enable two-factor")
	}
}

func TestLoginRequiresTOTPOnceEnabled(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	secret := enableTOTP(t, env, reg)

	if n := env.countAudit(audit.ActionTwoFactorEnabled, audit.SeverityInfo); n != 1 {
		t.Fatalf("expected 1 two_factor_enabled entry, got %d", n)
	}

	_, err := env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: testPassword})
	e := requireKind(t, err, KindAuthentication)
	if !errors.Is(err, ErrTOTPRequired) || e.Message != "Two-factor authentication code required" {
		t.Fatalf("expected totp required, got %v", err)
	}

	_, err = env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: "000000"})
	e = requireKind(t, err, KindAuthentication)
	if !errors.Is(err, ErrTOTPInvalid) || e.Message != "Invalid two-factor authentication code" {
		t.Fatalf("expected totp invalid, got %v", err)
	}

	if n := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning); n != 2 {
		t.Fatalf("expected 2 failure entries, got %d", n)
	}

	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	if _, err := env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: code}); err != nil {
		t.Fatalf("Login() with code error = %v", err)
	}
}

func TestLoginAcceptsCodeWithinSkew(t *testing.T) {
	env := newTestEngine(t)
	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	secret := enableTOTP(t, env, reg)
	env.clock.Advance(30 * time.Second)

	previous, _ := env.engine.totp.Code(secret, env.clock.Now().Add(-30*time.Second))
	if _, err := env.engine.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: previous}); err != nil {
		t.Fatalf("previous period code rejected: %v", err)
	}

	stale, _ := env.engine.totp.Code(secret, env.clock.Now().Add(-90*time.Second))
	if _, err := env.engine.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: stale}); err == nil {
		t.Fatalf("code three periods old accepted")
	}
}

func TestTOTPCodeCannotBeReplayed(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	secret := enableTOTP(t, env, reg)

	enabling, _ := env.engine.totp.Code(secret, env.clock.Now().Add(-30*time.Second))
	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	req := LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: code}

	if _, err := env.engine.Login(ctx, req); err != nil {
		t.Fatalf("first Login() error = %v", err)
	}
	u, _ := env.users.GetUser(ctx, reg.User.ID)
	if want := env.clock.Now().Unix() / 30; u.TOTPLastCounter != want {
		t.Fatalf("expected last counter %d, got %d", want, u.TOTPLastCounter)
	}

	for name, replay := range map[string]string{"same code": code, "enabling code": enabling} {
		before := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning)
		_, err := env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: replay})
		e := requireKind(t, err, KindAuthentication)
		if !errors.Is(err, ErrTOTPInvalid) || e.Message != "Invalid two-factor authentication code" {
			t.Fatalf("%s: expected totp invalid, got %v", name, err)
		}
		if got := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning) - before; got != 1 {
			t.Fatalf("%s: expected 1 failure entry, got %d", name, got)
		}
	}

	err := env.engine.DisableTOTP(ctx, env.claims(t, reg), TOTPCodeRequest{Code: code})
	requireKind(t, err, KindAuthentication)

	env.clock.Advance(30 * time.Second)
	next, _ := env.engine.totp.Code(secret, env.clock.Now())
	if _, err := env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: next}); err != nil {
		t.Fatalf("next period code rejected: %v", err)
	}
}

func TestLoginWithTOTPFailsClosedWhenStepNotStored(t *testing.T) {
	env := newTestEngine(t)
	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	secret := enableTOTP(t, env, reg)

	env.users.updateErr = errors.New("database unavailable")
	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	_, err := env.engine.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: testPassword, TwoFactorCode: code})
	requireKind(t, err, KindInternal)
}

func TestEnableTOTPRequiresSetup(t *testing.T) {
	env := newTestEngine(t)
	claims := env.claims(t, env.register(t, "a@x.com", permission.RoleDoctor))

	err := env.engine.EnableTOTP(context.Background(), claims, TOTPCodeRequest{Code: "123456"})
	requireKind(t, err, KindValidation)
	if !errors.Is(err, ErrTOTPNotConfigured) {
		t.Fatalf("expected ErrTOTPNotConfigured, got %v", err)
	}
}

func TestEnableTOTPWrongCodeIsAuditedFailure(t *testing.T) {
	env := newTestEngine(t)
	claims := env.claims(t, env.register(t, "a@x.com", permission.RoleDoctor))

	if _, err := env.engine.SetupTOTP(context.Background(), claims); err != nil {
		t.Fatalf("SetupTOTP() error = %v", err)
	}
	err := env.engine.EnableTOTP(context.Background(), claims, TOTPCodeRequest{Code: "000000"})
	requireKind(t, err, KindAuthentication)
	if n := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning); n != 1 {
		t.Fatalf("expected 1 failure entry, got %d", n)
	}
}

func TestDisableTOTP(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	secret := enableTOTP(t, env, reg)
	claims := env.claims(t, reg)

	if _, err := env.engine.SetupTOTP(ctx, claims); KindOf(err) != KindConflict {
		t.Fatalf("expected conflict while enabled, got %v", err)
	}

	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	if err := env.engine.DisableTOTP(ctx, claims, TOTPCodeRequest{Code: code}); err != nil {
		t.Fatalf("DisableTOTP() error = %v", err)
	}

	u, _ := env.users.GetUser(ctx, reg.User.ID)
	if u.TwoFactorEnabled || u.TwoFactorSecret != "" {
		t.Fatalf("expected two-factor cleared, got %+v", u)
	}
	if n := env.countAudit(audit.ActionTwoFactorDisabled, audit.SeverityInfo); n != 1 {
		t.Fatalf("expected 1 two_factor_disabled entry, got %d", n)
	}
	if _, err := env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: testPassword}); err != nil {
		t.Fatalf("login without code after disable failed: %v", err)
	}
}

func TestTOTPCodeRequestValidation(t *testing.T) {
	env := newTestEngine(t)
	claims := env.claims(t, env.register(t, "a@x.com", permission.RoleDoctor))

	for _, code := range []string{"", "12ab56", "123"} {
		err := env.engine.EnableTOTP(context.Background(), claims, TOTPCodeRequest{Code: code})
		requireKind(t, err, KindValidation)
	}
}
