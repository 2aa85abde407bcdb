package medauth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/permission"
)

func TestRegisterLoginMeEndToEnd(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	if reg.TokenType != "Bearer" || reg.ExpiresIn != 3600 {
		t.Fatalf("unexpected token metadata: %q %d", reg.TokenType, reg.ExpiresIn)
	}
	if reg.User.Role != "doctor" || !reg.User.IsActive {
		t.Fatalf("unexpected profile: %+v", reg.User)
	}

	login, err := env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.LastLogin == nil || !login.User.LastLogin.Equal(testEpoch) {
		t.Fatalf("expected last login %v, got %v", testEpoch, login.User.LastLogin)
	}

	claims, err := env.engine.Authenticate(ctx, "Bearer "+login.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if claims.UserID() != reg.User.ID || claims.Role != permission.RoleDoctor {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	me, err := env.engine.Me(ctx, claims)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.Email != "a@x.com" || me.Name != "Test User" {
		t.Fatalf("unexpected profile: %+v", me)
	}

	if n := env.countAudit(audit.ActionUserCreated, audit.SeverityInfo); n != 1 {
		t.Fatalf("expected 1 user_created entry, got %d", n)
	}
	if n := env.countAudit(audit.ActionLogin, audit.SeverityInfo); n != 1 {
		t.Fatalf("expected 1 login entry, got %d", n)
	}
	if n := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning); n != 0 {
		t.Fatalf("expected no failures, got %d", n)
	}
}

func TestLoginFailuresAreGenericAndAuditedOnce(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	env.register(t, "active@x.com", permission.RolePatient)
	inactive := env.register(t, "inactive@x.com", permission.RolePatient)

	u, err := env.users.GetUser(ctx, inactive.User.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	u.IsActive = false
	if err := env.users.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	tests := []struct {
		name     string
		req      LoginRequest
		sentinel error
	}{
		{"unknown email", LoginRequest{Email: "nobody@x.com", Password: testPassword}, ErrInvalidCredentials},
		{"wrong password", LoginRequest{Email: "active@x.com", Password: "Wr0ng!Pass"}, ErrInvalidCredentials},
		{"deactivated", LoginRequest{Email: "inactive@x.com", Password: testPassword}, ErrAccountDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning)

			_, err := env.engine.Login(ctx, tt.req)
			e := requireKind(t, err, KindAuthentication)
			if e.Message != "Invalid email or password" {
				t.Fatalf("expected generic message, got %q", e.Message)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
			if HTTPStatus(err) != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", HTTPStatus(err))
			}

			if got := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning) - before; got != 1 {
				t.Fatalf("expected exactly 1 failure entry, got %d", got)
			}
		})
	}
}

func TestLoginUnknownEmailEntryHasNoActor(t *testing.T) {
	env := newTestEngine(t)

	_, _ = env.engine.Login(context.Background(), LoginRequest{Email: "ghost@x.com", Password: testPassword})

	entries := env.audit.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Actor != nil {
		t.Fatalf("expected no actor, got %+v", entries[0].Actor)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	env := newTestEngine(t)
	env.register(t, "Doctor@Clinic.org", permission.RoleDoctor)

	if _, err := env.engine.Login(context.Background(), LoginRequest{Email: "DOCTOR@clinic.ORG", Password: testPassword}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestLoginSurvivesLastLoginUpdateFailure(t *testing.T) {
	env := newTestEngine(t)
	env.register(t, "a@x.com", permission.RoleDoctor)
	env.users.updateErr = errors.New("db down")

	if _, err := env.engine.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: testPassword}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestLoginValidationErrorIsNotAudited(t *testing.T) {
	env := newTestEngine(t)

	_, err := env.engine.Login(context.Background(), LoginRequest{Email: "not-an-email", Password: ""})
	e := requireKind(t, err, KindValidation)
	if _, ok := e.Fields["email"]; !ok {
		t.Fatalf("expected email field error, got %v", e.Fields)
	}
	if _, ok := e.Fields["password"]; !ok {
		t.Fatalf("expected password field error, got %v", e.Fields)
	}
	if env.auditLen() != 0 {
		t.Fatalf("expected no audit entries, got %d", env.auditLen())
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := newTestEngine(t)

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:     "a@x.com",
		Password:  "alllowercase",
		FirstName: "A",
		LastName:  "B",
		Role:      "doctor",
	})
	e := requireKind(t, err, KindValidation)
	if e.Fields["password"] == "" {
		t.Fatalf("expected password field message, got %v", e.Fields)
	}
	if env.users.calls() != 0 {
		t.Fatalf("weak password must not reach the store")
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	env := newTestEngine(t)

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:     "a@x.com",
		Password:  testPassword,
		FirstName: "A",
		LastName:  "B",
		Role:      "nurse",
	})
	requireKind(t, err, KindValidation)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEngine(t)
	env.register(t, "a@x.com", permission.RoleDoctor)

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:     "A@X.com",
		Password:  testPassword,
		FirstName: "A",
		LastName:  "B",
		Role:      "patient",
	})
	requireKind(t, err, KindConflict)
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("expected 409, got %d", HTTPStatus(err))
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRegisterConflict]; got != 1 {
		t.Fatalf("expected 1 conflict, got %d", got)
	}
}

func TestRefreshIssuesNewPairFromCurrentAccount(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RolePatient)

	u, _ := env.users.GetUser(ctx, reg.User.ID)
	u.Role = permission.RoleDoctor
	if err := env.users.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	env.clock.Advance(time.Minute)
	resp, err := env.engine.Refresh(ctx, RefreshRequest{RefreshToken: reg.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if resp.User.Role != "doctor" {
		t.Fatalf("expected refreshed role doctor, got %s", resp.User.Role)
	}
	if claims := env.claims(t, resp); claims.Role != permission.RoleDoctor {
		t.Fatalf("expected doctor claims, got %s", claims.Role)
	}
}

func TestRefreshFailuresAuditedOnce(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RolePatient)

	resetToken, err := env.engine.tokens.IssuePasswordResetToken(reg.User.ID)
	if err != nil {
		t.Fatalf("IssuePasswordResetToken() error = %v", err)
	}

	for name, token := range map[string]string{
		"garbage":     "not.a.token",
		"reset token": resetToken,
	} {
		t.Run(name, func(t *testing.T) {
			before := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning)

			_, err := env.engine.Refresh(ctx, RefreshRequest{RefreshToken: token})
			requireKind(t, err, KindAuthentication)
			if !errors.Is(err, ErrTokenRejected) {
				t.Fatalf("expected ErrTokenRejected, got %v", err)
			}
			if got := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning) - before; got != 1 {
				t.Fatalf("expected exactly 1 failure entry, got %d", got)
			}
		})
	}
}

func TestRefreshRejectsDeactivatedAccount(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RolePatient)

	u, _ := env.users.GetUser(ctx, reg.User.ID)
	u.IsActive = false
	_ = env.users.UpdateUser(ctx, u)

	_, err := env.engine.Refresh(ctx, RefreshRequest{RefreshToken: reg.RefreshToken})
	requireKind(t, err, KindAuthentication)
	if !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("expected ErrAccountDeactivated, got %v", err)
	}
	if n := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning); n != 1 {
		t.Fatalf("expected 1 failure entry, got %d", n)
	}
}

func TestAuthenticateFailuresAuditedOnce(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RoleDoctor)

	tests := []struct {
		name   string
		header func() string
	}{
		{"missing header", func() string { return "" }},
		{"wrong scheme", func() string { return "Basic " + reg.AccessToken }},
		{"tampered", func() string { return "Bearer " + reg.AccessToken + "x" }},
		{"expired", func() string {
			env.clock.Advance(2 * time.Hour)
			return "Bearer " + reg.AccessToken
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header()
			before := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning)

			_, err := env.engine.Authenticate(ctx, header)
			e := requireKind(t, err, KindAuthentication)
			if e.Message != "Invalid or expired token" {
				t.Fatalf("unexpected message %q", e.Message)
			}
			if got := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning) - before; got != 1 {
				t.Fatalf("expected exactly 1 failure entry, got %d", got)
			}
		})
	}
}

func TestLogoutIsAuditOnly(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	claims := env.claims(t, reg)

	if err := env.engine.Logout(ctx, claims); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if n := env.countAudit(audit.ActionLogout, audit.SeverityInfo); n != 1 {
		t.Fatalf("expected 1 logout entry, got %d", n)
	}

	if _, err := env.engine.Authenticate(ctx, "Bearer "+reg.AccessToken); err != nil {
		t.Fatalf("token should stay valid after logout: %v", err)
	}
}

func TestAuthenticatedOperationsRejectMissingClaims(t *testing.T) {
	env := newTestEngine(t)

	err := env.engine.Logout(context.Background(), nil)
	requireKind(t, err, KindAuthentication)
	if n := env.countAudit(audit.ActionLoginFailed, audit.SeverityWarning); n != 1 {
		t.Fatalf("expected 1 failure entry, got %d", n)
	}
}

func TestVerifyTokenResolvesPermissions(t *testing.T) {
	env := newTestEngine(t)
	reg := env.register(t, "p@x.com", permission.RolePatient)

	ac, err := env.engine.VerifyToken(context.Background(), reg.AccessToken)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if !ac.Valid || ac.UserID != reg.User.ID || ac.Role != "patient" {
		t.Fatalf("unexpected auth context: %+v", ac)
	}

	want := map[string]bool{
		permission.PatientReadOwn:   true,
		permission.PatientUpdateOwn: true,
		permission.DeviceReadOwn:    true,
		permission.ReadingReadOwn:   true,
		permission.ReportReadOwn:    true,
	}
	if len(ac.Permissions) != len(want) {
		t.Fatalf("expected %d permissions, got %v", len(want), ac.Permissions)
	}
	for _, p := range ac.Permissions {
		if !want[p] {
			t.Fatalf("unexpected permission %q", p)
		}
	}
}

func TestMeUnknownUserPassesNotFoundThrough(t *testing.T) {
	env := newTestEngine(t)
	reg := env.register(t, "a@x.com", permission.RoleDoctor)
	claims := env.claims(t, reg)

	env.users.MemoryUserStore = NewMemoryUserStore()

	_, err := env.engine.Me(context.Background(), claims)
	if !errors.Is(err, ErrUserNotFound) || HTTPStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
