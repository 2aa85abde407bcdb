package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/password"
	"github.com/meddevice/medauth/permission"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestEngine(t *testing.T) (*medauth.Engine, *audit.MemoryStore) {
	t.Helper()

	cfg := medauth.DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	store := audit.NewMemoryStore()
	engine, err := medauth.New().
		WithConfig(cfg).
		WithUserStore(medauth.NewMemoryUserStore()).
		WithAuditStore(store).
		Build()
	require.NoError(t, err)
	return engine, store
}

func registerToken(t *testing.T, engine *medauth.Engine, email string, role permission.Role) string {
	t.Helper()

	ctx := context.Background()
	req := medauth.RegisterRequest{
		Email:     email,
		Password:  "Str0ng!Pass",
		FirstName: "Test",
		LastName:  "User",
		Role:      role.String(),
	}
	if role == permission.RoleAdmin {
		_, err := engine.ProvisionUser(ctx, medauth.CreateUserRequest(req))
		require.NoError(t, err)
		resp, err := engine.Login(ctx, medauth.LoginRequest{Email: email, Password: req.Password})
		require.NoError(t, err)
		return resp.AccessToken
	}

	resp, err := engine.Register(ctx, req)
	require.NoError(t, err)
	return resp.AccessToken
}

func claimsEchoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{
			"user_id": claims.UserID().String(),
			"role":    claims.Role.String(),
		})
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestGuard_ValidToken_InjectsClaims(t *testing.T) {
	engine, _ := newTestEngine(t)
	token := registerToken(t, engine, "doc@x.com", permission.RoleDoctor)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Guard(engine)(claimsEchoHandler()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "doctor", got["role"])
	assert.NotEmpty(t, got["user_id"])
}

func TestGuard_RejectsAndAudits(t *testing.T) {
	engine, store := newTestEngine(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token abc"},
		{"garbage token", "Bearer abc.def.ghi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(store.Entries())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			Guard(engine)(claimsEchoHandler()).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, "Invalid or expired token", decodeError(t, rr).Error)

			entries := store.Entries()
			require.Len(t, entries, before+1)
			assert.Equal(t, audit.ActionLoginFailed, entries[len(entries)-1].Action)
		})
	}
}

func TestGuard_NilEngine(t *testing.T) {
	rr := httptest.NewRecorder()
	Guard(nil)(claimsEchoHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rr).Error)
}

func TestRequirePermission(t *testing.T) {
	engine, store := newTestEngine(t)
	adminToken := registerToken(t, engine, "admin@x.com", permission.RoleAdmin)
	doctorToken := registerToken(t, engine, "doc@x.com", permission.RoleDoctor)

	handler := Guard(engine)(RequirePermission(engine, permission.AuditRead)(claimsEchoHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+doctorToken)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Insufficient permissions", decodeError(t, rr).Error)

	entries := store.Entries()
	assert.Equal(t, audit.ActionUnauthorizedAccess, entries[len(entries)-1].Action)
}

func TestRequirePermission_WithoutGuard(t *testing.T) {
	engine, _ := newTestEngine(t)
	rr := httptest.NewRecorder()

	RequirePermission(engine, permission.AuditRead)(claimsEchoHandler()).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequestInfo_StampsAuditEntries(t *testing.T) {
	engine, store := newTestEngine(t)

	handler := RequestInfo(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := engine.Login(r.Context(), medauth.LoginRequest{Email: "ghost@x.com", Password: "Str0ng!Pass"})
		WriteError(w, err)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "ward-tablet/2.1")
	req.Header.Set(RequestIDHeader, "req-abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "req-abc", rr.Header().Get(RequestIDHeader))

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.9", entries[0].IPAddress)
	assert.Equal(t, "ward-tablet/2.1", entries[0].UserAgent)
	assert.Equal(t, "req-abc", entries[0].RequestID)
}

func TestRequestInfo_GeneratesRequestIDAndIgnoresUntrustedProxyHeaders(t *testing.T) {
	var seenIP string
	handler := RequestInfo(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenIP = audit.RequestInfoFromContext(r.Context()).IPAddress
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "198.51.100.4", seenIP)
	assert.Len(t, rr.Header().Get(RequestIDHeader), 36)
}

func TestWriteError_ValidationFields(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Login(context.Background(), medauth.LoginRequest{Email: "bad"})

	rr := httptest.NewRecorder()
	WriteError(rr, err)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")
}
