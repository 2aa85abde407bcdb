package medauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
	"github.com/meddevice/medauth/permission"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

const testPassword = "Str0ng!Pass"

var testEpoch = time.Date(2025, 3, 14, 9, 26, 5, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	// Cheapest accepted Argon2 cost keeps the suite fast.
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	return cfg
}

// countingUserStore wraps MemoryUserStore and counts every call.
type countingUserStore struct {
	*MemoryUserStore
	n         atomic.Int64
	updateErr error
}

func newCountingUserStore() *countingUserStore {
	return &countingUserStore{MemoryUserStore: NewMemoryUserStore()}
}

func (s *countingUserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.n.Add(1)
	return s.MemoryUserStore.GetUserByEmail(ctx, email)
}

func (s *countingUserStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	s.n.Add(1)
	return s.MemoryUserStore.GetUser(ctx, id)
}

func (s *countingUserStore) CreateUser(ctx context.Context, user User) error {
	s.n.Add(1)
	return s.MemoryUserStore.CreateUser(ctx, user)
}

func (s *countingUserStore) UpdateUser(ctx context.Context, user User) error {
	s.n.Add(1)
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryUserStore.UpdateUser(ctx, user)
}

func (s *countingUserStore) calls() int64 { return s.n.Load() }
func (s *countingUserStore) reset()       { s.n.Store(0) }

// capturingNotifier keeps the last reset token per email.
type capturingNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
}

func (n *capturingNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = make(map[string]string)
	}
	n.tokens[email] = token
	return n.err
}

func (n *capturingNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

type testEnv struct {
	engine   *Engine
	users    *countingUserStore
	audit    *audit.MemoryStore
	notifier *capturingNotifier
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t testing.TB) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    newCountingUserStore(),
		audit:    audit.NewMemoryStore(),
		notifier: &capturingNotifier{},
		clock:    &testClock{now: testEpoch},
	}

	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(env.users).
		WithAuditStore(env.audit).
		WithResetNotifier(env.notifier).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	env.engine = engine
	return env
}

func (env *testEnv) register(t testing.TB, email string, role permission.Role) LoginResponse {
	t.Helper()

	req := RegisterRequest{
		Email:     email,
		Password:  testPassword,
		FirstName: "Test",
		LastName:  "User",
		Role:      role.String(),
	}
	if role == permission.RoleAdmin {
		return env.provision(t, CreateUserRequest(req))
	}

	resp, err := env.engine.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("Register(%s) error = %v", email, err)
	}
	return resp
}

// provision creates the account through the operator path and logs it in.
func (env *testEnv) provision(t testing.TB, req CreateUserRequest) LoginResponse {
	t.Helper()

	ctx := context.Background()
	if _, err := env.engine.ProvisionUser(ctx, req); err != nil {
		t.Fatalf("ProvisionUser(%s) error = %v", req.Email, err)
	}
	resp, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("Login(%s) error = %v", req.Email, err)
	}
	return resp
}

func (env *testEnv) claims(t testing.TB, resp LoginResponse) *jwt.Claims {
	t.Helper()

	claims, err := env.engine.tokens.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	return claims
}

// countAudit returns how many recorded entries have the given action and
// severity.
func (env *testEnv) countAudit(action audit.Action, severity audit.Severity) int {
	n := 0
	for _, e := range env.audit.Entries() {
		if e.Action == action && e.Severity == severity {
			n++
		}
	}
	return n
}

func (env *testEnv) auditLen() int {
	return len(env.audit.Entries())
}

func requireKind(t testing.TB, err error, want Kind) *Error {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
	var e *Error
	errors.As(err, &e)
	return e
}
