package medauth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/internal/logging"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
	"github.com/meddevice/medauth/permission"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config      Config
	users       UserStore
	store       audit.Store
	notifier    ResetNotifier
	logger      *slog.Logger
	permissions map[permission.Role][]string
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig. The signing secret must
// still be supplied through WithConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserStore sets the account store. Required.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithAuditStore sets where audit entries are written. Without it entries
// are kept in memory.
func (b *Builder) WithAuditStore(store audit.Store) *Builder {
	b.store = store
	return b
}

// WithResetNotifier sets how password reset tokens reach the user.
func (b *Builder) WithResetNotifier(n ResetNotifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the engine logger. It is also the fallback channel for
// failed audit writes.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRolePermissions overrides the role to permission table.
func (b *Builder) WithRolePermissions(table map[permission.Role][]string) *Builder {
	b.permissions = table
	return b
}

// WithClock overrides time.Now for token issuance and TOTP checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the token validation histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns an immutable Engine. A weak
// or placeholder signing secret is a fatal error.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.users == nil {
		return nil, errors.New("user store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:     b.config.JWT.Secret,
		Algorithm:  b.config.JWT.Algorithm,
		AccessTTL:  b.config.JWT.AccessTTL(),
		RefreshTTL: b.config.JWT.RefreshTTL(),
		ResetTTL:   b.config.JWT.ResetExpiration,
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	hasher, err := password.NewArgon2(b.config.Password)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	table := b.permissions
	if table == nil {
		table = permission.DefaultRolePermissions()
	}
	resolver, err := permission.NewResolverFromTable(table)
	if err != nil {
		return nil, fmt.Errorf("permission resolver: %w", err)
	}

	store := b.store
	if store == nil {
		store = audit.NewMemoryStore()
	}

	metrics := NewMetrics(b.config.Metrics)
	recorder := audit.NewRecorder(store,
		audit.WithLogger(logger),
		audit.WithRecordHook(func(audit.Entry) { metrics.Inc(MetricAuditRecorded) }),
		audit.WithFailureHook(func(error) { metrics.Inc(MetricAuditWriteFailure) }),
	)

	b.built = true
	return &Engine{
		config:   b.config,
		users:    b.users,
		tokens:   tokens,
		hasher:   hasher,
		resolver: resolver,
		recorder: recorder,
		notifier: b.notifier,
		totp:     newTOTPManager(b.config.TOTP),
		metrics:  metrics,
		logger:   logger,
		now:      now,
	}, nil
}
