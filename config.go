package medauth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
)

// Environment names recognised by the security report.
const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

// Config is the complete engine configuration. It loads from the
// environment (LoadConfig) or from YAML with environment overrides
// (LoadConfigFile).
type Config struct {
	Environment string          `yaml:"environment" env:"ENVIRONMENT"`
	JWT         JWTConfig       `yaml:"jwt"`
	Password    password.Config `yaml:"password" envPrefix:"ARGON2_"`
	TOTP        TOTPConfig      `yaml:"totp" envPrefix:"TOTP_"`
	Audit       AuditConfig     `yaml:"audit" envPrefix:"AUDIT_"`
	Users       UsersConfig     `yaml:"users" envPrefix:"USERS_"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Metrics     MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Log         LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the token signing settings. Lifetimes are expressed in
// whole hours and days to match the deployment environment variables.
type JWTConfig struct {
	Secret                string        `yaml:"secret" env:"JWT_SECRET"`
	ExpirationHours       int           `yaml:"expiration_hours" env:"JWT_EXPIRATION_HOURS"`
	RefreshExpirationDays int           `yaml:"refresh_expiration_days" env:"JWT_REFRESH_EXPIRATION_DAYS"`
	Algorithm             string        `yaml:"algorithm" env:"JWT_ALGORITHM"`
	ResetExpiration       time.Duration `yaml:"reset_expiration" env:"JWT_RESET_EXPIRATION"`
}

// AccessTTL is the access token lifetime.
func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// RefreshTTL is the refresh token lifetime.
func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpirationDays) * 24 * time.Hour
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig tunes RFC 6238 two-factor codes.
type TOTPConfig struct {
	Issuer string `yaml:"issuer" env:"ISSUER"`
	Period int    `yaml:"period" env:"PERIOD"`
	Digits int    `yaml:"digits" env:"DIGITS"`
	Skew   int    `yaml:"skew" env:"SKEW"`
}

/*
====================================
AUDIT / METRICS / LOG CONFIG
====================================
*/

// AuditConfig selects the audit store built by the medauth binary.
type AuditConfig struct {
	// Backend is one of memory, stdout, redis, postgres, sqlite, kafka.
	Backend     string   `yaml:"backend" env:"BACKEND"`
	RedisAddr   string   `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisStream string   `yaml:"redis_stream" env:"REDIS_STREAM"`
	PostgresDSN string   `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	SQLitePath  string   `yaml:"sqlite_path" env:"SQLITE_PATH"`
	KafkaTopic  string   `yaml:"kafka_topic" env:"KAFKA_TOPIC"`
	Brokers     []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	// Breaker wraps networked backends with a circuit breaker.
	Breaker bool `yaml:"breaker" env:"BREAKER"`
}

// UsersConfig selects the account store built by the medauth binary.
type UsersConfig struct {
	// Backend is memory or postgres.
	Backend     string `yaml:"backend" env:"BACKEND"`
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
}

// RateLimitConfig throttles the public auth endpoints of the medauth binary
// with fixed windows kept in Redis.
type RateLimitConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"latency_histograms" env:"LATENCY_HISTOGRAMS"`
}

// LogConfig configures the JSON logger.
type LogConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Service string `yaml:"service" env:"SERVICE"`
}

var auditBackends = map[string]struct{}{
	"memory": {}, "stdout": {}, "redis": {}, "postgres": {}, "sqlite": {}, "kafka": {},
}

// DefaultConfig returns every default except the signing secret, which has
// no safe default.
func DefaultConfig() Config {
	return Config{
		Environment: EnvironmentDevelopment,
		JWT: JWTConfig{
			ExpirationHours:       1,
			RefreshExpirationDays: 7,
			Algorithm:             jwt.AlgorithmHS256,
			ResetExpiration:       time.Hour,
		},
		Password: password.DefaultConfig(),
		TOTP: TOTPConfig{
			Issuer: "MedAuth",
			Period: 30,
			Digits: 6,
			Skew:   1,
		},
		Audit: AuditConfig{
			Backend:     "memory",
			RedisStream: "medauth:audit",
			KafkaTopic:  "medauth.audit",
		},
		Users:     UsersConfig{Backend: "memory"},
		RateLimit: RateLimitConfig{Prefix: "medauth:rl:"},
		Metrics:   MetricsConfig{Enabled: true},
		Log: LogConfig{
			Level:   "info",
			Service: "medauth",
		},
	}
}

// LoadConfig returns DefaultConfig overridden by environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads YAML from path over DefaultConfig, then applies
// environment overrides.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with. A weak
// signing secret is always fatal.
func (c *Config) Validate() error {
	// JWT
	if err := jwt.ValidateSigningSecret(c.JWT.Secret); err != nil {
		return err
	}
	if !strings.EqualFold(c.JWT.Algorithm, jwt.AlgorithmHS256) {
		return fmt.Errorf("unsupported JWT algorithm %q", c.JWT.Algorithm)
	}
	if c.JWT.ExpirationHours <= 0 {
		return errors.New("JWT ExpirationHours must be > 0")
	}
	if c.JWT.RefreshExpirationDays <= 0 {
		return errors.New("JWT RefreshExpirationDays must be > 0")
	}
	if c.JWT.RefreshTTL() <= c.JWT.AccessTTL() {
		return errors.New("JWT refresh lifetime must exceed access lifetime")
	}
	if c.JWT.ResetExpiration <= 0 {
		return errors.New("JWT ResetExpiration must be > 0")
	}

	// Password
	if err := c.Password.Validate(); err != nil {
		return err
	}

	// TOTP
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must not be empty")
	}

	// Audit
	if _, ok := auditBackends[c.Audit.Backend]; !ok {
		return fmt.Errorf("unknown audit backend %q", c.Audit.Backend)
	}

	// Users
	switch c.Users.Backend {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Users.PostgresDSN) == "" {
			return errors.New("Users PostgresDSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown users backend %q", c.Users.Backend)
	}

	if c.RateLimit.Enabled && strings.TrimSpace(c.RateLimit.RedisAddr) == "" {
		return errors.New("RateLimit RedisAddr is required when rate limiting is enabled")
	}

	return nil
}

// LintWarning is a non-fatal configuration finding.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of findings returned by Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, len(r))
	for i, w := range r {
		codes[i] = w.Code
	}
	return codes
}

// Lint reports settings that are valid but weaker than recommended.
func (c Config) Lint() LintResult {
	var ws LintResult
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.JWT.ExpirationHours > 8 {
		add("access_ttl_long", "access tokens live longer than 8 hours and cannot be revoked")
	}
	if c.JWT.RefreshExpirationDays > 30 {
		add("refresh_ttl_long", "refresh tokens live longer than 30 days")
	}
	if c.Password.Memory < password.DefaultConfig().Memory {
		add("argon2_memory_low", "Argon2 memory is below 64 MiB")
	}
	if c.TOTP.Skew > 1 {
		add("totp_skew_wide", "TOTP accepts codes more than one period away")
	}
	if c.Audit.Backend == "memory" && c.Environment == EnvironmentProduction {
		add("audit_memory_in_production", "the in-memory audit store loses entries on restart")
	}
	if c.Audit.Backend == "kafka" {
		add("audit_write_only", "the kafka audit store cannot answer audit queries")
	}
	if !c.RateLimit.Enabled && c.Environment == EnvironmentProduction {
		add("rate_limit_disabled", "login, register and password reset are not throttled")
	}
	if !c.Metrics.Enabled {
		add("metrics_disabled", "authentication counters are disabled")
	}
	return ws
}
