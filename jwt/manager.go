package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AlgorithmHS256 is the only supported signing algorithm.
const AlgorithmHS256 = "HS256"

const (
	bearerPrefix     = "Bearer "
	defaultAccessTTL = time.Hour
	defaultRefresh   = 7 * 24 * time.Hour
	defaultResetTTL  = time.Hour
)

var (
	// ErrTokenInvalid wraps every validation failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is joined with ErrTokenInvalid for expired tokens.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenType is joined with ErrTokenInvalid when a token of one shape is
	// presented where the other is required.
	ErrTokenType = errors.New("wrong token type")
	// ErrMissingBearer is returned by ExtractBearerToken.
	ErrMissingBearer = errors.New("missing bearer token")
)

// Config configures a Manager. Zero TTLs take the defaults.
type Config struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Manager signs and validates tokens with a single HMAC key.
type Manager struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewManager validates the secret and returns an immutable Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := ValidateSigningSecret(cfg.Secret); err != nil {
		return nil, err
	}
	if cfg.Algorithm != "" && !strings.EqualFold(cfg.Algorithm, AlgorithmHS256) {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	m := &Manager{
		key:        []byte(cfg.Secret),
		accessTTL:  orDefault(cfg.AccessTTL, defaultAccessTTL),
		refreshTTL: orDefault(cfg.RefreshTTL, defaultRefresh),
		resetTTL:   orDefault(cfg.ResetTTL, defaultResetTTL),
		now:        cfg.Now,
	}
	if m.accessTTL < 0 || m.refreshTTL < 0 || m.resetTTL < 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if m.now == nil {
		m.now = time.Now
	}

	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	return m, nil
}

func orDefault(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

// AccessTTL returns the access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueTokenPair signs an access and a refresh token for identity. Both share
// subject, email, role and issued-at and differ only in expiry.
func (m *Manager) IssueTokenPair(identity Identity) (TokenPair, error) {
	if identity.ID == uuid.Nil {
		return TokenPair{}, errors.New("identity has no id")
	}
	if !identity.Role.Valid() {
		return TokenPair{}, fmt.Errorf("identity has unknown role %q", identity.Role)
	}

	issuedAt := m.now()

	access, err := m.sign(NewClaims(identity, issuedAt, m.accessTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := m.sign(NewClaims(identity, issuedAt, m.refreshTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.accessTTL / time.Second),
	}, nil
}

// ValidateToken verifies a login token and returns its claims. Reset tokens
// are rejected with ErrTokenType.
func (m *Manager) ValidateToken(token string) (*Claims, error) {
	parsed := &loginClaims{}
	if err := m.parse(token, parsed); err != nil {
		return nil, err
	}

	if parsed.Type != "" {
		return nil, fmt.Errorf("%w: %w: type %q", ErrTokenInvalid, ErrTokenType, parsed.Type)
	}
	if err := m.checkExpiry(parsed.ExpiresAt); err != nil {
		return nil, err
	}
	if !parsed.Role.Valid() {
		return nil, fmt.Errorf("%w: %w: role %q", ErrTokenInvalid, ErrTokenType, parsed.Role)
	}

	userID, err := uuid.Parse(parsed.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %w", ErrTokenInvalid, err)
	}

	claims := parsed.Claims
	claims.userID = userID
	return &claims, nil
}

// IssuePasswordResetToken signs a short-lived reset token for userID.
func (m *Manager) IssuePasswordResetToken(userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", errors.New("reset token requires a user id")
	}

	issuedAt := m.now()
	return m.sign(&ResetClaims{
		Type: PasswordResetType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.resetTTL)),
		},
	})
}

// ValidatePasswordResetToken verifies a reset token and returns its subject.
// Login tokens are rejected with ErrTokenType.
func (m *Manager) ValidatePasswordResetToken(token string) (uuid.UUID, error) {
	claims := &ResetClaims{}
	if err := m.parse(token, claims); err != nil {
		return uuid.Nil, err
	}

	if claims.Type != PasswordResetType {
		return uuid.Nil, fmt.Errorf("%w: %w: type %q", ErrTokenInvalid, ErrTokenType, claims.Type)
	}
	if err := m.checkExpiry(claims.ExpiresAt); err != nil {
		return uuid.Nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject: %w", ErrTokenInvalid, err)
	}
	return userID, nil
}

// ExtractBearerToken returns the token from an Authorization header value.
// The value must start with "Bearer " and carry a non-empty remainder.
func ExtractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingBearer
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

func (m *Manager) parse(token string, claims jwt.Claims) error {
	_, err := m.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.key, nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, ErrTokenExpired)
	}
	return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
}

// checkExpiry repeats the expiry test against the manager clock even though
// the parser already enforces it.
func (m *Manager) checkExpiry(exp *jwt.NumericDate) error {
	if exp == nil || exp.Time.Before(m.now()) {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, ErrTokenExpired)
	}
	return nil
}
