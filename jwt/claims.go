package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/meddevice/medauth/permission"
)

// PasswordResetType is the type marker carried by reset tokens.
const PasswordResetType = "password_reset"

// Identity is what a login token asserts.
type Identity struct {
	ID    uuid.UUID
	Email string
	Role  permission.Role
}

// Claims is the payload of a login (access or refresh) token.
type Claims struct {
	Email string          `json:"email"`
	Role  permission.Role `json:"role"`
	jwt.RegisteredClaims

	userID uuid.UUID
}

// NewClaims stamps identity with issuedAt and an expiry ttl later.
func NewClaims(identity Identity, issuedAt time.Time, ttl time.Duration) *Claims {
	return &Claims{
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		userID: identity.ID,
	}
}

// UserID returns the parsed subject.
func (c *Claims) UserID() uuid.UUID {
	return c.userID
}

// Identity returns the identity the claims assert.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.userID, Email: c.Email, Role: c.Role}
}

// Actor returns the claims as a permission actor.
func (c *Claims) Actor() permission.Actor {
	return permission.Actor{ID: c.userID, Role: c.Role}
}

// loginClaims decodes the login shape plus the reset marker so that a reset
// token presented as a login token is detected.
type loginClaims struct {
	Type string `json:"type,omitempty"`
	Claims
}

// ResetClaims is the payload of a password-reset token.
type ResetClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is returned by login, registration and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
