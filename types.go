package medauth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/permission"
)

// User is the account record owned by the UserStore. PasswordHash and
// TwoFactorSecret never leave the engine; use Profile for outward views.
type User struct {
	ID               uuid.UUID       `json:"id"`
	Email            string          `json:"email"`
	PasswordHash     string          `json:"-"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Role             permission.Role `json:"role"`
	IsActive         bool            `json:"is_active"`
	IsVerified       bool            `json:"is_verified"`
	TwoFactorEnabled bool            `json:"two_factor_enabled"`
	TwoFactorSecret  string          `json:"-"`
	// TOTPLastCounter is the last accepted time step; codes at or before it
	// are rejected.
	TOTPLastCounter  int64           `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	LastLogin        *time.Time      `json:"last_login,omitempty"`
	LicenseNumber    string          `json:"license_number,omitempty"`
	Department       string          `json:"department,omitempty"`
}

// UserProfile is the outward projection of a User.
type UserProfile struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Role             string     `json:"role"`
	IsActive         bool       `json:"isActive"`
	IsVerified       bool       `json:"is_verified"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLogin        *time.Time `json:"lastLogin"`
	LicenseNumber    string     `json:"license_number,omitempty"`
	Department       string     `json:"department,omitempty"`
}

// Profile returns the outward view of u.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:               u.ID,
		Email:            u.Email,
		Name:             strings.TrimSpace(u.FirstName + " " + u.LastName),
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             u.Role.String(),
		IsActive:         u.IsActive,
		IsVerified:       u.IsVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		LastLogin:        u.LastLogin,
		LicenseNumber:    u.LicenseNumber,
		Department:       u.Department,
	}
}

func (u User) identity() jwt.Identity {
	return jwt.Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// UserStore persists accounts. Lookups with no match return ErrUserNotFound
// and CreateUser on a taken email returns ErrUserExists; the engine passes
// both through unchanged.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
}

// ResetNotifier delivers password reset tokens, typically by email.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// ResetNotifierFunc adapts a function to ResetNotifier.
type ResetNotifierFunc func(ctx context.Context, email, token string) error

func (f ResetNotifierFunc) SendPasswordReset(ctx context.Context, email, token string) error {
	return f(ctx, email, token)
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8,max=128"`
	FirstName     string `json:"first_name" validate:"required,min=1,max=100"`
	LastName      string `json:"last_name" validate:"required,min=1,max=100"`
	Role          string `json:"role" validate:"required,oneof=doctor patient technician"`
	LicenseNumber string `json:"license_number,omitempty" validate:"omitempty,max=64"`
	Department    string `json:"department,omitempty" validate:"omitempty,max=100"`
}

// CreateUserRequest creates an account on behalf of an administrator or an
// operator, and may assign any role.
type CreateUserRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8,max=128"`
	FirstName     string `json:"first_name" validate:"required,min=1,max=100"`
	LastName      string `json:"last_name" validate:"required,min=1,max=100"`
	Role          string `json:"role" validate:"required,oneof=admin doctor patient technician"`
	LicenseNumber string `json:"license_number,omitempty" validate:"omitempty,max=64"`
	Department    string `json:"department,omitempty" validate:"omitempty,max=100"`
}

// LoginRequest authenticates with email and password, plus a two-factor
// code when the account has two-factor enabled.
type LoginRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest changes the caller's own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// PasswordResetRequest asks for a reset token to be sent to Email.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmation sets a new password with a reset token.
type PasswordResetConfirmation struct {
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// TOTPCodeRequest carries a two-factor code.
type TOTPCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,min=6,max=8"`
}

// LoginResponse is returned by Register, Login and Refresh.
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	User         UserProfile `json:"user"`
}

func newLoginResponse(pair jwt.TokenPair, user User) LoginResponse {
	return LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         user.Profile(),
	}
}

// AuthContext describes a verified access token.
type AuthContext struct {
	Valid       bool      `json:"valid"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
}

// TOTPSetup holds the base32 secret and otpauth URI returned by SetupTOTP.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}
