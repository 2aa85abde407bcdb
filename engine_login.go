package medauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
	"github.com/meddevice/medauth/permission"
)

// Register creates an active, unverified account and logs it in. The admin
// role cannot be self-assigned; administrators come from CreateUser or
// ProvisionUser.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (LoginResponse, error) {
	if err := e.ready(); err != nil {
		return LoginResponse{}, err
	}
	if err := validateRequest(req); err != nil {
		return LoginResponse{}, err
	}

	user, err := e.createAccount(ctx, CreateUserRequest(req), nil)
	if err != nil {
		return LoginResponse{}, err
	}

	pair, err := e.tokens.IssueTokenPair(user.identity())
	if err != nil {
		return LoginResponse{}, internalError(err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role.String()),
	)
	return newLoginResponse(pair, user), nil
}

// createAccount stores a new active account. A nil creator means the account
// registered itself.
func (e *Engine) createAccount(ctx context.Context, req CreateUserRequest, creator *audit.Actor) (User, error) {
	if err := password.ValidateStrength(req.Password); err != nil {
		return User{}, strengthError("password", err)
	}
	role, err := permission.ParseRole(req.Role)
	if err != nil {
		return User{}, validationError("Invalid role", err)
	}
	if creator == nil && role == permission.RoleAdmin {
		return User{}, &Error{
			Kind:    KindValidation,
			Message: "Invalid role",
			Fields:  map[string]string{"role": "must be one of: doctor patient technician"},
			Err:     ErrRoleNotSelfAssignable,
		}
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return User{}, internalError(err)
	}

	now := e.now().UTC()
	user := User{
		ID:            uuid.New(),
		Email:         normalizeEmail(req.Email),
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Role:          role,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
		LicenseNumber: req.LicenseNumber,
		Department:    req.Department,
	}

	if err := e.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricRegisterConflict)
			return User{}, conflictError("User with this email already exists", err)
		}
		return User{}, internalError(err)
	}

	actor := actorForUser(user)
	if creator != nil {
		actor = *creator
	}
	e.recorder.Record(ctx, audit.UserManagement(actor, audit.ActionUserCreated, user.ID, user.Email, nil,
		map[string]any{"email": user.Email, "role": user.Role.String()}))
	return user, nil
}

// Login checks email and password, then the two-factor code when the
// account has two-factor enabled. Unknown email, wrong password and a
// deactivated account all fail with the same message.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	if err := e.ready(); err != nil {
		return LoginResponse{}, err
	}
	if err := validateRequest(req); err != nil {
		return LoginResponse{}, err
	}

	email := normalizeEmail(req.Email)
	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResponse{}, e.loginFailure(ctx, uuid.Nil, email, "user not found", ErrInvalidCredentials)
		}
		return LoginResponse{}, internalError(err)
	}

	if !e.hasher.Verify(req.Password, user.PasswordHash) {
		return LoginResponse{}, e.loginFailure(ctx, user.ID, user.Email, "invalid password", ErrInvalidCredentials)
	}
	if !user.IsActive {
		return LoginResponse{}, e.loginFailure(ctx, user.ID, user.Email, "account deactivated", ErrAccountDeactivated)
	}

	if user.TwoFactorEnabled {
		if err := e.checkLoginTOTP(ctx, &user, req.TwoFactorCode); err != nil {
			return LoginResponse{}, err
		}
	}

	now := e.now().UTC()
	user.LastLogin = &now
	if upgrade, err := e.hasher.NeedsUpgrade(user.PasswordHash); err == nil && upgrade {
		if hash, err := e.hasher.Hash(req.Password); err == nil {
			user.PasswordHash = hash
			user.UpdatedAt = now
		}
	}
	if err := e.users.UpdateUser(ctx, user); err != nil {
		// The accepted two-factor step must be stored or the code could be replayed.
		if user.TwoFactorEnabled {
			return LoginResponse{}, internalError(err)
		}
		e.logger.WarnContext(ctx, "last login update failed",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err),
		)
	}

	pair, err := e.tokens.IssueTokenPair(user.identity())
	if err != nil {
		return LoginResponse{}, internalError(err)
	}

	e.recorder.Record(ctx, audit.Authentication(user.ID, user.Email, true, ""))
	e.metricInc(MetricLoginSuccess)
	return newLoginResponse(pair, user), nil
}

func (e *Engine) checkLoginTOTP(ctx context.Context, user *User, code string) error {
	if strings.TrimSpace(code) == "" {
		e.recordLoginFailure(ctx, user.ID, user.Email, "two-factor code required")
		e.metricInc(MetricTOTPRequired)
		return authenticationError("Two-factor authentication code required", ErrTOTPRequired)
	}

	return e.checkTOTP(ctx, user, code)
}

// Refresh exchanges a refresh token for a new pair. The account is
// reloaded so a changed role or deactivation takes effect immediately.
func (e *Engine) Refresh(ctx context.Context, req RefreshRequest) (LoginResponse, error) {
	if err := e.ready(); err != nil {
		return LoginResponse{}, err
	}
	if err := validateRequest(req); err != nil {
		return LoginResponse{}, err
	}

	claims, err := e.tokens.ValidateToken(req.RefreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return LoginResponse{}, e.tokenFailure(ctx, "refresh", err)
	}

	user, err := e.users.GetUser(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			return LoginResponse{}, e.tokenFailure(ctx, "refresh", err)
		}
		return LoginResponse{}, internalError(err)
	}
	if !user.IsActive {
		e.metricInc(MetricRefreshFailure)
		return LoginResponse{}, e.loginFailure(ctx, user.ID, user.Email, "account deactivated", ErrAccountDeactivated)
	}

	pair, err := e.tokens.IssueTokenPair(user.identity())
	if err != nil {
		return LoginResponse{}, internalError(err)
	}

	e.metricInc(MetricRefreshSuccess)
	return newLoginResponse(pair, user), nil
}

// Logout records the event. Tokens are stateless and stay valid until
// they expire.
func (e *Engine) Logout(ctx context.Context, claims *jwt.Claims) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireClaims(ctx, claims); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.Account(actorFor(claims), audit.ActionLogout))
	e.metricInc(MetricLogout)
	return nil
}

// Me returns the caller's profile.
func (e *Engine) Me(ctx context.Context, claims *jwt.Claims) (UserProfile, error) {
	if err := e.ready(); err != nil {
		return UserProfile{}, err
	}
	if err := e.requireClaims(ctx, claims); err != nil {
		return UserProfile{}, err
	}

	user, err := e.users.GetUser(ctx, claims.UserID())
	if err != nil {
		return UserProfile{}, storeError(err)
	}
	return user.Profile(), nil
}

// Authenticate validates an Authorization header value and returns the
// access token claims.
func (e *Engine) Authenticate(ctx context.Context, header string) (*jwt.Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()

	token, err := jwt.ExtractBearerToken(header)
	if err != nil {
		return nil, e.tokenFailure(ctx, "access", err)
	}
	claims, err := e.tokens.ValidateToken(token)
	if err != nil {
		return nil, e.tokenFailure(ctx, "access", err)
	}
	return claims, nil
}

// VerifyToken validates a bare access token and describes it.
func (e *Engine) VerifyToken(ctx context.Context, token string) (AuthContext, error) {
	if err := e.ready(); err != nil {
		return AuthContext{}, err
	}

	claims, err := e.tokens.ValidateToken(token)
	if err != nil {
		return AuthContext{}, e.tokenFailure(ctx, "access", err)
	}

	return AuthContext{
		Valid:       true,
		UserID:      claims.UserID(),
		Email:       claims.Email,
		Role:        claims.Role.String(),
		Permissions: e.resolver.Resolve(claims.Role),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// strengthError turns a policy failure into a validation error on field.
func strengthError(field string, err error) error {
	var se *password.StrengthError
	if errors.As(err, &se) {
		return &Error{
			Kind:    KindValidation,
			Message: "Password does not meet requirements",
			Fields:  map[string]string{field: se.Error()},
			Err:     err,
		}
	}
	return validationError("Password does not meet requirements", err)
}
