package medauth

import (
	"context"
	"log/slog"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/permission"
)

// operatorActor attributes accounts created by ProvisionUser.
var operatorActor = audit.Actor{Email: "operator", Role: "system"}

// CreateUser creates an account on behalf of a caller holding user:create.
// Any role may be assigned. The new account is not logged in.
func (e *Engine) CreateUser(ctx context.Context, claims *jwt.Claims, req CreateUserRequest) (UserProfile, error) {
	if err := e.RequirePermission(ctx, claims, permission.UserCreate); err != nil {
		return UserProfile{}, err
	}
	if err := validateRequest(req); err != nil {
		return UserProfile{}, err
	}

	creator := actorFor(claims)
	user, err := e.createAccount(ctx, req, &creator)
	if err != nil {
		return UserProfile{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.logger.InfoContext(ctx, "user created",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role.String()),
		slog.String("created_by", creator.ID.String()),
	)
	return user.Profile(), nil
}

// ProvisionUser creates an account with no acting user. It bootstraps the
// first administrator from the command line and must not be exposed on an
// unauthenticated endpoint.
func (e *Engine) ProvisionUser(ctx context.Context, req CreateUserRequest) (UserProfile, error) {
	if err := e.ready(); err != nil {
		return UserProfile{}, err
	}
	if err := validateRequest(req); err != nil {
		return UserProfile{}, err
	}

	creator := operatorActor
	user, err := e.createAccount(ctx, req, &creator)
	if err != nil {
		return UserProfile{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.logger.InfoContext(ctx, "user provisioned",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role.String()),
	)
	return user.Profile(), nil
}
