package medauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/permission"
)

// Authorize decides whether the caller may perform action on a resource of
// resourceType owned by ownerID. Pass uuid.Nil as ownerID for resources
// without an owner. A denial is audited as UnauthorizedAccess.
func (e *Engine) Authorize(ctx context.Context, claims *jwt.Claims, resourceType string, ownerID uuid.UUID, action string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireClaims(ctx, claims); err != nil {
		return err
	}

	if e.resolver.CanAccess(claims.Actor(), resourceType, ownerID, action) {
		e.metricInc(MetricAuthorizationAllowed)
		return nil
	}

	details := map[string]any{
		"resource_type": resourceType,
		"action":        action,
	}
	if ownerID != uuid.Nil {
		details["owner_id"] = ownerID.String()
	}
	return e.deny(ctx, claims, permission.Name(resourceType, action), details)
}

// RequirePermission checks a single permission name such as "audit:read".
// Ownership is not considered.
func (e *Engine) RequirePermission(ctx context.Context, claims *jwt.Claims, perm string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireClaims(ctx, claims); err != nil {
		return err
	}

	if e.resolver.HasPermission(claims.Actor(), perm) {
		e.metricInc(MetricAuthorizationAllowed)
		return nil
	}
	return e.deny(ctx, claims, perm, map[string]any{"permission": perm})
}

func (e *Engine) deny(ctx context.Context, claims *jwt.Claims, perm string, details map[string]any) error {
	actor := actorFor(claims)
	e.recorder.Record(ctx, audit.SecurityEvent(
		audit.ActionUnauthorizedAccess,
		audit.SeverityWarning,
		fmt.Sprintf("User %s (%s) denied %s", claims.Email, claims.Role, perm),
		&actor,
		details,
	))
	e.metricInc(MetricAuthorizationDenied)
	return authorizationError("Insufficient permissions", ErrPermissionDenied)
}
