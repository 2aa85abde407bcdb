package permission

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

const ownSuffix = "_own"

// Resolver answers capability and access questions against a frozen
// role table. It is safe for concurrent use.
type Resolver struct {
	registry *Registry
	roles    *RoleManager
}

// NewResolver compiles DefaultRolePermissions.
func NewResolver() (*Resolver, error) {
	return NewResolverFromTable(DefaultRolePermissions())
}

// NewResolverFromTable compiles table. Every valid role must be present.
func NewResolverFromTable(table map[Role][]string) (*Resolver, error) {
	registry := NewRegistry()
	roles := NewRoleManager(registry)

	for _, role := range Roles() {
		perms, ok := table[role]
		if !ok {
			return nil, fmt.Errorf("role %q has no permission set", role)
		}
		for _, perm := range perms {
			if _, err := registry.Register(perm); err != nil {
				return nil, fmt.Errorf("register %q: %w", perm, err)
			}
		}
	}
	registry.Freeze()

	for _, role := range Roles() {
		if err := roles.RegisterRole(role, table[role]); err != nil {
			return nil, err
		}
	}
	roles.Freeze()

	return &Resolver{registry: registry, roles: roles}, nil
}

// Resolve returns the sorted capability set of role. Unknown roles resolve
// to an empty set.
func (r *Resolver) Resolve(role Role) []string {
	mask, ok := r.roles.Mask(role)
	if !ok {
		return nil
	}

	out := make([]string, 0, mask.Count())
	for bit := 0; bit < maxBits; bit++ {
		if !mask.Has(bit) {
			continue
		}
		if name, ok := r.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// HasPermission reports whether the actor's role set contains perm.
func (r *Resolver) HasPermission(actor Actor, perm string) bool {
	bit, ok := r.registry.Bit(perm)
	if !ok {
		return false
	}
	mask, ok := r.roles.Mask(actor.Role)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// CanAccess decides whether actor may perform action on a resource of
// resourceType owned by ownerID. Pass uuid.Nil when the resource has no owner.
func (r *Resolver) CanAccess(actor Actor, resourceType string, ownerID uuid.UUID, action string) bool {
	if actor.Role == RoleAdmin {
		return true
	}

	if r.HasPermission(actor, Name(resourceType, action)) {
		return true
	}

	if ownerID != uuid.Nil && actor.ID != uuid.Nil && ownerID == actor.ID {
		return r.HasPermission(actor, Name(resourceType, action+ownSuffix))
	}

	return false
}
