package permission

import (
	"errors"
	"fmt"
	"sync"
)

// RoleManager holds the compiled capability mask of each role.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[Role]Mask64
	frozen bool
}

// NewRoleManager returns a manager that resolves names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[Role]Mask64),
	}
}

// RegisterRole compiles permissionNames into a mask for role. Every name must
// already be registered.
func (rm *RoleManager) RegisterRole(role Role, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if _, exists := rm.roles[role]; exists {
		return fmt.Errorf("role %q already registered", role)
	}

	var mask Mask64
	for _, perm := range permissionNames {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return fmt.Errorf("permission not registered: %s", perm)
		}
		mask.Set(bit)
	}

	rm.roles[role] = mask
	return nil
}

// Mask returns the compiled mask for role.
func (rm *RoleManager) Mask(role Role) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	mask, ok := rm.roles[role]
	return mask, ok
}

func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
