package permission

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is one of the closed set of account roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
	RoleTechnician Role = "technician"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleDoctor, RolePatient, RoleTechnician}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient, RoleTechnician:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Actor is the identity a decision is made for.
type Actor struct {
	ID   uuid.UUID
	Role Role
}
