package models

import (
	"fmt"
	"strings"
)

// Role is ordered: BUDDY < HR < PRESIDENT < ADMIN. Compare with Rank, never
// with the string value.
type Role string

const (
	RoleBuddy     Role = "BUDDY"
	RoleHR        Role = "HR"
	RolePresident Role = "PRESIDENT"
	RoleAdmin     Role = "ADMIN"
)

// Roles lists every role from lowest to highest rank.
func Roles() []Role {
	return []Role{RoleBuddy, RoleHR, RolePresident, RoleAdmin}
}

// Rank returns the numeric order of the role. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleBuddy:
		return 1
	case RoleHR:
		return 2
	case RolePresident:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

func (r Role) IsValid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r ranks equal to or above other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// Outranks reports whether r ranks strictly above other.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// ParseRole accepts any casing of a known role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
