package auth

import "strings"

// Role is the part an account plays on the platform.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// DefaultRole is assigned to accounts registered without a role.
const DefaultRole = RolePassenger

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalizes s into a Role. Empty input yields DefaultRole.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultRole, true
	}
	r := Role(s)
	return r, r.IsValid()
}

// SelfAssignable reports whether r may be chosen at registration time.
func (r Role) SelfAssignable() bool {
	return r == RolePassenger || r == RoleDriver
}
