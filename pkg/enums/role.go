package enums

import "fmt"

// Role maps to the user_role enum in Postgres.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleTenantAdmin   Role = "tenant_admin"
	RoleInstructor    Role = "instructor"
	RoleLearner       Role = "learner"
)

var validRoles = []Role{
	RolePlatformAdmin,
	RoleTenantAdmin,
	RoleInstructor,
	RoleLearner,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value matches the canonical user_role enum.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
