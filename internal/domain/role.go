package domain

type Role string

const (
	RoleTenant Role = "TENANT"
	RoleHost   Role = "HOST"
	RoleAdmin  Role = "ADMIN"
)

// DefaultRoles is the fallback role set; an account never ends up with an
// empty set.
func DefaultRoles() []Role {
	return []Role{RoleTenant}
}

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleTenant, RoleHost, RoleAdmin:
		return Role(value), true
	}
	return "", false
}
