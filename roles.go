package cms

// UserRole is the user's role
type UserRole string

const (
	// RoleUser can read and manage its own profile
	RoleUser UserRole = "user"
	// RoleAdmin can also manage content and other users
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role may mutate content
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// Allows reports whether r is one of roles. No roles means anyone.
func (r UserRole) Allows(roles ...UserRole) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (r UserRole) String() string {
	return string(r)
}
