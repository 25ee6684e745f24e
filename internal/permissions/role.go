package permissions

// Role is a privilege level; higher values dominate lower ones
type Role int

const (
	RoleUser Role = iota
	RoleModerator
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleModerator:
		return "Moderator"
	case RoleAdmin:
		return "Admin"
	case RoleOwner:
		return "Owner"
	default:
		return "User"
	}
}

// Satisfies reports whether r meets the min requirement
func (r Role) Satisfies(min Role) bool {
	return r >= min
}
