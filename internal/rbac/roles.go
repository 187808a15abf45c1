package rbac

// Role names. Keep these stable; they are part of token and authorization contracts.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// Set is an allow-list of roles.
type Set map[string]struct{}

func NewSet(roles ...string) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s Set) Has(role string) bool {
	_, ok := s[role]
	return ok
}

func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	return out
}
