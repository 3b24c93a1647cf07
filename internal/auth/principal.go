package auth

// ActorKind distinguishes how a request was authenticated. Exactly one of
// the two credential kinds resolves any given request.
type ActorKind string

const (
	ActorUser  ActorKind = "user"
	ActorToken ActorKind = "token"
)

// Principal is a resolved actor with its effective permission set. For
// session actors the set is derived from the role at resolution time; for
// token actors it is the token's stored subset.
type Principal struct {
	Kind        ActorKind
	UserID      string
	Username    string
	Role        Role
	TokenID     string
	Permissions map[string]struct{}
}

// UserPrincipal builds a principal for a session-authenticated user. The
// permission set is freshly derived from the role, so role changes take
// effect on the next request.
func UserPrincipal(u *User) Principal {
	return Principal{
		Kind:        ActorUser,
		UserID:      u.ID,
		Username:    u.Username,
		Role:        u.Role,
		Permissions: RolePermissions(u.Role),
	}
}

// TokenPrincipal builds a principal for an API-token actor. The token's
// stored permission subset is authoritative; for role comparisons the actor
// counts as api_only regardless of the owner's role.
func TokenPrincipal(t *APIToken, owner *User) Principal {
	set := make(map[string]struct{}, len(t.Permissions))
	for _, p := range t.Permissions {
		set[p] = struct{}{}
	}
	return Principal{
		Kind:        ActorToken,
		UserID:      owner.ID,
		Username:    owner.Username,
		Role:        RoleAPIOnly,
		TokenID:     t.ID,
		Permissions: set,
	}
}

// HasPermission reports whether the actor holds the permission.
func (p Principal) HasPermission(perm string) bool {
	_, ok := p.Permissions[perm]
	return ok
}

// HasAny reports whether at least one of the permissions holds.
func (p Principal) HasAny(perms ...string) bool {
	for _, perm := range perms {
		if p.HasPermission(perm) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of the permissions holds.
func (p Principal) HasAll(perms ...string) bool {
	for _, perm := range perms {
		if !p.HasPermission(perm) {
			return false
		}
	}
	return true
}

// RoleAtLeast reports whether the actor satisfies the required role.
func (p Principal) RoleAtLeast(required Role) bool {
	return RoleAtLeast(p.Role, required)
}

// IsAdmin is a shorthand for session actors with the admin role.
func (p Principal) IsAdmin() bool {
	return p.Kind == ActorUser && p.Role == RoleAdmin
}
