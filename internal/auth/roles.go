package auth

import (
	"fmt"
	"strings"
)

// Role is one of a fixed closed set. admin/operator/viewer form a total
// hierarchy; api_only sits outside it and satisfies no other role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
	RoleAPIOnly  Role = "api_only"
)

// ParseRole validates and normalizes a role name.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOperator:
		return RoleOperator, nil
	case RoleViewer:
		return RoleViewer, nil
	case RoleAPIOnly:
		return RoleAPIOnly, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

var viewerPerms = []string{
	PermCameraRead,
	PermStreamRead,
	PermRecordingRead,
	PermDashboardRead,
	PermAnalyticsRead,
	PermAlertsRead,
	PermSettingsRead,
}

var operatorPerms = append(append([]string{}, viewerPerms...),
	PermCameraCreate,
	PermCameraUpdate,
	PermStreamControl,
	PermRecordingDelete,
	PermTokenCreate,
	PermTokenRead,
	PermTokenUpdate,
	PermTokenDelete,
	PermSecurityRead,
)

var adminPerms = append(append([]string{}, operatorPerms...),
	PermCameraDelete,
	PermUserCreate,
	PermUserRead,
	PermUserUpdate,
	PermUserDelete,
	PermSettingsUpdate,
	PermAuditRead,
	PermAlertsManage,
	PermSystemAdmin,
)

var apiOnlyPerms = []string{
	PermCameraRead,
	PermStreamRead,
	PermRecordingRead,
}

// rolePermissions is the single source of truth for what each role may do.
// Fixed at compile time; never stored per user.
var rolePermissions = map[Role][]string{
	RoleAdmin:    adminPerms,
	RoleOperator: operatorPerms,
	RoleViewer:   viewerPerms,
	RoleAPIOnly:  apiOnlyPerms,
}

// RolePermissions returns the permission set derived from the role. The
// returned map is a fresh copy; callers may mutate it freely.
func RolePermissions(r Role) map[string]struct{} {
	perms := rolePermissions[r]
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// RoleHolds reports whether the role's derived set contains the permission.
func RoleHolds(r Role, perm string) bool {
	_, ok := RolePermissions(r)[perm]
	return ok
}

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// RoleAtLeast reports whether actor satisfies the required role. admin
// satisfies everything in the hierarchy; api_only satisfies only itself.
func RoleAtLeast(actor, required Role) bool {
	if actor == required {
		return true
	}
	ar, ok := roleRank[actor]
	if !ok {
		return false
	}
	rr, ok := roleRank[required]
	if !ok {
		return false
	}
	return ar >= rr
}
