package auth

// Permission tags are opaque strings drawn from a fixed catalog, grouped by
// resource. The catalog is closed: nothing outside it can be granted to a
// role or attached to an API token.
const (
	PermCameraCreate = "camera:create"
	PermCameraRead   = "camera:read"
	PermCameraUpdate = "camera:update"
	PermCameraDelete = "camera:delete"

	PermStreamRead    = "stream:read"
	PermStreamControl = "stream:control"

	PermRecordingRead   = "recording:read"
	PermRecordingDelete = "recording:delete"

	PermUserCreate = "user:create"
	PermUserRead   = "user:read"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"

	PermTokenCreate = "token:create"
	PermTokenRead   = "token:read"
	PermTokenUpdate = "token:update"
	PermTokenDelete = "token:delete"

	PermDashboardRead = "dashboard:read"
	PermSystemAdmin   = "system:admin"
	PermAuditRead     = "audit:read"
	PermSecurityRead  = "security:read"

	PermSettingsRead   = "settings:read"
	PermSettingsUpdate = "settings:update"

	PermAnalyticsRead = "analytics:read"

	PermAlertsRead   = "alerts:read"
	PermAlertsManage = "alerts:manage"
)

var catalog = []string{
	PermCameraCreate, PermCameraRead, PermCameraUpdate, PermCameraDelete,
	PermStreamRead, PermStreamControl,
	PermRecordingRead, PermRecordingDelete,
	PermUserCreate, PermUserRead, PermUserUpdate, PermUserDelete,
	PermTokenCreate, PermTokenRead, PermTokenUpdate, PermTokenDelete,
	PermDashboardRead, PermSystemAdmin, PermAuditRead, PermSecurityRead,
	PermSettingsRead, PermSettingsUpdate,
	PermAnalyticsRead,
	PermAlertsRead, PermAlertsManage,
}

var catalogSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(catalog))
	for _, p := range catalog {
		set[p] = struct{}{}
	}
	return set
}()

// Catalog returns a copy of the full permission catalog.
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// KnownPermission reports whether the tag belongs to the catalog.
func KnownPermission(p string) bool {
	_, ok := catalogSet[p]
	return ok
}
