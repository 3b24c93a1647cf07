package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"camstack.org/internal/audit"
	"camstack.org/internal/auth"
	"camstack.org/internal/camera"
	"camstack.org/internal/dashboard"
	"camstack.org/internal/events"
	"camstack.org/internal/obs"
	"camstack.org/internal/settings"
)

// ReadyProbe — readiness check (ping the DB when one is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps bundles everything the HTTP layer serves.
type Deps struct {
	Sessions  *auth.Sessions
	Tokens    *auth.Tokens
	Users     auth.UserStore
	Hasher    auth.Hasher
	Cameras   *camera.Service
	URLs      *camera.URLBuilder
	Settings  settings.Store
	Dashboard *dashboard.Service
	Audit     *audit.Recorder
	Events    *events.Bus
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	deps       Deps
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec int
}

// route binds one method+path pattern to a handler with its access rule.
// Permissions live here, not in handler bodies, so the whole policy is
// readable in one place.
type route struct {
	pattern string
	handler http.HandlerFunc
	public  bool
	perms   []string
}

func New(deps Deps, rp ReadyProbe, version string) (*API, error) {
	a := &API{
		mux:        http.NewServeMux(),
		deps:       deps,
		readyProbe: rp,
		version:    version,
		rateBurst:  50,
		ratePerSec: 25,
	}
	g, err := newGate(deps.Sessions, deps.Tokens, deps.Users)
	if err != nil {
		return nil, err
	}

	routes := []route{
		// public surface
		{pattern: "POST /v1/auth/login", handler: a.handleLogin, public: true},
		{pattern: "POST /v1/auth/refresh", handler: a.handleRefresh, public: true},
		{pattern: "POST /webhooks/stream/publish", handler: a.handleStreamPublish, public: true},
		{pattern: "POST /webhooks/stream/publish-done", handler: a.handleStreamPublishDone, public: true},
		{pattern: "POST /webhooks/stream/record-done", handler: a.handleStreamRecordDone, public: true},

		// session-holder operations (no extra permission beyond being a user)
		{pattern: "POST /v1/auth/change-password", handler: a.handleChangePassword},

		// users
		{pattern: "GET /v1/users", handler: a.handleListUsers, perms: []string{auth.PermUserRead}},
		{pattern: "POST /v1/users", handler: a.handleCreateUser, perms: []string{auth.PermUserCreate}},
		{pattern: "GET /v1/users/{id}", handler: a.handleGetUser, perms: []string{auth.PermUserRead}},
		{pattern: "PATCH /v1/users/{id}", handler: a.handleUpdateUser, perms: []string{auth.PermUserUpdate}},
		{pattern: "DELETE /v1/users/{id}", handler: a.handleDeleteUser, perms: []string{auth.PermUserDelete}},

		// API tokens (ownership is enforced in the service layer)
		{pattern: "GET /v1/tokens", handler: a.handleListTokens, perms: []string{auth.PermTokenRead}},
		{pattern: "POST /v1/tokens", handler: a.handleCreateToken, perms: []string{auth.PermTokenCreate}},
		{pattern: "GET /v1/tokens/{id}", handler: a.handleGetToken, perms: []string{auth.PermTokenRead}},
		{pattern: "PATCH /v1/tokens/{id}", handler: a.handleUpdateToken, perms: []string{auth.PermTokenUpdate}},
		{pattern: "DELETE /v1/tokens/{id}", handler: a.handleDeleteToken, perms: []string{auth.PermTokenDelete}},
		{pattern: "POST /v1/tokens/{id}/revoke", handler: a.handleRevokeToken, perms: []string{auth.PermTokenUpdate}},

		// cameras
		{pattern: "GET /v1/cameras", handler: a.handleListCameras, perms: []string{auth.PermCameraRead}},
		{pattern: "POST /v1/cameras", handler: a.handleCreateCamera, perms: []string{auth.PermCameraCreate}},
		{pattern: "GET /v1/cameras/{id}", handler: a.handleGetCamera, perms: []string{auth.PermCameraRead}},
		{pattern: "PATCH /v1/cameras/{id}", handler: a.handleUpdateCamera, perms: []string{auth.PermCameraUpdate}},
		{pattern: "DELETE /v1/cameras/{id}", handler: a.handleDeleteCamera, perms: []string{auth.PermCameraDelete}},
		{pattern: "POST /v1/cameras/{id}/stream-key", handler: a.handleRegenerateStreamKey, perms: []string{auth.PermCameraUpdate}},
		{pattern: "GET /v1/cameras/{id}/urls", handler: a.handleCameraURLs, perms: []string{auth.PermStreamRead}},

		// recordings
		{pattern: "GET /v1/cameras/{id}/recordings", handler: a.handleCameraRecordings, perms: []string{auth.PermRecordingRead}},
		{pattern: "GET /v1/recordings", handler: a.handleListRecordings, perms: []string{auth.PermRecordingRead}},
		{pattern: "DELETE /v1/recordings/{id}", handler: a.handleDeleteRecording, perms: []string{auth.PermRecordingDelete}},

		// settings
		{pattern: "GET /v1/settings", handler: a.handleListSettings, perms: []string{auth.PermSettingsRead}},
		{pattern: "GET /v1/settings/{key}", handler: a.handleGetSetting, perms: []string{auth.PermSettingsRead}},
		{pattern: "PUT /v1/settings/{key}", handler: a.handlePutSetting, perms: []string{auth.PermSettingsUpdate}},

		// dashboard, audit, live events
		{pattern: "GET /v1/dashboard/summary", handler: a.handleDashboardSummary, perms: []string{auth.PermDashboardRead}},
		{pattern: "GET /v1/audit", handler: a.handleListAudit, perms: []string{auth.PermAuditRead}},
		{pattern: "GET /v1/events/cameras", handler: a.handleCameraEvents, perms: []string{auth.PermDashboardRead}},
	}
	for _, rt := range routes {
		a.mux.Handle(rt.pattern, guard(g, rt))
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a, nil
}

// Handler returns the full middleware-wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = LoggingJSON(h)
	h = RequestID(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	return obs.Instrument(h)
}

// guard wraps a route's handler with the gate's authentication and the
// route's declared permission set.
func guard(g *gate, rt route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.public {
			rt.handler(w, r)
			return
		}
		principal, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		if !principal.HasAll(rt.perms...) {
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		rt.handler(w, r.WithContext(ctx))
	})
}

// principal fetches the authenticated principal placed by guard. Handlers
// behind the gate can rely on it being present.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// --- infra handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "camstack-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "camstack-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
