package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camstack.org/internal/audit"
	"camstack.org/internal/auth"
	"camstack.org/internal/camera"
	"camstack.org/internal/dashboard"
	"camstack.org/internal/events"
	"camstack.org/internal/httpapi"
	"camstack.org/internal/maintenance"
	"camstack.org/internal/obs"
	"camstack.org/internal/settings"
	"camstack.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("CAMSTACK_COMMIT"))

	secret := os.Getenv("CAMSTACK_AUTH_SECRET")
	if secret == "" {
		log.Fatal("CAMSTACK_AUTH_SECRET is required")
	}

	// Storage: Postgres when a DSN is configured, in-memory otherwise.
	// The in-memory path exists for local development only.
	var (
		authStore     auth.Store
		cameraStore   camera.Store
		settingsStore settings.Store
		auditStore    audit.Store
		probe         httpapi.ReadyProbe
	)
	if dsn := os.Getenv("CAMSTACK_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		authStore = store
		cameraStore = store.Cameras()
		settingsStore = store.Settings()
		auditStore = store.Audit()
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		log.Print("CAMSTACK_PG_DSN not set, using in-memory stores")
		authStore = auth.NewMemoryStore()
		cameraStore = camera.NewMemoryStore()
		settingsStore = settings.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
	}

	hasher := auth.NewBcryptHasher(12)
	sessions, err := auth.NewSessions(authStore.Users(), hasher, []byte(secret))
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	tokens := auth.NewTokens(authStore.Tokens(), authStore.Users())

	bus := events.NewBus()
	cameras, err := camera.NewService(cameraStore,
		camera.WithStatusHook(httpapi.PublishStatusEvent(bus)))
	if err != nil {
		log.Fatalf("cameras: %v", err)
	}
	urls := camera.NewURLBuilder(
		envOr("CAMSTACK_RTMP_BASE", "rtmp://localhost:1935/live"),
		envOr("CAMSTACK_HLS_BASE", "http://localhost:8088"),
	)

	trail, err := audit.NewRecorder(auditStore)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	dash, err := dashboard.NewService(cameras, authStore.Users(), authStore.Tokens(), trail)
	if err != nil {
		log.Fatalf("dashboard: %v", err)
	}

	sweeper, err := maintenance.New(tokens, cameras, trail)
	if err != nil {
		log.Fatalf("maintenance: %v", err)
	}
	if err := sweeper.Start(); err != nil {
		log.Fatalf("maintenance start: %v", err)
	}
	defer sweeper.Stop()

	api, err := httpapi.New(httpapi.Deps{
		Sessions:  sessions,
		Tokens:    tokens,
		Users:     authStore.Users(),
		Hasher:    hasher,
		Cameras:   cameras,
		URLs:      urls,
		Settings:  settingsStore,
		Dashboard: dash,
		Audit:     trail,
		Events:    bus,
	}, probe, version)
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	srv := &http.Server{
		Addr:              envOr("CAMSTACK_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: /v1/events/cameras holds the response open.
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("Starting camstack-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
