package maintenance

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"camstack.org/internal/audit"
	"camstack.org/internal/auth"
	"camstack.org/internal/camera"
	"camstack.org/internal/obs"
)

const (
	tokenSweepSpec  = "@hourly"
	auditPurgeSpec  = "@daily"
	cameraSweepSpec = "* * * * *"

	defaultAuditRetention = 90 * 24 * time.Hour
	defaultCameraMaxAge   = 2 * time.Minute
)

// Sweeper runs the recurring housekeeping jobs: expired-token revocation,
// audit retention and the stale-camera offline sweep. Every job is
// idempotent, so a partial run simply completes on the next tick.
type Sweeper struct {
	tokens  *auth.Tokens
	cameras *camera.Service
	trail   *audit.Recorder

	auditRetention time.Duration
	cameraMaxAge   time.Duration

	cron *cron.Cron
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithAuditRetention overrides how long audit entries are kept.
func WithAuditRetention(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.auditRetention = d
		}
	}
}

// WithCameraMaxAge overrides how long a camera may go unseen before the
// sweep marks it offline.
func WithCameraMaxAge(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.cameraMaxAge = d
		}
	}
}

// New constructs the sweeper; Start schedules the jobs.
func New(tokens *auth.Tokens, cameras *camera.Service, trail *audit.Recorder, opts ...Option) (*Sweeper, error) {
	if tokens == nil || cameras == nil || trail == nil {
		return nil, errors.New("maintenance: all services are required")
	}
	s := &Sweeper{
		tokens:         tokens,
		cameras:        cameras,
		trail:          trail,
		auditRetention: defaultAuditRetention,
		cameraMaxAge:   defaultCameraMaxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the schedules and begins running them.
func (s *Sweeper) Start() error {
	c := cron.New()
	jobs := []struct {
		spec string
		name string
		run  func(context.Context)
	}{
		{tokenSweepSpec, "token_cleanup", s.sweepTokens},
		{auditPurgeSpec, "audit_purge", s.purgeAudit},
		{cameraSweepSpec, "camera_sweep", s.sweepCameras},
	}
	for _, job := range jobs {
		run := job.run
		if _, err := c.AddFunc(job.spec, func() { run(context.Background()) }); err != nil {
			return err
		}
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweepTokens(ctx context.Context) {
	n, err := s.tokens.CleanupExpired(ctx)
	if err != nil {
		obs.Emit("error", "token_cleanup_failed", map[string]any{"error": err.Error()})
		return
	}
	if n > 0 {
		obs.Emit("info", "token_cleanup", map[string]any{"revoked": n})
		s.trail.Record(ctx, "token.cleanup", "token", "", map[string]string{"revoked": strconv.Itoa(n)})
	}
}

func (s *Sweeper) purgeAudit(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.auditRetention)
	n, err := s.trail.PurgeBefore(ctx, cutoff)
	if err != nil {
		obs.Emit("error", "audit_purge_failed", map[string]any{"error": err.Error()})
		return
	}
	if n > 0 {
		obs.Emit("info", "audit_purge", map[string]any{"purged": n})
	}
}

func (s *Sweeper) sweepCameras(ctx context.Context) {
	n, err := s.cameras.MarkStaleOffline(ctx, s.cameraMaxAge)
	if err != nil {
		obs.Emit("error", "camera_sweep_failed", map[string]any{"error": err.Error()})
		return
	}
	if n > 0 {
		obs.Emit("info", "camera_sweep", map[string]any{"marked_offline": n})
	}
	if counts, err := s.cameras.Counts(ctx); err == nil {
		obs.SetCamerasByStatus(string(camera.StatusOffline), counts.Offline)
		obs.SetCamerasByStatus(string(camera.StatusOnline), counts.Online)
		obs.SetCamerasByStatus(string(camera.StatusStreaming), counts.Streaming)
	}
}
