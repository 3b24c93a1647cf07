package dashboard

import (
	"context"
	"errors"
	"time"

	"camstack.org/internal/audit"
	"camstack.org/internal/auth"
	"camstack.org/internal/camera"
)

// Summary is the dashboard landing payload. Every figure is computed from
// the live stores; nothing here is synthesized.
type Summary struct {
	Cameras        camera.StatusCounts `json:"cameras"`
	Recordings     RecordingSummary    `json:"recordings"`
	Users          int                 `json:"users"`
	APITokens      int                 `json:"apiTokens"`
	RecentActivity []*audit.Entry      `json:"recentActivity"`
	GeneratedAt    time.Time           `json:"generatedAt"`
}

// RecordingSummary aggregates stored recordings.
type RecordingSummary struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"totalBytes"`
}

const recentActivityLimit = 10

// Service assembles the summary from the domain stores.
type Service struct {
	cameras *camera.Service
	users   auth.UserStore
	tokens  auth.TokenStore
	trail   *audit.Recorder
	now     func() time.Time
}

// NewService constructs the dashboard service.
func NewService(cameras *camera.Service, users auth.UserStore, tokens auth.TokenStore, trail *audit.Recorder) (*Service, error) {
	if cameras == nil || users == nil || tokens == nil || trail == nil {
		return nil, errors.New("dashboard: all stores are required")
	}
	return &Service{cameras: cameras, users: users, tokens: tokens, trail: trail, now: time.Now}, nil
}

// Summary computes the current aggregates.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	counts, err := s.cameras.Counts(ctx)
	if err != nil {
		return nil, err
	}
	recCount, recBytes, err := s.cameras.RecordingTotals(ctx)
	if err != nil {
		return nil, err
	}
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	tokenCount, err := s.tokens.Count(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.trail.List(ctx, audit.Filter{Limit: recentActivityLimit})
	if err != nil {
		return nil, err
	}
	return &Summary{
		Cameras:        counts,
		Recordings:     RecordingSummary{Count: recCount, TotalBytes: recBytes},
		Users:          userCount,
		APITokens:      tokenCount,
		RecentActivity: recent,
		GeneratedAt:    s.now().UTC(),
	}, nil
}
