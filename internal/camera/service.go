package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"camstack.org/internal/ids"
)

// Service implements the camera and recording operations on top of a Store.
// Status transitions invoke the configured notify hook so live listeners
// (the dashboard stream) see them as they happen.
type Service struct {
	store  Store
	now    func() time.Time
	notify func(*Camera)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithStatusHook registers a hook invoked after every status transition.
func WithStatusHook(fn func(*Camera)) Option {
	return func(s *Service) {
		if fn != nil {
			s.notify = fn
		}
	}
}

// NewService constructs the camera service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("camera: store is required")
	}
	s := &Service{store: store, now: time.Now, notify: func(*Camera) {}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput carries the caller-supplied camera attributes.
type CreateInput struct {
	Name     string
	Serial   string
	Model    string
	Location string
}

// Create registers a camera. The serial number must be unique; a fresh
// stream key is generated and the camera starts offline and enabled.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Camera, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: camera name is required", ErrInvalidInput)
	}
	serial := strings.TrimSpace(in.Serial)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial number is required", ErrInvalidInput)
	}
	key, err := NewStreamKey()
	if err != nil {
		return nil, err
	}
	c := &Camera{
		ID:        ids.New(),
		Name:      name,
		Serial:    serial,
		Model:     strings.TrimSpace(in.Model),
		Location:  strings.TrimSpace(in.Location),
		StreamKey: key,
		Status:    StatusOffline,
		Enabled:   true,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns one camera by id.
func (s *Service) Get(ctx context.Context, id string) (*Camera, error) {
	return s.store.Find(ctx, id)
}

// List returns cameras matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Camera, error) {
	if f.Status != "" && !KnownStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return s.store.List(ctx, f)
}

// Update applies a partial update. Serial numbers and stream keys are not
// updatable here; the key rotates only through RegenerateStreamKey.
func (s *Service) Update(ctx context.Context, id string, upd Update) (*Camera, error) {
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: camera name is required", ErrInvalidInput)
		}
		c.Name = name
	}
	if upd.Model != nil {
		c.Model = strings.TrimSpace(*upd.Model)
	}
	if upd.Location != nil {
		c.Location = strings.TrimSpace(*upd.Location)
	}
	if upd.Enabled != nil {
		c.Enabled = *upd.Enabled
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the camera.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// RegenerateStreamKey rotates the publish credential. The old key stops
// resolving immediately; an in-flight publish keeps running until the media
// server reconnects.
func (s *Service) RegenerateStreamKey(ctx context.Context, id string) (*Camera, error) {
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := NewStreamKey()
	if err != nil {
		return nil, err
	}
	c.StreamKey = key
	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindByStreamKey resolves a publish credential to its camera.
func (s *Service) FindByStreamKey(ctx context.Context, key string) (*Camera, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	return s.store.FindByStreamKey(ctx, key)
}

// SetStatus records a lifecycle transition and refreshes last-seen.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Camera, error) {
	if !KnownStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	changed := c.Status != status
	c.Status = status
	seen := s.now().UTC()
	c.LastSeen = &seen
	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	if changed {
		s.notify(c)
	}
	return c, nil
}

// MarkStaleOffline transitions cameras that have not been seen within maxAge
// back to offline. Returns the number of cameras transitioned.
func (s *Service) MarkStaleOffline(ctx context.Context, maxAge time.Duration) (int, error) {
	cameras, err := s.store.List(ctx, ListFilter{})
	if err != nil {
		return 0, err
	}
	cutoff := s.now().UTC().Add(-maxAge)
	n := 0
	for _, c := range cameras {
		if c.Status == StatusOffline {
			continue
		}
		if c.LastSeen != nil && c.LastSeen.After(cutoff) {
			continue
		}
		c.Status = StatusOffline
		if err := s.store.Update(ctx, c); err != nil {
			return n, err
		}
		s.notify(c)
		n++
	}
	return n, nil
}

// Counts returns the per-status tally.
func (s *Service) Counts(ctx context.Context) (StatusCounts, error) {
	return s.store.Counts(ctx)
}

// StartRecording opens a recording row for the camera.
func (s *Service) StartRecording(ctx context.Context, cameraID, filePath string) (*Recording, error) {
	if _, err := s.store.Find(ctx, cameraID); err != nil {
		return nil, err
	}
	r := &Recording{
		ID:        ids.New(),
		CameraID:  cameraID,
		FilePath:  strings.TrimSpace(filePath),
		Status:    RecordingActive,
		StartedAt: s.now().UTC(),
	}
	if err := s.store.CreateRecording(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CompleteRecordingInput carries the media server's record-done payload.
type CompleteRecordingInput struct {
	CameraID    string
	FilePath    string
	SizeBytes   int64
	DurationSec int64
	Failed      bool
}

// CompleteRecording closes the camera's most recent open recording, or
// creates a completed row when the media server never reported a start.
func (s *Service) CompleteRecording(ctx context.Context, in CompleteRecordingInput) (*Recording, error) {
	if _, err := s.store.Find(ctx, in.CameraID); err != nil {
		return nil, err
	}
	open, err := s.openRecording(ctx, in.CameraID)
	if err != nil {
		return nil, err
	}
	done := s.now().UTC()
	status := RecordingCompleted
	if in.Failed {
		status = RecordingFailed
	}
	if open == nil {
		r := &Recording{
			ID:          ids.New(),
			CameraID:    in.CameraID,
			FilePath:    strings.TrimSpace(in.FilePath),
			SizeBytes:   in.SizeBytes,
			DurationSec: in.DurationSec,
			Status:      status,
			StartedAt:   done.Add(-time.Duration(in.DurationSec) * time.Second),
			CompletedAt: &done,
		}
		if err := s.store.CreateRecording(ctx, r); err != nil {
			return nil, err
		}
		return r, nil
	}
	if fp := strings.TrimSpace(in.FilePath); fp != "" {
		open.FilePath = fp
	}
	open.SizeBytes = in.SizeBytes
	open.DurationSec = in.DurationSec
	open.Status = status
	open.CompletedAt = &done
	if err := s.store.UpdateRecording(ctx, open); err != nil {
		return nil, err
	}
	return open, nil
}

// ListRecordings returns recordings matching the filter, newest first.
func (s *Service) ListRecordings(ctx context.Context, f RecordingFilter) ([]*Recording, error) {
	return s.store.ListRecordings(ctx, f)
}

// DeleteRecording removes one recording row.
func (s *Service) DeleteRecording(ctx context.Context, id string) error {
	return s.store.DeleteRecording(ctx, id)
}

// RecordingTotals returns the overall recording count and byte volume.
func (s *Service) RecordingTotals(ctx context.Context) (int, int64, error) {
	return s.store.RecordingTotals(ctx)
}

func (s *Service) openRecording(ctx context.Context, cameraID string) (*Recording, error) {
	recs, err := s.store.ListRecordings(ctx, RecordingFilter{CameraID: cameraID})
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Status == RecordingActive {
			return r, nil
		}
	}
	return nil, nil
}
