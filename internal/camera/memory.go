package camera

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps cameras and recordings in process memory. Used in tests
// and when the service runs without Postgres.
type MemoryStore struct {
	mu         sync.Mutex
	cameras    map[string]*Camera
	recordings map[string]*Recording
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cameras:    make(map[string]*Camera),
		recordings: make(map[string]*Recording),
	}
}

func (s *MemoryStore) Create(_ context.Context, c *Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cameras {
		if existing.Serial == c.Serial {
			return fmt.Errorf("%w: serial number already registered", ErrConflict)
		}
		if existing.StreamKey == c.StreamKey {
			return fmt.Errorf("%w: stream key collision", ErrConflict)
		}
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.cameras[c.ID] = cloneCamera(c)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cameras[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCamera(c), nil
}

func (s *MemoryStore) FindByStreamKey(_ context.Context, key string) (*Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cameras {
		if c.StreamKey == key {
			return cloneCamera(c), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]*Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Camera
	for _, c := range s.cameras {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Enabled != nil && c.Enabled != *f.Enabled {
			continue
		}
		out = append(out, cloneCamera(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, c *Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cameras[c.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.cameras {
		if id == c.ID {
			continue
		}
		if other.StreamKey == c.StreamKey {
			return fmt.Errorf("%w: stream key collision", ErrConflict)
		}
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.cameras[c.ID] = cloneCamera(c)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cameras[id]; !ok {
		return ErrNotFound
	}
	delete(s.cameras, id)
	for rid, r := range s.recordings {
		if r.CameraID == id {
			delete(s.recordings, rid)
		}
	}
	return nil
}

func (s *MemoryStore) Counts(_ context.Context) (StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts StatusCounts
	for _, c := range s.cameras {
		counts.Total++
		switch c.Status {
		case StatusOnline:
			counts.Online++
		case StatusStreaming:
			counts.Streaming++
		default:
			counts.Offline++
		}
	}
	return counts, nil
}

func (s *MemoryStore) CreateRecording(_ context.Context, r *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[r.ID] = cloneRecording(r)
	return nil
}

func (s *MemoryStore) FindRecording(_ context.Context, id string) (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recordings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecording(r), nil
}

func (s *MemoryStore) ListRecordings(_ context.Context, f RecordingFilter) ([]*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Recording
	for _, r := range s.recordings {
		if f.CameraID != "" && r.CameraID != f.CameraID {
			continue
		}
		if !f.Since.IsZero() && r.StartedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !r.StartedAt.Before(f.Until) {
			continue
		}
		out = append(out, cloneRecording(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateRecording(_ context.Context, r *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recordings[r.ID]; !ok {
		return ErrNotFound
	}
	s.recordings[r.ID] = cloneRecording(r)
	return nil
}

func (s *MemoryStore) DeleteRecording(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recordings[id]; !ok {
		return ErrNotFound
	}
	delete(s.recordings, id)
	return nil
}

func (s *MemoryStore) RecordingTotals(_ context.Context) (int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var bytes int64
	for _, r := range s.recordings {
		bytes += r.SizeBytes
	}
	return len(s.recordings), bytes, nil
}

func cloneCamera(c *Camera) *Camera {
	clone := *c
	if c.LastSeen != nil {
		seen := *c.LastSeen
		clone.LastSeen = &seen
	}
	return &clone
}

func cloneRecording(r *Recording) *Recording {
	clone := *r
	if r.CompletedAt != nil {
		done := *r.CompletedAt
		clone.CompletedAt = &done
	}
	return &clone
}
