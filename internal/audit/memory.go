package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the audit trail in process memory. Used in tests and
// when the service runs without Postgres.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*Entry
}

// NewMemoryStore constructs an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	if e == nil {
		return errors.New("audit: nil entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *e
	if len(e.Detail) > 0 {
		clone.Detail = make(map[string]string, len(e.Detail))
		for k, v := range e.Detail {
			clone.Detail[k] = v
		}
	}
	s.entries = append(s.entries, &clone)
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entry
	for _, e := range s.entries {
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Resource != "" && e.Resource != f.Resource {
			continue
		}
		if !f.Since.IsZero() && e.OccurredAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !e.OccurredAt.Before(f.Until) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	purged := 0
	for _, e := range s.entries {
		if e.OccurredAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return purged, nil
}
