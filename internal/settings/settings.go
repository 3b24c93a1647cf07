package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound     = errors.New("settings: not found")
	ErrInvalidInput = errors.New("settings: invalid input")
)

// Setting is one named configuration value. Keys are dotted namespaces
// (for example "recording.retention_days").
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists settings.
type Store interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Set(ctx context.Context, key, value string) (*Setting, error)
	List(ctx context.Context) ([]*Setting, error)
}

// ValidKey reports whether the key is well formed.
func ValidKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
		default:
			return fmt.Errorf("%w: key %q contains invalid characters", ErrInvalidInput, key)
		}
	}
	return nil
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]*Setting
	now    func() time.Time
}

// NewMemoryStore constructs an empty in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]*Setting), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) (*Setting, error) {
	if err := ValidKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &Setting{Key: strings.TrimSpace(key), Value: value, UpdatedAt: s.now().UTC()}
	s.values[v.Key] = v
	clone := *v
	return &clone, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Setting, 0, len(s.values))
	for _, v := range s.values {
		clone := *v
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
