package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"camstack.org/internal/ids"
)

// MemoryStore implements Store with in-process concurrency safety. Used by
// tests and by the API in DSN-less development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	tokens map[string]*APIToken
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*User),
		tokens: make(map[string]*APIToken),
	}
}

func (s *MemoryStore) Users() UserStore   { return (*memoryUsers)(s) }
func (s *MemoryStore) Tokens() TokenStore { return (*memoryTokens)(s) }

type memoryUsers MemoryStore

func (s *memoryUsers) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("%w: username already exists", ErrConflict)
		}
		if u.Email != "" && existing.Email == u.Email {
			return fmt.Errorf("%w: email already exists", ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memoryUsers) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryUsers) FindByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUsers) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryUsers) Update(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	for _, other := range s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return fmt.Errorf("%w: username already exists", ErrConflict)
		}
		if u.Email != "" && other.Email == u.Email {
			return fmt.Errorf("%w: email already exists", ErrConflict)
		}
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memoryUsers) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryUsers) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

type memoryTokens MemoryStore

func (s *memoryTokens) Create(ctx context.Context, t *APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = ids.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := cloneToken(t)
	s.tokens[t.ID] = cp
	return nil
}

func (s *memoryTokens) Find(ctx context.Context, id string) (*APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneToken(t), nil
}

func (s *memoryTokens) List(ctx context.Context) ([]*APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*APIToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, cloneToken(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryTokens) ListByUser(ctx context.Context, userID string) ([]*APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*APIToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, cloneToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryTokens) Update(ctx context.Context, t *APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tokens[t.ID]
	if !ok {
		return ErrNotFound
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.tokens[t.ID] = cloneToken(t)
	return nil
}

func (s *memoryTokens) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *memoryTokens) MarkRevoked(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = false
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryTokens) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	used := at.UTC()
	t.LastUsedAt = &used
	return nil
}

func (s *memoryTokens) RevokeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, t := range s.tokens {
		if t.Active && t.Expired(now) {
			t.Active = false
			t.UpdatedAt = now.UTC()
			n++
		}
	}
	return n, nil
}

func (s *memoryTokens) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens), nil
}

func cloneToken(t *APIToken) *APIToken {
	cp := *t
	cp.Permissions = append([]string(nil), t.Permissions...)
	cp.AllowedIPs = append([]string(nil), t.AllowedIPs...)
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		cp.ExpiresAt = &exp
	}
	if t.LastUsedAt != nil {
		used := *t.LastUsedAt
		cp.LastUsedAt = &used
	}
	return &cp
}
