package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSessions(t *testing.T, users UserStore) *Sessions {
	t.Helper()
	s, err := NewSessions(users, NewBcryptHasher(4), []byte("test-secret"))
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return s
}

func seedUser(t *testing.T, store *MemoryStore, username, password string, role Role, active bool) *User {
	t.Helper()
	hash, err := NewBcryptHasher(4).Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &User{Username: username, PasswordHash: hash, Role: role, Active: active}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestLoginIssuesVerifiablePair(t *testing.T) {
	store := NewMemoryStore()
	seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)
	sessions := newTestSessions(t, store.Users())

	pair, user, err := sessions.Login(context.Background(), "alice", "sup3rsecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %s", user.Username)
	}
	if pair.ExpiresIn <= 0 {
		t.Fatalf("unexpected expiresIn: %d", pair.ExpiresIn)
	}

	claims, err := sessions.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != user.ID || claims.Username != "alice" || claims.Role != string(RoleOperator) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Fatalf("unexpected token type: %s", claims.TokenType)
	}

	// The refresh credential must not pass as an access credential.
	if _, err := sessions.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
}

func TestLoginRejectsIdentically(t *testing.T) {
	store := NewMemoryStore()
	seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)
	seedUser(t, store, "mallory", "whatever1", RoleViewer, false)
	sessions := newTestSessions(t, store.Users())

	cases := []struct{ username, password string }{
		{"nobody", "sup3rsecret"},  // unknown username
		{"mallory", "whatever1"},   // inactive user
		{"alice", "wrongpassword"}, // password mismatch
	}
	for _, tc := range cases {
		_, _, err := sessions.Login(context.Background(), tc.username, tc.password)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("login(%s) = %v, want ErrUnauthorized", tc.username, err)
		}
		if err.Error() != ErrUnauthorized.Error() {
			t.Fatalf("login(%s) leaks detail: %q", tc.username, err.Error())
		}
	}
}

func TestRefreshReflectsCurrentUserState(t *testing.T) {
	store := NewMemoryStore()
	user := seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)
	sessions := newTestSessions(t, store.Users())

	pair, _, err := sessions.Login(context.Background(), "alice", "sup3rsecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Promote the user, then refresh: the new access credential carries the
	// current role, not the role at original issuance.
	user.Role = RoleAdmin
	if err := store.Users().Update(context.Background(), user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	next, refreshed, err := sessions.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Role != RoleAdmin {
		t.Fatalf("refresh did not re-fetch the user: %s", refreshed.Role)
	}
	claims, err := sessions.VerifyAccess(next.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Role != string(RoleAdmin) {
		t.Fatalf("refreshed access token carries stale role %s", claims.Role)
	}

	// Deactivate the user: refresh must now fail.
	user.Role = RoleAdmin
	user.Active = false
	if err := store.Users().Update(context.Background(), user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if _, _, err := sessions.Refresh(context.Background(), next.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("refresh for deactivated user = %v, want ErrUnauthorized", err)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	store := NewMemoryStore()
	seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)

	current := time.Now().UTC()
	clock := func() time.Time { return current }
	sessions, err := NewSessions(store.Users(), NewBcryptHasher(4), []byte("test-secret"),
		WithAccessTTL(time.Minute), WithClock(clock))
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}

	pair, _, err := sessions.Login(context.Background(), "alice", "sup3rsecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := sessions.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("VerifyAccess before expiry: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := sessions.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("VerifyAccess after expiry = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsForgedSignature(t *testing.T) {
	store := NewMemoryStore()
	seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)
	sessions := newTestSessions(t, store.Users())

	pair, _, err := sessions.Login(context.Background(), "alice", "sup3rsecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	other, err := NewSessions(store.Users(), NewBcryptHasher(4), []byte("different-secret"))
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	if _, err := other.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret accepted: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := NewMemoryStore()
	user := seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)
	sessions := newTestSessions(t, store.Users())

	err := sessions.ChangePassword(context.Background(), user.ID, "wrong", "anothersecret")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("wrong current password = %v, want ErrInvalidInput", err)
	}
	err = sessions.ChangePassword(context.Background(), user.ID, "sup3rsecret", "short")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short new password = %v, want ErrInvalidInput", err)
	}
	if err := sessions.ChangePassword(context.Background(), user.ID, "sup3rsecret", "anothersecret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := sessions.Login(context.Background(), "alice", "sup3rsecret"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, _, err := sessions.Login(context.Background(), "alice", "anothersecret"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
