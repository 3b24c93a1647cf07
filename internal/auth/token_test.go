package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTokenFixture(t *testing.T) (*MemoryStore, *Tokens, *User) {
	t.Helper()
	store := NewMemoryStore()
	owner := seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)
	return store, NewTokens(store.Tokens(), store.Users()), owner
}

func TestCreateTokenEnforcesOwnerSubset(t *testing.T) {
	_, tokens, owner := newTokenFixture(t)

	// user:delete is admin-only, alice is an operator.
	_, _, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Permissions: []string{PermUserDelete},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("over-privileged create = %v, want ErrInvalidInput", err)
	}

	_, _, err = tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Permissions: []string{"camera:explode"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown permission create = %v, want ErrInvalidInput", err)
	}

	_, _, err = tokens.Create(context.Background(), owner, CreateTokenInput{Name: "ci"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty permission create = %v, want ErrInvalidInput", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	_, tokens, owner := newTokenFixture(t)

	created, plain, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Remark:      "pipeline access",
		Permissions: []string{PermCameraRead, PermStreamRead},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(plain, TokenPrefix) {
		t.Fatalf("plaintext missing prefix: %s", plain)
	}
	if created.SecretHash == "" || strings.Contains(plain, created.SecretHash) {
		t.Fatal("plaintext must not embed the stored hash")
	}
	if created.RateLimit != defaultRateLimit {
		t.Fatalf("default rate limit not applied: %d", created.RateLimit)
	}

	// Same secret validates repeatedly while active.
	for i := 0; i < 2; i++ {
		got, gotOwner, err := tokens.Validate(context.Background(), plain, "203.0.113.7")
		if err != nil {
			t.Fatalf("Validate #%d: %v", i+1, err)
		}
		if got.ID != created.ID || gotOwner.ID != owner.ID {
			t.Fatalf("validate resolved wrong records: %s/%s", got.ID, gotOwner.ID)
		}
		if got.LastUsedAt == nil {
			t.Fatal("last-used timestamp not updated")
		}
	}

	// A tampered secret portion must fail.
	tampered := plain[:len(plain)-1] + flipHexDigit(plain[len(plain)-1])
	if _, _, err := tokens.Validate(context.Background(), tampered, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered secret accepted: %v", err)
	}
	if _, _, err := tokens.Validate(context.Background(), "Bearer nonsense", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage accepted: %v", err)
	}
}

func TestRevokedTokenNeverValidates(t *testing.T) {
	_, tokens, owner := newTokenFixture(t)
	created, plain, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Permissions: []string{PermCameraRead},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tokens.Revoke(context.Background(), created.ID, UserPrincipal(owner)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := tokens.Validate(context.Background(), plain, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked token validated: %v", err)
	}
	// Revocation is idempotent.
	if err := tokens.Revoke(context.Background(), created.ID, UserPrincipal(owner)); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
}

func TestExpiredTokenAutoRevokes(t *testing.T) {
	store := NewMemoryStore()
	owner := seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)

	current := time.Now().UTC()
	tokens := NewTokens(store.Tokens(), store.Users(), WithTokenClock(func() time.Time { return current }))

	expiry := current.Add(time.Hour)
	created, plain, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Permissions: []string{PermCameraRead},
		ExpiresAt:   &expiry,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, _, err := tokens.Validate(context.Background(), plain, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token validated: %v", err)
	}
	stored, err := store.Tokens().Find(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if stored.Active {
		t.Fatal("expired token was not auto-revoked")
	}
	// Never validates again, even with time rolled back.
	current = current.Add(-2 * time.Hour)
	if _, _, err := tokens.Validate(context.Background(), plain, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("auto-revoked token validated: %v", err)
	}
}

func TestValidateChecksIPAllowList(t *testing.T) {
	_, tokens, owner := newTokenFixture(t)
	_, plain, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Permissions: []string{PermCameraRead},
		AllowedIPs:  []string{"203.0.113.7"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := tokens.Validate(context.Background(), plain, "203.0.113.7"); err != nil {
		t.Fatalf("allow-listed IP rejected: %v", err)
	}
	if _, _, err := tokens.Validate(context.Background(), plain, "198.51.100.1"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("non-listed IP accepted: %v", err)
	}
}

func TestValidateRejectsDeactivatedOwner(t *testing.T) {
	store, tokens, owner := newTokenFixture(t)
	_, plain, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Permissions: []string{PermCameraRead},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	owner.Active = false
	if err := store.Users().Update(context.Background(), owner); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if _, _, err := tokens.Validate(context.Background(), plain, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token for deactivated owner accepted: %v", err)
	}
}

func TestTokenOwnershipAuthorization(t *testing.T) {
	store, tokens, owner := newTokenFixture(t)
	admin := seedUser(t, store, "root", "adminsecret", RoleAdmin, true)
	stranger := seedUser(t, store, "bob", "bobsecret1", RoleOperator, true)

	created, _, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name:        "ci",
		Permissions: []string{PermCameraRead},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	name := "renamed"
	if _, err := tokens.Update(context.Background(), created.ID, UserPrincipal(stranger), TokenUpdate{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger update = %v, want ErrForbidden", err)
	}
	updated, err := tokens.Update(context.Background(), created.ID, UserPrincipal(admin), TokenUpdate{Name: &name})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("update not applied: %s", updated.Name)
	}

	// Permission widening past the owner's role stays forbidden on update too.
	if _, err := tokens.Update(context.Background(), created.ID, UserPrincipal(owner), TokenUpdate{
		Permissions: []string{PermUserDelete},
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("widening update = %v, want ErrInvalidInput", err)
	}

	if err := tokens.Delete(context.Background(), created.ID, UserPrincipal(stranger)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger delete = %v, want ErrForbidden", err)
	}
	if err := tokens.Delete(context.Background(), created.ID, UserPrincipal(owner)); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := store.Tokens().Find(context.Background(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token not deleted: %v", err)
	}
}

func TestCleanupExpiredTokens(t *testing.T) {
	store := NewMemoryStore()
	owner := seedUser(t, store, "alice", "sup3rsecret", RoleOperator, true)

	current := time.Now().UTC()
	tokens := NewTokens(store.Tokens(), store.Users(), WithTokenClock(func() time.Time { return current }))

	soon := current.Add(time.Minute)
	later := current.Add(time.Hour)
	if _, _, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name: "short", Permissions: []string{PermCameraRead}, ExpiresAt: &soon,
	}); err != nil {
		t.Fatalf("Create short: %v", err)
	}
	if _, _, err := tokens.Create(context.Background(), owner, CreateTokenInput{
		Name: "long", Permissions: []string{PermCameraRead}, ExpiresAt: &later,
	}); err != nil {
		t.Fatalf("Create long: %v", err)
	}

	current = current.Add(30 * time.Minute)
	n, err := tokens.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 revocation, got %d", n)
	}
	// Idempotent: a second pass finds nothing.
	n, err = tokens.CleanupExpired(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second CleanupExpired = %d, %v", n, err)
	}
}

func flipHexDigit(b byte) string {
	if b == '0' {
		return "1"
	}
	return "0"
}
