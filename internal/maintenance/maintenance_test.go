package maintenance

import (
	"context"
	"testing"
	"time"

	"camstack.org/internal/audit"
	"camstack.org/internal/auth"
	"camstack.org/internal/camera"
)

func newSweeperFixture(t *testing.T, now *time.Time) (*Sweeper, *auth.MemoryStore, *camera.Service, *audit.MemoryStore) {
	t.Helper()
	authStore := auth.NewMemoryStore()
	tokens := auth.NewTokens(authStore.Tokens(), authStore.Users(),
		auth.WithTokenClock(func() time.Time { return *now }))
	cameras, err := camera.NewService(camera.NewMemoryStore(),
		camera.WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("camera.NewService: %v", err)
	}
	auditStore := audit.NewMemoryStore()
	trail, err := audit.NewRecorder(auditStore)
	if err != nil {
		t.Fatalf("audit.NewRecorder: %v", err)
	}
	sweeper, err := New(tokens, cameras, trail)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sweeper, authStore, cameras, auditStore
}

func TestTokenSweepRevokesAndAudits(t *testing.T) {
	now := time.Now().UTC()
	sweeper, store, _, auditStore := newSweeperFixture(t, &now)

	owner := &auth.User{Username: "alice", PasswordHash: "x", Role: auth.RoleOperator, Active: true}
	if err := store.Users().Create(context.Background(), owner); err != nil {
		t.Fatalf("create user: %v", err)
	}
	expiry := now.Add(time.Minute)
	if err := store.Tokens().Create(context.Background(), &auth.APIToken{
		UserID: owner.ID, Name: "short", SecretHash: "h",
		Permissions: []string{auth.PermCameraRead}, Active: true, ExpiresAt: &expiry,
	}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	now = now.Add(time.Hour)
	sweeper.sweepTokens(context.Background())

	tokens, _ := store.Tokens().List(context.Background())
	if len(tokens) != 1 || tokens[0].Active {
		t.Fatalf("expired token not revoked: %+v", tokens)
	}
	entries, _ := auditStore.List(context.Background(), audit.Filter{Action: "token.cleanup"})
	if len(entries) != 1 || entries[0].Detail["revoked"] != "1" {
		t.Fatalf("sweep not audited: %+v", entries)
	}
}

func TestCameraSweepMarksStaleOffline(t *testing.T) {
	now := time.Now().UTC()
	sweeper, _, cameras, _ := newSweeperFixture(t, &now)

	cam, err := cameras.Create(context.Background(), camera.CreateInput{Name: "lobby", Serial: "SN-001"})
	if err != nil {
		t.Fatalf("create camera: %v", err)
	}
	if _, err := cameras.SetStatus(context.Background(), cam.ID, camera.StatusStreaming); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	now = now.Add(10 * time.Minute)
	sweeper.sweepCameras(context.Background())

	got, err := cameras.Get(context.Background(), cam.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != camera.StatusOffline {
		t.Fatalf("stale camera still %s", got.Status)
	}
}

func TestAuditPurgeHonorsRetention(t *testing.T) {
	now := time.Now().UTC()
	sweeper, _, _, auditStore := newSweeperFixture(t, &now)
	sweeper.auditRetention = 24 * time.Hour

	old := &audit.Entry{ID: "old", OccurredAt: now.Add(-48 * time.Hour), ActorType: "system", Action: "x"}
	fresh := &audit.Entry{ID: "fresh", OccurredAt: now.Add(-time.Hour), ActorType: "system", Action: "x"}
	for _, e := range []*audit.Entry{old, fresh} {
		if err := auditStore.Append(context.Background(), e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	sweeper.purgeAudit(context.Background())

	entries, _ := auditStore.List(context.Background(), audit.Filter{})
	if len(entries) != 1 || entries[0].ID != "fresh" {
		t.Fatalf("retention purge wrong: %+v", entries)
	}
}
