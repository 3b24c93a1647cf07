package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"camstack.org/internal/auth"
	"camstack.org/internal/obs"
)

func TestRecordEnrichesFromContext(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	store := NewMemoryStore()
	rec, err := NewRecorder(store)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	user := &auth.User{ID: "u1", Username: "alice", Role: auth.RoleOperator, Active: true}
	ctx := auth.ContextWithPrincipal(context.Background(), auth.UserPrincipal(user))
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithRequestMeta(ctx, "203.0.113.7", "curl/8.0")

	rec.Record(ctx, "camera.create", "camera", "cam-1", map[string]string{"name": "lobby"})

	entries, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ActorID != "u1" || e.ActorType != "user" {
		t.Fatalf("actor not enriched: %+v", e)
	}
	if e.IP != "203.0.113.7" || e.UserAgent != "curl/8.0" || e.RequestID != "req-123" {
		t.Fatalf("request metadata not enriched: %+v", e)
	}
	if e.Detail["name"] != "lobby" {
		t.Fatalf("detail lost: %+v", e.Detail)
	}

	// The entry is mirrored as one JSON line.
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("mirror line not valid JSON: %v", err)
	}
	if line["type"] != "audit" || line["action"] != "camera.create" {
		t.Fatalf("unexpected mirror line: %v", line)
	}
}

func TestRecordTokenActor(t *testing.T) {
	store := NewMemoryStore()
	rec, err := NewRecorder(store)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	owner := &auth.User{ID: "u1", Username: "alice", Role: auth.RoleOperator, Active: true}
	token := &auth.APIToken{ID: "t1", UserID: "u1", Permissions: []string{auth.PermCameraRead}}
	ctx := auth.ContextWithPrincipal(context.Background(), auth.TokenPrincipal(token, owner))

	rec.Record(ctx, "camera.read", "camera", "cam-1", nil)

	entries, _ := store.List(context.Background(), Filter{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ActorType != "token" || entries[0].Detail["tokenId"] != "t1" {
		t.Fatalf("token actor not recorded: %+v", entries[0])
	}
}

func TestListFilterAndPurge(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seed := []*Entry{
		{ID: "1", OccurredAt: base, ActorID: "u1", Action: "camera.create", Resource: "camera"},
		{ID: "2", OccurredAt: base.Add(time.Hour), ActorID: "u2", Action: "camera.delete", Resource: "camera"},
		{ID: "3", OccurredAt: base.Add(2 * time.Hour), ActorID: "u1", Action: "token.create", Resource: "token"},
	}
	for _, e := range seed {
		if err := store.Append(context.Background(), e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.List(context.Background(), Filter{ActorID: "u1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" {
		t.Fatalf("actor filter/order wrong: %+v", got)
	}

	got, _ = store.List(context.Background(), Filter{Resource: "camera", Limit: 1})
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("resource filter with limit wrong: %+v", got)
	}

	purged, err := store.PurgeBefore(context.Background(), base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 purged, got %d", purged)
	}
	got, _ = store.List(context.Background(), Filter{})
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("purge kept the wrong rows: %+v", got)
	}
}
