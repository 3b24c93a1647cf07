package settings

import (
	"context"
	"errors"
	"testing"
)

func TestSetGetList(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Set(context.Background(), "recording.retention_days", "30"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Set(context.Background(), "Alerts Email", "ops@example.org"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("invalid key accepted: %v", err)
	}

	got, err := store.Get(context.Background(), "recording.retention_days")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Value != "30" || got.UpdatedAt.IsZero() {
		t.Fatalf("unexpected setting: %+v", got)
	}

	if _, err := store.Get(context.Background(), "missing.key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key = %v, want ErrNotFound", err)
	}

	if _, err := store.Set(context.Background(), "stream.max_bitrate", "4000"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	all, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].Key != "recording.retention_days" {
		t.Fatalf("list order wrong: %+v", all)
	}
}
