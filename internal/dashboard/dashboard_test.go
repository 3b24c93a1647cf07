package dashboard

import (
	"context"
	"testing"

	"camstack.org/internal/audit"
	"camstack.org/internal/auth"
	"camstack.org/internal/camera"
)

func TestSummaryAggregatesRealStores(t *testing.T) {
	ctx := context.Background()

	camStore := camera.NewMemoryStore()
	cameras, err := camera.NewService(camStore)
	if err != nil {
		t.Fatalf("camera.NewService: %v", err)
	}
	authStore := auth.NewMemoryStore()
	trail, err := audit.NewRecorder(audit.NewMemoryStore())
	if err != nil {
		t.Fatalf("audit.NewRecorder: %v", err)
	}
	svc, err := NewService(cameras, authStore.Users(), authStore.Tokens(), trail)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	lobby, err := cameras.Create(ctx, camera.CreateInput{Name: "lobby", Serial: "SN-001"})
	if err != nil {
		t.Fatalf("camera create: %v", err)
	}
	if _, err := cameras.Create(ctx, camera.CreateInput{Name: "yard", Serial: "SN-002"}); err != nil {
		t.Fatalf("camera create: %v", err)
	}
	if _, err := cameras.SetStatus(ctx, lobby.ID, camera.StatusStreaming); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := cameras.CompleteRecording(ctx, camera.CompleteRecordingInput{
		CameraID: lobby.ID, FilePath: "/rec/a.flv", SizeBytes: 2048, DurationSec: 10,
	}); err != nil {
		t.Fatalf("CompleteRecording: %v", err)
	}

	user := &auth.User{Username: "alice", PasswordHash: "x", Role: auth.RoleOperator, Active: true}
	if err := authStore.Users().Create(ctx, user); err != nil {
		t.Fatalf("user create: %v", err)
	}
	tokens := auth.NewTokens(authStore.Tokens(), authStore.Users())
	if _, _, err := tokens.Create(ctx, user, auth.CreateTokenInput{
		Name: "ci", Permissions: []string{auth.PermCameraRead},
	}); err != nil {
		t.Fatalf("token create: %v", err)
	}

	trail.Record(ctx, "camera.create", "camera", lobby.ID, nil)

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Cameras.Total != 2 || sum.Cameras.Streaming != 1 || sum.Cameras.Offline != 1 {
		t.Fatalf("camera counts wrong: %+v", sum.Cameras)
	}
	if sum.Recordings.Count != 1 || sum.Recordings.TotalBytes != 2048 {
		t.Fatalf("recording summary wrong: %+v", sum.Recordings)
	}
	if sum.Users != 1 || sum.APITokens != 1 {
		t.Fatalf("user/token counts wrong: %d/%d", sum.Users, sum.APITokens)
	}
	if len(sum.RecentActivity) != 1 || sum.RecentActivity[0].Action != "camera.create" {
		t.Fatalf("recent activity wrong: %+v", sum.RecentActivity)
	}
}
