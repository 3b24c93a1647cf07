package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"camstack.org/internal/auth"
	"camstack.org/internal/camera"
	"camstack.org/internal/settings"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "alice", sqlmock.AnyArg(), sqlmock.AnyArg(), "operator", true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "users_username_key"})

	err := store.Users().Create(context.Background(), &auth.User{
		Username: "alice", PasswordHash: "x", Role: auth.RoleOperator, Active: true,
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("unique violation = %v, want ErrConflict", err)
	}
	if err.Error() != "auth: conflict: username already exists" {
		t.Fatalf("conflict field not mapped: %q", err.Error())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, username, email, password_hash, role, active").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users().Find(context.Background(), "missing")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("missing user = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenFindDecodesJSONColumns(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "name", "remark", "secret_hash", "permissions", "active",
		"rate_limit", "allowed_ips", "expires_at", "last_used_at", "created_at", "updated_at",
	}).AddRow("t1", "u1", "ci", nil, "hash", []byte(`["camera:read","stream:read"]`), true,
		500, []byte(`["203.0.113.7"]`), nil, nil, now, now)
	mock.ExpectQuery("select (.+) from api_tokens where id").WithArgs("t1").WillReturnRows(rows)

	token, err := store.Tokens().Find(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(token.Permissions) != 2 || token.Permissions[0] != "camera:read" {
		t.Fatalf("permissions not decoded: %v", token.Permissions)
	}
	if len(token.AllowedIPs) != 1 || token.AllowedIPs[0] != "203.0.113.7" {
		t.Fatalf("allowed IPs not decoded: %v", token.AllowedIPs)
	}
	if token.ExpiresAt != nil || token.LastUsedAt != nil {
		t.Fatalf("null timestamps not mapped: %+v", token)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRevokeExpiredCountsRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update api_tokens").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Tokens().RevokeExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RevokeExpired: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revocations, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCameraCreateMapsSerialConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into cameras").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "cameras_serial_key"})

	err := store.Cameras().Create(context.Background(), &camera.Camera{
		ID: "c1", Name: "lobby", Serial: "SN-001", StreamKey: "k", Status: camera.StatusOffline, Enabled: true,
	})
	if !errors.Is(err, camera.ErrConflict) {
		t.Fatalf("serial conflict = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCameraCounts(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("offline", 2).
		AddRow("streaming", 1)
	mock.ExpectQuery("select status, count").WillReturnRows(rows)

	counts, err := store.Cameras().Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Total != 3 || counts.Offline != 2 || counts.Streaming != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSettingsUpsert(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("insert into settings").
		WithArgs("recording.retention_days", "30").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow("recording.retention_days", "30", now))

	v, err := store.Settings().Set(context.Background(), "recording.retention_days", "30")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v.Value != "30" {
		t.Fatalf("unexpected value: %q", v.Value)
	}

	if _, err := store.Settings().Set(context.Background(), "Bad Key", "x"); !errors.Is(err, settings.ErrInvalidInput) {
		t.Fatalf("invalid key = %v, want ErrInvalidInput", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
