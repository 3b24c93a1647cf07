package camera

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Status is the camera's streaming lifecycle state.
type Status string

const (
	StatusOffline   Status = "offline"
	StatusOnline    Status = "online"
	StatusStreaming Status = "streaming"
)

// KnownStatus reports whether s is a valid lifecycle state.
func KnownStatus(s Status) bool {
	switch s {
	case StatusOffline, StatusOnline, StatusStreaming:
		return true
	}
	return false
}

var (
	ErrNotFound     = errors.New("camera: not found")
	ErrConflict     = errors.New("camera: conflict")
	ErrInvalidInput = errors.New("camera: invalid input")
)

// Camera is one registered device. The stream key is the credential the
// encoder presents when publishing; it carries no other identity.
type Camera struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Serial    string     `json:"serial"`
	Model     string     `json:"model,omitempty"`
	Location  string     `json:"location,omitempty"`
	StreamKey string     `json:"streamKey"`
	Status    Status     `json:"status"`
	Enabled   bool       `json:"enabled"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// RecordingStatus is the recording lifecycle state.
type RecordingStatus string

const (
	RecordingActive    RecordingStatus = "recording"
	RecordingCompleted RecordingStatus = "completed"
	RecordingFailed    RecordingStatus = "failed"
)

// Recording is one capture produced by the media server.
type Recording struct {
	ID          string          `json:"id"`
	CameraID    string          `json:"cameraId"`
	FilePath    string          `json:"filePath"`
	SizeBytes   int64           `json:"sizeBytes"`
	DurationSec int64           `json:"durationSec"`
	Status      RecordingStatus `json:"status"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Status  Status
	Enabled *bool
}

// RecordingFilter narrows ListRecordings results.
type RecordingFilter struct {
	CameraID string
	Since    time.Time
	Until    time.Time
}

// Update carries a partial camera update; nil fields are left unchanged.
type Update struct {
	Name     *string
	Model    *string
	Location *string
	Enabled  *bool
}

// StatusCounts is the per-status camera tally used by the dashboard.
type StatusCounts struct {
	Total     int `json:"total"`
	Offline   int `json:"offline"`
	Online    int `json:"online"`
	Streaming int `json:"streaming"`
}

// Store persists cameras and recordings.
type Store interface {
	Create(ctx context.Context, c *Camera) error
	Find(ctx context.Context, id string) (*Camera, error)
	FindByStreamKey(ctx context.Context, key string) (*Camera, error)
	List(ctx context.Context, f ListFilter) ([]*Camera, error)
	Update(ctx context.Context, c *Camera) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (StatusCounts, error)

	CreateRecording(ctx context.Context, r *Recording) error
	FindRecording(ctx context.Context, id string) (*Recording, error)
	ListRecordings(ctx context.Context, f RecordingFilter) ([]*Recording, error)
	UpdateRecording(ctx context.Context, r *Recording) error
	DeleteRecording(ctx context.Context, id string) error
	RecordingTotals(ctx context.Context) (count int, bytes int64, err error)
}

// NewStreamKey returns a fresh high-entropy stream key.
func NewStreamKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
