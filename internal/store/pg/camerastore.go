package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"camstack.org/internal/camera"
)

// Cameras returns the camera.Store view of the pool.
func (s *Store) Cameras() camera.Store { return (*pgCameras)(s) }

type pgCameras Store

var _ camera.Store = (*pgCameras)(nil)

const cameraColumns = `id, name, serial, model, location, stream_key, status, enabled, last_seen, created_at, updated_at`

func (s *pgCameras) Create(ctx context.Context, c *camera.Camera) error {
	err := s.db.QueryRowContext(ctx, `
		insert into cameras (id, name, serial, model, location, stream_key, status, enabled)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, c.ID, c.Name, c.Serial, nullIfEmpty(c.Model), nullIfEmpty(c.Location), c.StreamKey, string(c.Status), c.Enabled).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: %s", camera.ErrConflict, conflictField(pgErr.ConstraintName))
		}
		return err
	}
	return nil
}

func (s *pgCameras) Find(ctx context.Context, id string) (*camera.Camera, error) {
	return s.findWhere(ctx, `id = $1`, id)
}

func (s *pgCameras) FindByStreamKey(ctx context.Context, key string) (*camera.Camera, error) {
	return s.findWhere(ctx, `stream_key = $1`, key)
}

func (s *pgCameras) findWhere(ctx context.Context, where string, arg any) (*camera.Camera, error) {
	row := s.db.QueryRowContext(ctx, `select `+cameraColumns+` from cameras where `+where, arg)
	c, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, camera.ErrNotFound
	}
	return c, err
}

func (s *pgCameras) List(ctx context.Context, f camera.ListFilter) ([]*camera.Camera, error) {
	query := `select ` + cameraColumns + ` from cameras`
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Enabled != nil {
		args = append(args, *f.Enabled)
		where = append(where, fmt.Sprintf("enabled = $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " where " + cond
		} else {
			query += " and " + cond
		}
	}
	query += " order by created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*camera.Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cameras, nil
}

func (s *pgCameras) Update(ctx context.Context, c *camera.Camera) error {
	res, err := s.db.ExecContext(ctx, `
		update cameras
		set name = $2, model = $3, location = $4, stream_key = $5, status = $6, enabled = $7, last_seen = $8, updated_at = now()
		where id = $1
	`, c.ID, c.Name, nullIfEmpty(c.Model), nullIfEmpty(c.Location), c.StreamKey, string(c.Status), c.Enabled, nullIfZero(c.LastSeen))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: %s", camera.ErrConflict, conflictField(pgErr.ConstraintName))
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return camera.ErrNotFound
	}
	return nil
}

func (s *pgCameras) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from cameras where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return camera.ErrNotFound
	}
	return nil
}

func (s *pgCameras) Counts(ctx context.Context) (camera.StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx, `select status, count(*) from cameras group by status`)
	if err != nil {
		return camera.StatusCounts{}, err
	}
	defer rows.Close()

	var counts camera.StatusCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return camera.StatusCounts{}, err
		}
		counts.Total += n
		switch camera.Status(status) {
		case camera.StatusOnline:
			counts.Online += n
		case camera.StatusStreaming:
			counts.Streaming += n
		default:
			counts.Offline += n
		}
	}
	return counts, rows.Err()
}

const recordingColumns = `id, camera_id, file_path, size_bytes, duration_sec, status, started_at, completed_at`

func (s *pgCameras) CreateRecording(ctx context.Context, r *camera.Recording) error {
	_, err := s.db.ExecContext(ctx, `
		insert into recordings (id, camera_id, file_path, size_bytes, duration_sec, status, started_at, completed_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.CameraID, r.FilePath, r.SizeBytes, r.DurationSec, string(r.Status), r.StartedAt.UTC(), nullIfZero(r.CompletedAt))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return camera.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *pgCameras) FindRecording(ctx context.Context, id string) (*camera.Recording, error) {
	row := s.db.QueryRowContext(ctx, `select `+recordingColumns+` from recordings where id = $1`, id)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, camera.ErrNotFound
	}
	return r, err
}

func (s *pgCameras) ListRecordings(ctx context.Context, f camera.RecordingFilter) ([]*camera.Recording, error) {
	query := `select ` + recordingColumns + ` from recordings`
	var (
		where []string
		args  []any
	)
	if f.CameraID != "" {
		args = append(args, f.CameraID)
		where = append(where, fmt.Sprintf("camera_id = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since.UTC())
		where = append(where, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until.UTC())
		where = append(where, fmt.Sprintf("started_at < $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " where " + cond
		} else {
			query += " and " + cond
		}
	}
	query += " order by started_at desc"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*camera.Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *pgCameras) UpdateRecording(ctx context.Context, r *camera.Recording) error {
	res, err := s.db.ExecContext(ctx, `
		update recordings
		set file_path = $2, size_bytes = $3, duration_sec = $4, status = $5, completed_at = $6
		where id = $1
	`, r.ID, r.FilePath, r.SizeBytes, r.DurationSec, string(r.Status), nullIfZero(r.CompletedAt))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return camera.ErrNotFound
	}
	return nil
}

func (s *pgCameras) DeleteRecording(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from recordings where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return camera.ErrNotFound
	}
	return nil
}

func (s *pgCameras) RecordingTotals(ctx context.Context) (int, int64, error) {
	var (
		count int
		bytes int64
	)
	err := s.db.QueryRowContext(ctx, `select count(*), coalesce(sum(size_bytes), 0) from recordings`).
		Scan(&count, &bytes)
	if err != nil {
		return 0, 0, err
	}
	return count, bytes, nil
}

func scanCamera(row rowScanner) (*camera.Camera, error) {
	var (
		c        camera.Camera
		model    sql.NullString
		location sql.NullString
		status   string
		lastSeen sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Serial, &model, &location, &c.StreamKey, &status,
		&c.Enabled, &lastSeen, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Model = model.String
	c.Location = location.String
	c.Status = camera.Status(status)
	c.LastSeen = timePtr(lastSeen)
	return &c, nil
}

func scanRecording(row rowScanner) (*camera.Recording, error) {
	var (
		r         camera.Recording
		status    string
		completed sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.CameraID, &r.FilePath, &r.SizeBytes, &r.DurationSec, &status,
		&r.StartedAt, &completed); err != nil {
		return nil, err
	}
	r.Status = camera.RecordingStatus(status)
	r.CompletedAt = timePtr(completed)
	return &r, nil
}
