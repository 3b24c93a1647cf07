package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"camstack.org/internal/auth"
	"camstack.org/internal/ids"
)

var _ auth.Store = (*Store)(nil)

func (s *Store) Users() auth.UserStore   { return (*pgUsers)(s) }
func (s *Store) Tokens() auth.TokenStore { return (*pgTokens)(s) }

type pgUsers Store

func (s *pgUsers) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash, role, active)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, u.ID, u.Username, nullIfEmpty(u.Email), u.PasswordHash, string(u.Role), u.Active).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: %s", auth.ErrConflict, conflictField(pgErr.ConstraintName))
		}
		return err
	}
	return nil
}

func (s *pgUsers) Find(ctx context.Context, id string) (*auth.User, error) {
	return s.findWhere(ctx, `id = $1`, id)
}

func (s *pgUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.findWhere(ctx, `username = $1`, username)
}

func (s *pgUsers) findWhere(ctx context.Context, where string, arg any) (*auth.User, error) {
	var (
		u     auth.User
		email sql.NullString
		role  string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, username, email, password_hash, role, active, created_at, updated_at
		from users
		where `+where, arg).
		Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Role = auth.Role(role)
	return &u, nil
}

func (s *pgUsers) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, username, email, password_hash, role, active, created_at, updated_at
		from users
		order by username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		var (
			u     auth.User
			email sql.NullString
			role  string
		)
		if err := rows.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.Role = auth.Role(role)
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *pgUsers) Update(ctx context.Context, u *auth.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set username = $2, email = $3, password_hash = $4, role = $5, active = $6, updated_at = now()
		where id = $1
	`, u.ID, u.Username, nullIfEmpty(u.Email), u.PasswordHash, string(u.Role), u.Active)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: %s", auth.ErrConflict, conflictField(pgErr.ConstraintName))
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *pgUsers) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *pgUsers) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type pgTokens Store

const tokenColumns = `id, user_id, name, remark, secret_hash, permissions, active, rate_limit, allowed_ips, expires_at, last_used_at, created_at, updated_at`

func (s *pgTokens) Create(ctx context.Context, t *auth.APIToken) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	perms, err := json.Marshal(t.Permissions)
	if err != nil {
		return err
	}
	allowed, err := json.Marshal(t.AllowedIPs)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, `
		insert into api_tokens (id, user_id, name, remark, secret_hash, permissions, active, rate_limit, allowed_ips, expires_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning created_at, updated_at
	`, t.ID, t.UserID, t.Name, nullIfEmpty(t.Remark), t.SecretHash, perms, t.Active, t.RateLimit, allowed, nullIfZero(t.ExpiresAt)).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *pgTokens) Find(ctx context.Context, id string) (*auth.APIToken, error) {
	row := s.db.QueryRowContext(ctx, `select `+tokenColumns+` from api_tokens where id = $1`, id)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return t, err
}

func (s *pgTokens) List(ctx context.Context) ([]*auth.APIToken, error) {
	return s.listWhere(ctx, ``)
}

func (s *pgTokens) ListByUser(ctx context.Context, userID string) ([]*auth.APIToken, error) {
	return s.listWhere(ctx, `where user_id = $1`, userID)
}

func (s *pgTokens) listWhere(ctx context.Context, where string, args ...any) ([]*auth.APIToken, error) {
	rows, err := s.db.QueryContext(ctx, `select `+tokenColumns+` from api_tokens `+where+` order by created_at desc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*auth.APIToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *pgTokens) Update(ctx context.Context, t *auth.APIToken) error {
	perms, err := json.Marshal(t.Permissions)
	if err != nil {
		return err
	}
	allowed, err := json.Marshal(t.AllowedIPs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update api_tokens
		set name = $2, remark = $3, permissions = $4, active = $5, rate_limit = $6, allowed_ips = $7, expires_at = $8, updated_at = now()
		where id = $1
	`, t.ID, t.Name, nullIfEmpty(t.Remark), perms, t.Active, t.RateLimit, allowed, nullIfZero(t.ExpiresAt))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *pgTokens) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from api_tokens where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *pgTokens) MarkRevoked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update api_tokens set active = false, updated_at = now() where id = $1
	`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *pgTokens) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update api_tokens set last_used_at = $2 where id = $1
	`, id, at.UTC())
	return err
}

func (s *pgTokens) RevokeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		update api_tokens
		set active = false, updated_at = now()
		where active and expires_at is not null and expires_at <= $1
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(aff), nil
}

func (s *pgTokens) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `select count(*) from api_tokens`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*auth.APIToken, error) {
	var (
		t        auth.APIToken
		remark   sql.NullString
		perms    []byte
		allowed  []byte
		expires  sql.NullTime
		lastUsed sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &remark, &t.SecretHash, &perms, &t.Active,
		&t.RateLimit, &allowed, &expires, &lastUsed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Remark = remark.String
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &t.Permissions); err != nil {
			return nil, err
		}
	}
	if len(allowed) > 0 {
		if err := json.Unmarshal(allowed, &t.AllowedIPs); err != nil {
			return nil, err
		}
	}
	t.ExpiresAt = timePtr(expires)
	t.LastUsedAt = timePtr(lastUsed)
	return &t, nil
}

func conflictField(constraint string) string {
	switch {
	case strings.Contains(constraint, "email"):
		return "email already exists"
	case strings.Contains(constraint, "username"):
		return "username already exists"
	case strings.Contains(constraint, "serial"):
		return "serial number already registered"
	default:
		return "duplicate value"
	}
}
