package pg

import (
	"context"
	"database/sql"
	"errors"

	"camstack.org/internal/settings"
)

// Settings returns the settings.Store view of the pool.
func (s *Store) Settings() settings.Store { return (*pgSettings)(s) }

type pgSettings Store

var _ settings.Store = (*pgSettings)(nil)

func (s *pgSettings) Get(ctx context.Context, key string) (*settings.Setting, error) {
	var v settings.Setting
	err := s.db.QueryRowContext(ctx, `
		select key, value, updated_at from settings where key = $1
	`, key).Scan(&v.Key, &v.Value, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *pgSettings) Set(ctx context.Context, key, value string) (*settings.Setting, error) {
	if err := settings.ValidKey(key); err != nil {
		return nil, err
	}
	var v settings.Setting
	err := s.db.QueryRowContext(ctx, `
		insert into settings (key, value, updated_at)
		values ($1, $2, now())
		on conflict (key) do update set value = excluded.value, updated_at = now()
		returning key, value, updated_at
	`, key, value).Scan(&v.Key, &v.Value, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *pgSettings) List(ctx context.Context) ([]*settings.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `select key, value, updated_at from settings order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*settings.Setting
	for rows.Next() {
		var v settings.Setting
		if err := rows.Scan(&v.Key, &v.Value, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
