package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"camstack.org/internal/audit"
)

// Audit returns the audit.Store view of the pool.
func (s *Store) Audit() audit.Store { return (*pgAudit)(s) }

type pgAudit Store

var _ audit.Store = (*pgAudit)(nil)

func (s *pgAudit) Append(ctx context.Context, e *audit.Entry) error {
	if e == nil {
		return errors.New("audit: nil entry")
	}
	detail := []byte("{}")
	if len(e.Detail) > 0 {
		bytes, err := json.Marshal(e.Detail)
		if err != nil {
			return err
		}
		detail = bytes
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, occurred_at, actor_id, actor_type, action, resource, resource_id, detail, ip, user_agent, request_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.OccurredAt.UTC(), nullIfEmpty(e.ActorID), e.ActorType, e.Action,
		nullIfEmpty(e.Resource), nullIfEmpty(e.ResourceID), detail,
		nullIfEmpty(e.IP), nullIfEmpty(e.UserAgent), nullIfEmpty(e.RequestID))
	return err
}

func (s *pgAudit) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, error) {
	query := `
		select id, occurred_at, actor_id, actor_type, action, resource, resource_id, detail, ip, user_agent, request_id
		from audit_log`
	var (
		where []string
		args  []any
	)
	if f.ActorID != "" {
		args = append(args, f.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.Resource != "" {
		args = append(args, f.Resource)
		where = append(where, fmt.Sprintf("resource = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since.UTC())
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until.UTC())
		where = append(where, fmt.Sprintf("occurred_at < $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " where " + cond
		} else {
			query += " and " + cond
		}
	}
	query += " order by occurred_at desc"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			actorID    sql.NullString
			resource   sql.NullString
			resourceID sql.NullString
			detail     []byte
			ip         sql.NullString
			userAgent  sql.NullString
			requestID  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &actorID, &e.ActorType, &e.Action,
			&resource, &resourceID, &detail, &ip, &userAgent, &requestID); err != nil {
			return nil, err
		}
		e.ActorID = actorID.String
		e.Resource = resource.String
		e.ResourceID = resourceID.String
		e.IP = ip.String
		e.UserAgent = userAgent.String
		e.RequestID = requestID.String
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, err
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *pgAudit) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from audit_log where occurred_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(aff), nil
}
