package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classboard/classboard/internal/access"
)

// WindowParams selects a page of audit rows. Empty text fields match all.
type WindowParams struct {
	From    pgtype.Timestamptz
	To      pgtype.Timestamptz
	Actor   pgtype.Text
	Action  pgtype.Text
	Target  pgtype.Text
	Outcome pgtype.Text
	Offset  int32
	Limit   int32
}

// PGStore persists audit events in the audit_logs table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Record inserts one event.
func (s *PGStore) Record(ctx context.Context, event access.AuditEvent) error {
	meta := event.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, target, outcome, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ActorID, event.Action, event.Target, event.Outcome, raw, at)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

const timelineQuery = `
	SELECT id, occurred_at, actor_id, action, target, outcome, meta
	FROM audit_logs
	WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
	  AND ($2::timestamptz IS NULL OR occurred_at < $2)
	  AND ($3::text IS NULL OR actor_id = $3)
	  AND ($4::text IS NULL OR action LIKE $4 || '%')
	  AND ($5::text IS NULL OR target = $5)
	  AND ($6::text IS NULL OR outcome = $6)
	ORDER BY occurred_at DESC, id DESC`

// Window returns one page of the timeline, newest first.
func (s *PGStore) Window(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
	rows, err := s.pool.Query(ctx, timelineQuery+` OFFSET $7 LIMIT $8`,
		p.From, p.To, p.Actor, p.Action, p.Target, p.Outcome, p.Offset, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline window: %w", err)
	}
	return collectRows(rows)
}

// All returns every matching row, newest first. A positive p.Limit bounds
// the result; p.Offset is ignored.
func (s *PGStore) All(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
	var limit pgtype.Int4
	if p.Limit > 0 {
		limit = pgtype.Int4{Int32: p.Limit, Valid: true}
	}
	rows, err := s.pool.Query(ctx, timelineQuery+` LIMIT $7`, p.From, p.To, p.Actor, p.Action, p.Target, p.Outcome, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline all: %w", err)
	}
	return collectRows(rows)
}

// Purge deletes rows older than before and returns how many were removed.
func (s *PGStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("audit: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectRows(rows pgx.Rows) ([]TimelineRow, error) {
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var (
			row TimelineRow
			raw []byte
		)
		if err := rows.Scan(&row.ID, &row.At, &row.Actor, &row.Action, &row.Target, &row.Outcome, &raw); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		if len(raw) > 0 && strings.TrimSpace(string(raw)) != "{}" {
			if err := json.Unmarshal(raw, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
