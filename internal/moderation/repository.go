package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/shared"
)

// Repository persists reports outside of transactions.
type Repository interface {
	Create(ctx context.Context, report Report) error
	Get(ctx context.Context, id string) (Report, error)
	List(ctx context.Context, filter ListFilter) ([]Report, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations a report transition needs.
type TxRepository interface {
	// LockReport reads the report and holds its row lock until commit.
	LockReport(ctx context.Context, id string) (Report, error)
	UpdateStatus(ctx context.Context, report Report) error
	HideContent(ctx context.Context, ref ContentRef, moderatorID string, at time.Time) error
}

// PGRepository is the PostgreSQL implementation.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const reportColumns = `id, reporter_id, target_kind, target_id, reason, status, handled_by, handled_at, created_at`

func scanReport(row pgx.Row) (Report, error) {
	var (
		rep       Report
		kind      string
		status    string
		handledBy pgtype.Text
		handledAt pgtype.Timestamptz
	)
	if err := row.Scan(&rep.ID, &rep.ReporterID, &kind, &rep.Target.ID, &rep.Reason, &status, &handledBy, &handledAt, &rep.CreatedAt); err != nil {
		return Report{}, err
	}
	rep.Target.Kind = access.Kind(kind)
	rep.Status = Status(status)
	rep.HandledBy = handledBy.String
	if handledAt.Valid {
		t := handledAt.Time
		rep.HandledAt = &t
	}
	return rep, nil
}

// Create inserts an open report.
func (r *PGRepository) Create(ctx context.Context, report Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (id, reporter_id, target_kind, target_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.ID, report.ReporterID, string(report.Target.Kind), report.Target.ID, report.Reason, string(report.Status), report.CreatedAt)
	if err != nil {
		return fmt.Errorf("moderation: insert report: %w", db.MapError(err))
	}
	return nil
}

// Get loads one report.
func (r *PGRepository) Get(ctx context.Context, id string) (Report, error) {
	rep, err := scanReport(r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil {
		return Report{}, fmt.Errorf("moderation: get report %s: %w", id, db.MapError(err))
	}
	return rep, nil
}

// List returns reports ordered oldest first so the queue drains in order.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("moderation: list reports: %w", err)
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("moderation: scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) LockReport(ctx context.Context, id string) (Report, error) {
	rep, err := scanReport(t.tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Report{}, fmt.Errorf("moderation: lock report %s: %w", id, db.MapError(err))
	}
	return rep, nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, report Report) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE reports SET status = $2, handled_by = $3, handled_at = $4
		WHERE id = $1 AND status = 'OPEN'`,
		report.ID, string(report.Status), report.HandledBy, report.HandledAt)
	if err != nil {
		return fmt.Errorf("moderation: update report: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("moderation: report %s: %w", report.ID, shared.ErrConflict)
	}
	return nil
}

func (t *txRepo) HideContent(ctx context.Context, ref ContentRef, moderatorID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE content_items SET hidden = TRUE, hidden_by = $3, hidden_at = $4, updated_at = $4
		WHERE id = $1 AND kind = $2`, ref.ID, string(ref.Kind), moderatorID, at)
	if err != nil {
		return fmt.Errorf("moderation: hide content: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("moderation: content %s: %w", ref, shared.ErrNotFound)
	}
	return nil
}
