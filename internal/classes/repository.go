package classes

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/shared"
)

// Repository defines persistence operations for classes.
type Repository interface {
	Create(ctx context.Context, class Class) error
	Get(ctx context.Context, id string) (Class, error)
	List(ctx context.Context) ([]Class, error)
	Delete(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a class. A duplicate (year, section) maps to ErrConflict.
func (r *PGRepository) Create(ctx context.Context, class Class) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO classes (id, year, section, created_at) VALUES ($1, $2, $3, $4)`,
		class.ID, class.Year, class.Section, class.CreatedAt)
	if err != nil {
		return fmt.Errorf("classes: create: %w", db.MapError(err))
	}
	return nil
}

// Get fetches a class by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Class, error) {
	var c Class
	err := r.pool.QueryRow(ctx, `SELECT id, year, section, created_at FROM classes WHERE id = $1`, id).
		Scan(&c.ID, &c.Year, &c.Section, &c.CreatedAt)
	if err != nil {
		return Class{}, fmt.Errorf("classes: get %s: %w", id, db.MapError(err))
	}
	return c, nil
}

// List returns all classes ordered by year and section.
func (r *PGRepository) List(ctx context.Context) ([]Class, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, year, section, created_at FROM classes ORDER BY year, section`)
	if err != nil {
		return nil, fmt.Errorf("classes: list: %w", err)
	}
	defer rows.Close()
	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Year, &c.Section, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("classes: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a class. Classes still referenced by identities or content
// are protected by foreign keys and map to ErrConflict.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("classes: delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("classes: delete %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
