package users

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

// Repository defines persistence operations for identities.
type Repository interface {
	Get(ctx context.Context, id string) (Identity, error)
	List(ctx context.Context, limit, offset int) ([]Identity, int, error)
	Create(ctx context.Context, ident Identity) error
	Delete(ctx context.Context, id string) error
	AssignClass(ctx context.Context, id, classID string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const identityColumns = `id, display_name, email, class_id, created_at, updated_at`

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		ident   Identity
		email   pgtype.Text
		classID pgtype.Text
	)
	if err := row.Scan(&ident.ID, &ident.DisplayName, &email, &classID, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
		return Identity{}, err
	}
	ident.Email = email.String
	ident.ClassID = classID.String
	return ident, nil
}

// Get loads an identity with its role assignments.
func (r *PGRepository) Get(ctx context.Context, id string) (Identity, error) {
	ident, err := scanIdentity(r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
	if err != nil {
		return Identity{}, fmt.Errorf("users: get %s: %w", id, db.MapError(err))
	}
	roles, err := loadAssignments(ctx, r.pool, []string{id})
	if err != nil {
		return Identity{}, err
	}
	ident.Roles = roles[id]
	return ident, nil
}

// List returns a page of identities ordered by display name.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Identity, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY display_name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var (
		items []Identity
		ids   []string
	)
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("users: scan: %w", err)
		}
		items = append(items, ident)
		ids = append(ids, ident.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("users: list rows: %w", err)
	}
	if len(ids) == 0 {
		return items, total, nil
	}
	roles, err := loadAssignments(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Roles = roles[items[i].ID]
	}
	return items, total, nil
}

func loadAssignments(ctx context.Context, q db.Querier, ids []string) (map[string][]access.RoleAssignment, error) {
	rows, err := q.Query(ctx, `
		SELECT identity_id, role, scope_level, class_id
		FROM role_assignments
		WHERE identity_id = ANY($1)
		ORDER BY identity_id, created_at, role`, ids)
	if err != nil {
		return nil, fmt.Errorf("users: load assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]access.RoleAssignment, len(ids))
	for rows.Next() {
		var (
			identityID, role, level, classID string
		)
		if err := rows.Scan(&identityID, &role, &level, &classID); err != nil {
			return nil, fmt.Errorf("users: scan assignment: %w", err)
		}
		out[identityID] = append(out[identityID], access.RoleAssignment{
			Role:  access.Role(role),
			Scope: access.Scope{Level: access.ScopeLevel(level), ClassID: classID},
		})
	}
	return out, rows.Err()
}

// Create inserts the identity and its STUDENT baseline in one transaction.
func (r *PGRepository) Create(ctx context.Context, ident Identity) error {
	now := time.Now().UTC()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO identities (id, display_name, email, class_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			ident.ID, ident.DisplayName,
			pgtype.Text{String: ident.Email, Valid: ident.Email != ""},
			pgtype.Text{String: ident.ClassID, Valid: ident.ClassID != ""},
			now)
		if err != nil {
			return db.MapError(err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO role_assignments (identity_id, role, scope_level, class_id)
			VALUES ($1, $2, '', '')`, ident.ID, string(access.RoleStudent))
		return db.MapError(err)
	})
	if err != nil {
		return fmt.Errorf("users: create: %w", err)
	}
	return nil
}

// Delete removes an identity; assignments and tokens cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: delete %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// AssignClass moves the identity to classID. A CLASS_REP assignment for any
// other class is dropped in the same transaction.
func (r *PGRepository) AssignClass(ctx context.Context, id, classID string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE identities SET class_id = $2, updated_at = NOW() WHERE id = $1`,
			id, pgtype.Text{String: classID, Valid: classID != ""})
		if err != nil {
			return db.MapError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM role_assignments
			WHERE identity_id = $1 AND role = $2 AND class_id <> $3`,
			id, string(access.RoleClassRep), classID)
		return db.MapError(err)
	})
	if err != nil {
		return fmt.Errorf("users: assign class: %w", err)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
