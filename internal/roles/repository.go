package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/shared"
)

// Store runs registry changes transactionally.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	// LockIdentity loads the identity with its assignments and holds a row
	// lock until the transaction ends.
	LockIdentity(ctx context.Context, id string) (access.Identity, error)
	InsertAssignment(ctx context.Context, identityID string, a access.RoleAssignment) error
	DeleteAssignment(ctx context.Context, identityID string, a access.RoleAssignment) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) LockIdentity(ctx context.Context, id string) (access.Identity, error) {
	var (
		ident   access.Identity
		classID pgtype.Text
	)
	err := t.tx.QueryRow(ctx, `SELECT id, display_name, class_id FROM identities WHERE id = $1 FOR UPDATE`, id).
		Scan(&ident.ID, &ident.DisplayName, &classID)
	if err != nil {
		return access.Identity{}, fmt.Errorf("roles: lock identity %s: %w", id, db.MapError(err))
	}
	ident.ClassID = classID.String

	rows, err := t.tx.Query(ctx, `
		SELECT role, scope_level, class_id FROM role_assignments
		WHERE identity_id = $1 ORDER BY created_at, role`, id)
	if err != nil {
		return access.Identity{}, fmt.Errorf("roles: load assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role, level, scopeClass string
		if err := rows.Scan(&role, &level, &scopeClass); err != nil {
			return access.Identity{}, fmt.Errorf("roles: scan assignment: %w", err)
		}
		ident.Roles = append(ident.Roles, access.RoleAssignment{
			Role:  access.Role(role),
			Scope: access.Scope{Level: access.ScopeLevel(level), ClassID: scopeClass},
		})
	}
	return ident, rows.Err()
}

func (t *txRepo) InsertAssignment(ctx context.Context, identityID string, a access.RoleAssignment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_assignments (identity_id, role, scope_level, class_id)
		VALUES ($1, $2, $3, $4)`,
		identityID, string(a.Role), string(a.Scope.Level), a.Scope.ClassID)
	if err != nil {
		return fmt.Errorf("roles: insert assignment: %w", db.MapError(err))
	}
	return nil
}

func (t *txRepo) DeleteAssignment(ctx context.Context, identityID string, a access.RoleAssignment) error {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM role_assignments
		WHERE identity_id = $1 AND role = $2 AND scope_level = $3 AND class_id = $4`,
		identityID, string(a.Role), string(a.Scope.Level), a.Scope.ClassID)
	if err != nil {
		return fmt.Errorf("roles: delete assignment: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("roles: delete assignment: %w", shared.ErrNotFound)
	}
	return nil
}

var _ Store = (*Repository)(nil)
