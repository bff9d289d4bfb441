package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/shared"
)

// Repository defines persistence operations for API tokens.
type Repository interface {
	CreateToken(ctx context.Context, token Token) error
	FindToken(ctx context.Context, id string) (Token, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
	RevokeToken(ctx context.Context, id string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateToken persists a hashed token.
func (r *PGRepository) CreateToken(ctx context.Context, token Token) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_tokens (id, identity_id, secret_hash, label, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.IdentityID, token.SecretHash, token.Label,
		pgtype.Timestamptz{Time: token.CreatedAt, Valid: true})
	if err != nil {
		return fmt.Errorf("auth: create token: %w", db.MapError(err))
	}
	return nil
}

// FindToken fetches a token by id.
func (r *PGRepository) FindToken(ctx context.Context, id string) (Token, error) {
	var (
		token    Token
		lastUsed pgtype.Timestamptz
		revoked  pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, identity_id, secret_hash, label, created_at, last_used_at, revoked_at
		FROM api_tokens WHERE id = $1`, id).
		Scan(&token.ID, &token.IdentityID, &token.SecretHash, &token.Label, &token.CreatedAt, &lastUsed, &revoked)
	if err != nil {
		return Token{}, fmt.Errorf("auth: find token: %w", db.MapError(err))
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		token.LastUsedAt = &t
	}
	if revoked.Valid {
		t := revoked.Time
		token.RevokedAt = &t
	}
	return token, nil
}

// TouchToken records the last time a token authenticated a request.
func (r *PGRepository) TouchToken(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

// RevokeToken marks a token revoked. Revoking twice keeps the first timestamp.
func (r *PGRepository) RevokeToken(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE api_tokens SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auth: revoke token %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
