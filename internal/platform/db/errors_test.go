package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/classboard/classboard/internal/shared"
)

func TestMapError(t *testing.T) {
	assert.Nil(t, MapError(nil))
	assert.True(t, errors.Is(MapError(pgx.ErrNoRows), shared.ErrNotFound))
	assert.True(t, errors.Is(MapError(fmt.Errorf("scan: %w", pgx.ErrNoRows)), shared.ErrNotFound))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "poll_votes_pkey"}
	assert.True(t, errors.Is(MapError(unique), shared.ErrConflict))

	fk := &pgconn.PgError{Code: "23503", TableName: "identities"}
	err := MapError(fk)
	assert.True(t, errors.Is(err, shared.ErrConflict))
	assert.Contains(t, err.Error(), "identities")

	other := errors.New("boom")
	assert.Equal(t, other, MapError(other))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, isSerializationFailure(fmt.Errorf("platform/db: commit tx: %w", &pgconn.PgError{Code: "40001"})))
	assert.False(t, isSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isSerializationFailure(nil))
	assert.True(t, errors.Is(MapError(&pgconn.PgError{Code: "40001"}), shared.ErrConflict))
}
