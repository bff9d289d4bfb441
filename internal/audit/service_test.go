package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/shared"
)

type stubTimelineRepo struct {
	windowRows     []TimelineRow
	allRows        []TimelineRow
	lastWindowCall WindowParams
	lastAllCall    WindowParams
}

func (s *stubTimelineRepo) Window(_ context.Context, p WindowParams) ([]TimelineRow, error) {
	s.lastWindowCall = p
	return s.windowRows, nil
}

func (s *stubTimelineRepo) All(_ context.Context, p WindowParams) ([]TimelineRow, error) {
	s.lastAllCall = p
	return s.allRows, nil
}

func row(id int64, ts, actor, action, target string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{ID: id, At: at, Actor: actor, Action: action, Target: target, Outcome: "executed"}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{windowRows: []TimelineRow{
		row(3, "2026-03-10T10:00:00Z", "admin", "role.grant", "identity:u1"),
		row(2, "2026-03-09T09:00:00Z", "admin", "role.revoke", "identity:u1"),
		row(1, "2026-03-08T08:00:00Z", "mod", "post.hide", "post:p1"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Actor:    " admin ",
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
	assert.Equal(t, 3, result.Paging.NextPage)
	assert.Equal(t, int32(3), repo.lastWindowCall.Limit)
	assert.Equal(t, int32(2), repo.lastWindowCall.Offset)
	assert.Equal(t, pgtype.Text{String: "admin", Valid: true}, repo.lastWindowCall.Actor)
	assert.False(t, repo.lastWindowCall.Action.Valid)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.NotNil(t, result.Rows)
	assert.False(t, repo.lastWindowCall.From.Valid)
}

func TestServiceExportReturnsAllRows(t *testing.T) {
	repo := &stubTimelineRepo{allRows: []TimelineRow{
		row(2, "2026-03-10T10:00:00Z", "a", "class.create", "class:1A"),
		row(1, "2026-03-09T09:00:00Z", "a", "class.delete", "class:9Z"),
	}}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, pgtype.Text{}, repo.lastAllCall.Actor)
	assert.True(t, repo.lastAllCall.From.Valid)
	assert.Equal(t, int32(MaxExportRows+1), repo.lastAllCall.Limit)
}

func TestServiceExportRejectsOversizedRange(t *testing.T) {
	repo := &stubTimelineRepo{allRows: make([]TimelineRow, MaxExportRows+1)}
	_, err := NewService(repo).Export(context.Background(), TimelineFilters{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Contains(t, err.Error(), "narrow the date range")
}

func TestServiceWithoutRepository(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}
