package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/classboard/classboard/internal/shared"
)

var errNoRepository = errors.New("audit: repository not configured")

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// MaxExportRows caps a single CSV export.
	MaxExportRows = 50000
)

// Repository reads recorded audit events.
type Repository interface {
	Window(ctx context.Context, p WindowParams) ([]TimelineRow, error)
	All(ctx context.Context, p WindowParams) ([]TimelineRow, error)
}

// Service serves the audit timeline.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of matching events. One extra row is fetched to
// learn whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errNoRepository
	}
	page, pageSize := normalizePaging(filters.Page, filters.PageSize)
	params := toParams(filters)
	params.Offset = int32((page - 1) * pageSize)
	params.Limit = int32(pageSize + 1)

	rows, err := s.repo.Window(ctx, params)
	if err != nil {
		return Result{}, err
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: len(rows) > pageSize}
	if paging.HasNext {
		rows = rows[:pageSize]
		paging.NextPage = page + 1
	}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching event without paging. Ranges holding more
// than MaxExportRows events are rejected so the caller narrows the filters.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errNoRepository
	}
	params := toParams(filters)
	params.Limit = MaxExportRows + 1
	rows, err := s.repo.All(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(rows) > MaxExportRows {
		return nil, fmt.Errorf("%w: export exceeds %d events, narrow the date range", shared.ErrValidation, MaxExportRows)
	}
	return rows, nil
}

func normalizePaging(page, size int) (int, int) {
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return page, size
}

func toParams(f TimelineFilters) WindowParams {
	return WindowParams{
		From:    toPgTime(f.From),
		To:      toPgTime(f.To),
		Actor:   optionalText(f.Actor),
		Action:  optionalText(f.Action),
		Target:  optionalText(f.Target),
		Outcome: optionalText(f.Outcome),
	}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
