package audithttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/classboard/classboard/internal/audit"
	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/rbac"
	"github.com/classboard/classboard/internal/shared"
)

const (
	dateLayout   = "2006-01-02"
	day          = 24 * time.Hour
	defaultRange = 7 * day
	maxRange     = 90 * day
)

// TimelineService is what the handler needs from audit.Service.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit timeline and its CSV export.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service TimelineService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

// timelineQuery mirrors the accepted query string before conversion.
type timelineQuery struct {
	From     string `validate:"omitempty,datetime=2006-01-02"`
	To       string `validate:"omitempty,datetime=2006-01-02"`
	Actor    string `validate:"max=64"`
	Action   string `validate:"max=64"`
	Target   string `validate:"max=128"`
	Outcome  string `validate:"omitempty,oneof=executed granted denied"`
	Page     string `validate:"omitempty,number"`
	PageSize string `validate:"omitempty,number"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.fail(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit timeline", err)
		return
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, rows); err != nil {
		h.fail(w, "encode audit csv", err)
		return
	}
	name := fmt.Sprintf("audit-%s-%s.csv", filters.From.Format(dateLayout), filters.To.Add(-day).Format(dateLayout))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write audit csv", slog.Any("error", err))
	}
}

// filters turns the query string into timeline filters. "to" defaults to
// today and "from" to a week before "to"; both are whole UTC days and the
// returned To is exclusive.
func (h *Handler) filters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	raw := timelineQuery{
		From:     strings.TrimSpace(q.Get("from")),
		To:       strings.TrimSpace(q.Get("to")),
		Actor:    strings.TrimSpace(q.Get("actor")),
		Action:   strings.TrimSpace(q.Get("action")),
		Target:   strings.TrimSpace(q.Get("target")),
		Outcome:  strings.ToLower(strings.TrimSpace(q.Get("outcome"))),
		Page:     strings.TrimSpace(q.Get("page")),
		PageSize: strings.TrimSpace(q.Get("page_size")),
	}
	if err := httpx.Validate(raw); err != nil {
		return audit.TimelineFilters{}, err
	}

	to := h.now().UTC().Truncate(day)
	if raw.To != "" {
		to, _ = time.Parse(dateLayout, raw.To)
	}
	from := to.Add(-defaultRange)
	if raw.From != "" {
		from, _ = time.Parse(dateLayout, raw.From)
	}
	if from.After(to) || to.Sub(from) > maxRange {
		return audit.TimelineFilters{}, fmt.Errorf("%w: date range must run forward and span at most %d days", shared.ErrValidation, int(maxRange/day))
	}

	page, err := positive(raw.Page, "page")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	pageSize, err := positive(raw.PageSize, "page_size")
	if err != nil {
		return audit.TimelineFilters{}, err
	}

	return audit.TimelineFilters{
		From:     from,
		To:       to.Add(day),
		Actor:    raw.Actor,
		Action:   raw.Action,
		Target:   raw.Target,
		Outcome:  raw.Outcome,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// positive parses an optional page parameter; empty yields 0 so the service
// applies its default.
func positive(v, field string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", shared.ErrValidation, field)
	}
	return n, nil
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	if !errors.Is(err, shared.ErrValidation) {
		h.logger.Error(message, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
