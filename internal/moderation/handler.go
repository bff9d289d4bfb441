package moderation

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/rbac"
	"github.com/classboard/classboard/internal/shared"
)

// DefaultReportLimit caps report submissions per identity per minute.
const DefaultReportLimit = 10

// Handler manages moderation endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	rateLimit func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. reportsPerMinute <= 0 uses
// DefaultReportLimit.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, reportsPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if reportsPerMinute <= 0 {
		reportsPerMinute = DefaultReportLimit
	}
	return &Handler{logger: logger, service: service, rbac: rbac, rateLimit: auth.RateLimit(reportsPerMinute, time.Minute)}
}

// MountRoutes registers moderation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rateLimit).Post("/reports", h.createReport)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(access.CapModeratePlatform))
		r.Get("/reports", h.listReports)
		r.Get("/reports/{id}", h.getReport)
		r.Post("/reports/{id}/dismiss", h.dismissReport)
		r.Post("/reports/{id}/hide", h.hideContent)
	})
}

func (h *Handler) createReport(w http.ResponseWriter, r *http.Request) {
	var in CreateReportInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.CreateReport(r.Context(), auth.CurrentIdentity(r), in)
	if err != nil {
		h.fail(w, "create report", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rep)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := shared.PageFromQuery(q)
	items, err := h.service.ListReports(r.Context(), auth.CurrentIdentity(r), ListFilter{
		Status: Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		h.fail(w, "list reports", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "page": page.Page, "per_page": page.PerPage})
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.GetReport(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) dismissReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.DismissReport(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "dismiss report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) hideContent(w http.ResponseWriter, r *http.Request) {
	var in HideInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.HideContent(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "hide content", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.UserSafeMessage(err) == "internal error" {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
