package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/internal/platform/httpx"
)

// Handler manages token endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers token routes. Callers mount it behind RequireIdentity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/identities/{id}/tokens", h.issue)
	r.Delete("/tokens/{id}", h.revoke)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var in IssueInput
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	token, err := h.service.Issue(r.Context(), CurrentIdentity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "issue token", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, token)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Revoke(r.Context(), CurrentIdentity(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "revoke token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !isClientError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
