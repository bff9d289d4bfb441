package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/rbac"
	"github.com/classboard/classboard/internal/shared"
)

// Handler manages identity endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers identity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/identities/{id}", h.getIdentity)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(access.CapManageUsers))
		r.Get("/identities", h.listIdentities)
		r.Post("/identities", h.createIdentity)
		r.Delete("/identities/{id}", h.deleteIdentity)
		r.Put("/identities/{id}/class", h.assignClass)
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor := auth.CurrentIdentity(r)
	profile, err := h.service.Get(r.Context(), actor, actor.ID)
	if err != nil {
		h.fail(w, "load profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) getIdentity(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get identity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) listIdentities(w http.ResponseWriter, r *http.Request) {
	result, page, err := h.service.List(r.Context(), auth.CurrentIdentity(r), shared.PageFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, "list identities", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": result.Items, "pagination": page})
}

func (h *Handler) createIdentity(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ident, err := h.service.Create(r.Context(), auth.CurrentIdentity(r), in)
	if err != nil {
		h.fail(w, "create identity", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewProfile(ident))
}

func (h *Handler) deleteIdentity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete identity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignClass(w http.ResponseWriter, r *http.Request) {
	var in AssignClassInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ident, err := h.service.AssignClass(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "assign class", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewProfile(ident))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.UserSafeMessage(err) == "internal error" {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
