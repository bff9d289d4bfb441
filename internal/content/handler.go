package content

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/shared"
)

// IdempotencyHeader carries the client-chosen key for create requests.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages content endpoints.
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

// MountRoutes registers content routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/content", func(r chi.Router) {
		r.Get("/", h.feed)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Get("/{id}/comments", h.comments)
		r.Post("/{id}/comments", h.comment)
		r.Put("/{id}/vote", h.vote)
		r.Post("/{id}/like", h.like)
		r.Post("/{id}/participation", h.participate)
	})
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := shared.PageFromQuery(q)
	items, err := h.service.Feed(r.Context(), auth.CurrentIdentity(r), FeedQuery{
		Kind:    access.Kind(strings.ToLower(q.Get("kind"))),
		ClassID: q.Get("class_id"),
		Limit:   page.PerPage,
		Offset:  page.Offset(),
	})
	if err != nil {
		h.fail(w, "feed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "page": page.Page, "per_page": page.PerPage})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Create(r.Context(), auth.CurrentIdentity(r), in, strings.TrimSpace(r.Header.Get(IdempotencyHeader)))
	if err != nil {
		h.fail(w, "create content", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get content", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Update(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "update content", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete content", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) comments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Comments(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "list comments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) comment(w http.ResponseWriter, r *http.Request) {
	var in CommentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Comment(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "comment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	var in VoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.VotePoll(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "vote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) like(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ToggleLike(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "toggle like", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) participate(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ToggleParticipation(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "toggle participation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.UserSafeMessage(err) == "internal error" {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
