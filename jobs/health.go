package jobs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/classboard/classboard/internal/jobs"
	"github.com/classboard/classboard/internal/platform/httpx"
)

// QueueInspector is the part of *asynq.Inspector the health endpoint reads.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler serves the queue health endpoint.
type Handler struct {
	inspector QueueInspector
	queue     string
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewHandler constructs an HTTP handler for jobs endpoints. Each health
// probe also refreshes the queue depth gauge when metrics is non-nil.
// A nil inspector reports an empty queue.
func NewHandler(inspector QueueInspector, queue string, logger *slog.Logger, metrics *jobmetrics.Metrics) *Handler {
	if queue == "" {
		queue = QueueDefault
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, queue: queue, logger: logger, metrics: metrics}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/jobs/health", h.health)
}

type queueHealth struct {
	Queue    string `json:"queue"`
	Pending  int    `json:"pending"`
	Retry    int    `json:"retry"`
	Archived int    `json:"archived"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	out := queueHealth{Queue: h.queue}
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, out)
		return
	}
	info, err := h.inspector.GetQueueInfo(h.queue)
	switch {
	case errors.Is(err, asynq.ErrQueueNotFound):
		// a queue nobody has written to yet
	case err != nil:
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	default:
		out.Pending, out.Retry, out.Archived = info.Pending, info.Retry, info.Archived
	}
	h.metrics.ObserveQueue(h.queue, out.Pending, out.Retry, out.Archived)
	httpx.JSON(w, http.StatusOK, out)
}
