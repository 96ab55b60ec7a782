package jobs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/churnboard/churnboard/internal/platform/httpx"
)

// QueueStatus is the warm-up queue snapshot served at /jobs/health.
type QueueStatus struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active,omitempty"`
	Scheduled int    `json:"scheduled,omitempty"`
	Retry     int    `json:"retry,omitempty"`
	Archived  int    `json:"archived,omitempty"`
	Processed int    `json:"processed_today,omitempty"`
	Failed    int    `json:"failed_today,omitempty"`
}

// Handler exposes the queue status over HTTP.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs a Handler. A nil inspector reports an empty queue.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, QueueStatus{Queue: QueueDefault})
		return
	}
	status, err := ReadQueueStatus(h.inspector, QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue unreachable")
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

// ReadQueueStatus snapshots queue through inspector.
func ReadQueueStatus(inspector *asynq.Inspector, queue string) (QueueStatus, error) {
	info, err := inspector.GetQueueInfo(queue)
	if err != nil {
		return QueueStatus{}, err
	}
	return QueueStatus{
		Queue:     queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
	}, nil
}
