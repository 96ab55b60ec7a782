package report

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/churnboard/churnboard/internal/platform/httpx"
)

const pingTimeout = 3 * time.Second

// Status tells the dashboard whether PDF export can be offered.
type Status struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	LatencyMS  int64  `json:"latency_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Handler serves the PDF renderer status.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	start := time.Now()
	err := h.client.Ping(ctx)
	status := Status{Configured: h.client.Configured()}
	switch {
	case err == nil:
		status.Reachable = true
		status.LatencyMS = time.Since(start).Milliseconds()
		httpx.JSON(w, http.StatusOK, status)
	case errors.Is(err, ErrNotConfigured):
		httpx.JSON(w, http.StatusOK, status)
	default:
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		status.Error = "renderer unreachable"
		httpx.JSON(w, http.StatusServiceUnavailable, status)
	}
}
