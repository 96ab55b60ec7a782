package analytichttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/churnboard/churnboard/internal/shared"
)

// MountRoutes registers dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/", h.handleDashboard)
	r.Post("/predict", h.handlePredict)
	r.Get("/partials/kpis", h.handleKPIPartial)
	r.Get("/partials/segments", h.handleSegmentPartial)

	r.Route("/api", func(api chi.Router) {
		api.Get("/kpis", h.handleAPIKPIs)
		api.Get("/segments", h.handleAPISegments)
		api.Post("/predict", h.handleAPIPredict)
	})

	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/export/segments.csv", h.handleSegmentsCSV)
		gr.Get("/export/dashboard.xlsx", h.handleXLSX)
		gr.Get("/export/dashboard.pdf", h.handlePDF)
		gr.Post("/cache/refresh", h.handleCacheRefresh)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if id := strings.TrimSpace(sess.ID); id != "" {
			return "session:" + id, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
