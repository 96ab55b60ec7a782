package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/analytics/export"
	"github.com/churnboard/churnboard/internal/analytics/ui"
	"github.com/churnboard/churnboard/internal/churnapi"
	"github.com/churnboard/churnboard/internal/dashboard"
	"github.com/churnboard/churnboard/internal/shared"
	"github.com/churnboard/churnboard/internal/view"
)

const requestTimeout = 15 * time.Second

const pageTitle = "Churn Dashboard"

// AnalyticsService is the data contract used by the handler.
type AnalyticsService interface {
	dashboard.Source
	Dimensions() []string
	ValidDimension(dim string) bool
	Invalidate(ctx context.Context) error
}

// PDFService renders dashboard content to PDF bytes.
type PDFService interface {
	RenderDashboard(ctx context.Context, payload export.DashboardPayload) ([]byte, error)
}

// CacheRefresher queues a background cache warm-up.
type CacheRefresher interface {
	EnqueueCacheWarmup(ctx context.Context) error
}

// Handler serves the churn dashboard page, its fragments, the JSON API and
// the exports.
type Handler struct {
	logger         *slog.Logger
	service        AnalyticsService
	flows          *dashboard.Dashboard
	boards         *dashboard.Boards
	templates      *view.Engine
	csrf           *shared.CSRFManager
	pdf            PDFService
	refresher      CacheRefresher
	defaultSegment string
	bufPool        sync.Pool
	now            func() time.Time
}

// NewHandler constructs the analytics HTTP handler. pdf and refresher may be nil.
func NewHandler(logger *slog.Logger, service AnalyticsService, flows *dashboard.Dashboard, boards *dashboard.Boards, templates *view.Engine, csrf *shared.CSRFManager, pdf PDFService, refresher CacheRefresher, defaultSegment string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:         logger,
		service:        service,
		flows:          flows,
		boards:         boards,
		templates:      templates,
		csrf:           csrf,
		pdf:            pdf,
		refresher:      refresher,
		defaultSegment: defaultSegment,
		now:            time.Now,
	}
	h.bufPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	segmentBy, err := h.segmentParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	vm := ui.NewDashboardViewModel(h.service.Dimensions(), segmentBy, ui.NewPredictionForm(nil))
	var g errgroup.Group
	h.goBoard(ctx, &g, h.board(r), segmentBy, vm, false)
	// Flow failures already surface as notifications on the view model.
	_ = g.Wait()

	h.renderPage(w, r, vm)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.handleFilterError(w, validationError{field: "form"})
		return
	}
	segmentBy, err := h.segmentParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	form := predictionValues(r.PostForm)
	vm := ui.NewDashboardViewModel(h.service.Dimensions(), segmentBy, ui.NewPredictionForm(form))
	var g errgroup.Group
	h.goBoard(ctx, &g, h.board(r), segmentBy, vm, true)
	g.Go(func() error {
		_, err := h.flows.SubmitPrediction(ctx, form, vm, vm)
		return err
	})
	_ = g.Wait()

	h.renderPage(w, r, vm)
}

func (h *Handler) handleKPIPartial(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	vm := ui.NewDashboardViewModel(nil, "", ui.PredictionForm{})
	status := http.StatusOK
	if _, err := h.flows.LoadKPIs(ctx, vm, vm); err != nil {
		status = loadErrorStatus(err)
	}
	h.renderFragments(w, status, view.TemplateData{Data: vm}, "partials/kpis.html", "partials/toasts.html")
}

func (h *Handler) handleSegmentPartial(w http.ResponseWriter, r *http.Request) {
	segmentBy, err := h.segmentParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	vm := ui.NewDashboardViewModel(nil, segmentBy, ui.PredictionForm{})
	if _, err := h.flows.LoadSegments(ctx, h.board(r), segmentBy, vm, vm); err != nil {
		if errors.Is(err, dashboard.ErrStaleChart) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.renderFragments(w, loadErrorStatus(err), view.TemplateData{Data: vm}, "partials/toasts.html")
		return
	}
	h.renderFragments(w, http.StatusOK, view.TemplateData{Data: vm}, "partials/segment_chart.html", "partials/toasts.html")
}

func (h *Handler) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	flash := shared.FlashMessage{Kind: "success", Message: "Dashboard data refresh queued."}
	var err error
	if h.refresher != nil {
		err = h.refresher.EnqueueCacheWarmup(ctx)
	} else {
		err = h.service.Invalidate(ctx)
		flash.Message = "Dashboard data will reload on the next request."
	}
	if err != nil {
		h.logError("refresh cache", err)
		flash = shared.FlashMessage{Kind: "error", Message: "Could not refresh dashboard data."}
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(flash)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// goBoard schedules the KPI and segment flows on g. With reuse set, a chart
// already on the board is shown instead of being reloaded.
func (h *Handler) goBoard(ctx context.Context, g *errgroup.Group, board *dashboard.Board, segmentBy string, vm *ui.DashboardViewModel, reuse bool) {
	g.Go(func() error {
		_, err := h.flows.LoadKPIs(ctx, vm, vm)
		return err
	})
	g.Go(func() error {
		if current := board.Current(); reuse && current != nil && current.Data.Dimension == segmentBy {
			vm.ShowChart(current)
			return nil
		}
		_, err := h.flows.LoadSegments(ctx, board, segmentBy, vm, vm)
		if err != nil {
			if current := board.Current(); current != nil {
				vm.ShowChart(current)
			}
		}
		return err
	})
}

func (h *Handler) board(r *http.Request) *dashboard.Board {
	key := ""
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		key = sess.ID
	}
	return h.boards.Get(key)
}

func (h *Handler) segmentParam(r *http.Request) (string, error) {
	dim := strings.TrimSpace(r.FormValue("segment_by"))
	if dim == "" {
		return h.defaultSegment, nil
	}
	if !h.service.ValidDimension(dim) {
		return "", validationError{field: "segment_by"}
	}
	return dim, nil
}

// predictionValues strips the page state carried alongside the form.
func predictionValues(form url.Values) url.Values {
	values := make(url.Values, len(form))
	for key, v := range form {
		if key == "segment_by" {
			continue
		}
		values[key] = v
	}
	return values
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, vm *ui.DashboardViewModel) {
	data := view.TemplateData{
		Title:       pageTitle,
		CurrentPath: r.URL.Path,
		Data:        vm,
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		data.Flash = sess.PopFlash()
		if h.csrf != nil {
			token, err := h.csrf.EnsureToken(r.Context(), sess)
			if err != nil {
				h.logError("ensure csrf token", err)
			}
			data.CSRFToken = token
		}
	}
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.handleServerError(w, "render template", err)
	}
}

func (h *Handler) renderFragments(w http.ResponseWriter, status int, data view.TemplateData, names ...string) {
	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()

	for _, name := range names {
		if err := h.templates.RenderTo(buf, name, data); err != nil {
			h.handleServerError(w, "render fragment", err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream fragment", err)
	}
}

func loadErrorStatus(err error) int {
	if churnapi.IsUpstream(err) {
		return http.StatusBadGateway
	}
	if errors.Is(err, analytics.ErrUnknownDimension) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var vErr validationError
	if errors.As(err, &vErr) {
		http.Error(w, "Invalid parameter: "+vErr.field, http.StatusBadRequest)
		return
	}
	h.handleServerError(w, "parse filters", err)
}

func (h *Handler) handleLoadError(w http.ResponseWriter, context string, err error) {
	status := loadErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.handleServerError(w, context, err)
		return
	}
	h.logError(context, err)
	http.Error(w, http.StatusText(status), status)
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}
