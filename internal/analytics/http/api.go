package analytichttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/analytics/ui"
	"github.com/churnboard/churnboard/internal/churnapi"
	"github.com/churnboard/churnboard/internal/dashboard"
	"github.com/churnboard/churnboard/internal/platform/httpx"
)

type kpiResponse struct {
	KPIs    dashboard.KPIDisplay   `json:"kpis"`
	Summary analytics.ChurnSummary `json:"summary"`
}

type segmentResponse struct {
	ChartID       string                   `json:"chart_id"`
	SegmentBy     string                   `json:"segment_by"`
	Labels        []string                 `json:"labels"`
	ChurnRates    []float64                `json:"churn_rates"`
	Totals        []float64                `json:"totals"`
	RateTooltips  []string                 `json:"rate_tooltips"`
	TotalTooltips []string                 `json:"total_tooltips"`
	Segments      []analytics.SegmentEntry `json:"segments"`
}

type predictResponse struct {
	Result     dashboard.ResultDisplay    `json:"result"`
	Prediction analytics.PredictionResult `json:"prediction"`
}

func (h *Handler) handleAPIKPIs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	vm := ui.NewDashboardViewModel(nil, "", ui.PredictionForm{})
	summary, err := h.flows.LoadKPIs(ctx, vm, vm)
	if err != nil {
		respondFlowError(w, err, dashboard.MsgKPIFailed)
		return
	}
	httpx.JSON(w, http.StatusOK, kpiResponse{KPIs: vm.KPIs, Summary: summary})
}

func (h *Handler) handleAPISegments(w http.ResponseWriter, r *http.Request) {
	segmentBy, err := h.segmentParam(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	vm := ui.NewDashboardViewModel(nil, segmentBy, ui.PredictionForm{})
	chart, err := h.flows.LoadSegments(ctx, h.board(r), segmentBy, vm, vm)
	if err != nil {
		if errors.Is(err, dashboard.ErrStaleChart) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondFlowError(w, err, dashboard.MsgSegmentsFailed)
		return
	}
	httpx.JSON(w, http.StatusOK, segmentResponse{
		ChartID:       chart.ID,
		SegmentBy:     chart.Data.Dimension,
		Labels:        chart.Data.Labels,
		ChurnRates:    chart.Data.ChurnRates,
		Totals:        chart.Data.Totals,
		RateTooltips:  chart.Data.RateTooltips,
		TotalTooltips: chart.Data.TotalTooltips,
		Segments:      chart.Data.Entries,
	})
}

func (h *Handler) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := httpx.DecodeJSON(r, &raw); err != nil || raw == nil {
		httpx.RespondError(w, fmt.Errorf("%w: request body must be a JSON object", httpx.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	vm := ui.NewDashboardViewModel(nil, "", ui.PredictionForm{})
	result, err := h.flows.Predict(ctx, dashboard.CoerceInput(raw), vm, vm)
	if err != nil {
		respondFlowError(w, err, dashboard.MsgPredictFailed)
		return
	}
	httpx.JSON(w, http.StatusOK, predictResponse{Result: *vm.Result, Prediction: result})
}

// respondFlowError maps a flow failure to a problem response carrying the
// same message the page would show.
func respondFlowError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, analytics.ErrUnknownDimension):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case churnapi.IsUpstream(err):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUpstream, message))
	default:
		httpx.RespondError(w, err)
	}
}
