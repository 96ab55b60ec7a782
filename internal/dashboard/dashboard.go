package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/churnboard/churnboard/internal/analytics"
)

// Source provides the analytics data behind every flow.
type Source interface {
	GetChurnSummary(ctx context.Context) (analytics.ChurnSummary, error)
	GetSegmentAnalysis(ctx context.Context, dim string) (analytics.SegmentAnalysis, error)
	Predict(ctx context.Context, input analytics.PredictionInput) (analytics.PredictionResult, error)
}

// Dashboard runs the KPI, segment and prediction flows.
type Dashboard struct {
	source Source
	charts ChartRenderer
	logger *slog.Logger
}

// New constructs a Dashboard. A nil renderer falls back to SVGCharts.
func New(source Source, charts ChartRenderer, logger *slog.Logger) *Dashboard {
	if charts == nil {
		charts = SVGCharts{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{source: source, charts: charts, logger: logger}
}

// LoadKPIs fetches the churn summary and writes the KPI card. On failure the
// port is not touched and one notification is raised.
func (d *Dashboard) LoadKPIs(ctx context.Context, out KPIPort, notify Notifier) (analytics.ChurnSummary, error) {
	summary, err := d.source.GetChurnSummary(ctx)
	if err != nil {
		d.logger.Error("load kpis", slog.Any("error", err))
		notifyError(notify, MsgKPIFailed)
		return analytics.ChurnSummary{}, err
	}
	out.ShowKPIs(FormatKPIs(summary))
	return summary, nil
}

// LoadSegments fetches the breakdown for dim, renders it and swaps it into
// the board's chart slot. A completion overtaken by a newer one is discarded
// with ErrStaleChart and no port call.
func (d *Dashboard) LoadSegments(ctx context.Context, board *Board, dim string, out ChartPort, notify Notifier) (*Chart, error) {
	ticket := board.Begin()
	logger := d.logger.With(slog.String("segment_by", dim), slog.Uint64("ticket", uint64(ticket)))

	analysis, err := d.source.GetSegmentAnalysis(ctx, dim)
	if err != nil {
		logger.Error("load segments", slog.Any("error", err))
		notifyError(notify, MsgSegmentsFailed)
		return nil, err
	}
	chart, err := d.RenderSegmentChart(analysis)
	if err != nil {
		logger.Error("render segment chart", slog.Any("error", err))
		notifyError(notify, MsgSegmentsFailed)
		return nil, err
	}
	if err := board.Commit(ticket, chart); err != nil {
		if errors.Is(err, ErrStaleChart) {
			logger.Debug("discarded stale segment chart", slog.String("chart_id", chart.ID))
		}
		return nil, err
	}
	out.ShowChart(chart)
	return chart, nil
}

// RenderSegmentChart shapes and renders analysis without touching any board.
func (d *Dashboard) RenderSegmentChart(analysis analytics.SegmentAnalysis) (*Chart, error) {
	data := ShapeSegments(analysis)
	markup, err := d.charts.RenderSegmentChart(data)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return NewChart(data, markup), nil
}

// SubmitPrediction coerces form, asks the model and writes the result panel
// before revealing it. Any failure yields one notification and no result.
func (d *Dashboard) SubmitPrediction(ctx context.Context, form url.Values, out ResultPort, notify Notifier) (analytics.PredictionResult, error) {
	return d.Predict(ctx, CoerceForm(form), out, notify)
}

// Predict is SubmitPrediction for an already coerced payload.
func (d *Dashboard) Predict(ctx context.Context, input analytics.PredictionInput, out ResultPort, notify Notifier) (analytics.PredictionResult, error) {
	result, err := d.source.Predict(ctx, input)
	if err != nil {
		d.logger.Error("predict churn", slog.Any("error", err))
		notifyError(notify, MsgPredictFailed)
		return analytics.PredictionResult{}, err
	}
	out.ShowResult(FormatResult(result))
	out.Reveal()
	return result, nil
}
