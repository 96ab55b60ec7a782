package dashboard

import (
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/churnapi"
)

type stubSource struct {
	summary    analytics.ChurnSummary
	summaryErr error
	segments   map[string]analytics.SegmentAnalysis
	segErr     error
	result     analytics.PredictionResult
	predictErr error
	lastInput  analytics.PredictionInput
	gate       map[string]chan struct{}
}

func (s *stubSource) GetChurnSummary(ctx context.Context) (analytics.ChurnSummary, error) {
	return s.summary, s.summaryErr
}

func (s *stubSource) GetSegmentAnalysis(ctx context.Context, dim string) (analytics.SegmentAnalysis, error) {
	if ch, ok := s.gate[dim]; ok {
		<-ch
	}
	if s.segErr != nil {
		return analytics.SegmentAnalysis{}, s.segErr
	}
	return s.segments[dim], nil
}

func (s *stubSource) Predict(ctx context.Context, input analytics.PredictionInput) (analytics.PredictionResult, error) {
	s.lastInput = input
	return s.result, s.predictErr
}

type recorder struct {
	mu       sync.Mutex
	kpis     []KPIDisplay
	charts   []*Chart
	results  []ResultDisplay
	reveals  int
	notified []Notification
}

func (r *recorder) ShowKPIs(k KPIDisplay) { r.mu.Lock(); r.kpis = append(r.kpis, k); r.mu.Unlock() }
func (r *recorder) ShowChart(c *Chart)    { r.mu.Lock(); r.charts = append(r.charts, c); r.mu.Unlock() }
func (r *recorder) ShowResult(d ResultDisplay) {
	r.mu.Lock()
	r.results = append(r.results, d)
	r.mu.Unlock()
}
func (r *recorder) Reveal() { r.mu.Lock(); r.reveals++; r.mu.Unlock() }
func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notified = append(r.notified, n)
	r.mu.Unlock()
}

func newTestDashboard(src Source) *Dashboard {
	return New(src, SVGCharts{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func contractAnalysis() analytics.SegmentAnalysis {
	return analytics.SegmentAnalysis{SegmentBy: "Contract", Segments: []analytics.SegmentEntry{
		{Label: "Month-to-month", Total: 3875, ChurnRate: 42.71},
		{Label: "One year", Total: 1473, ChurnRate: 11.27},
		{Label: "Two year", Total: 1695, ChurnRate: 2.83},
	}}
}

func TestLoadKPIsWritesCard(t *testing.T) {
	src := &stubSource{summary: analytics.ChurnSummary{
		TotalCustomers: 7043,
		ChurnRate:      26.54,
		Breakdown:      []analytics.BreakdownEntry{{AvgMonthlyCharges: 60.10}, {AvgMonthlyCharges: 70.30}},
	}}
	rec := &recorder{}
	_, err := newTestDashboard(src).LoadKPIs(context.Background(), rec, rec)
	require.NoError(t, err)
	require.Len(t, rec.kpis, 1)
	assert.Equal(t, KPIDisplay{TotalCustomers: "7,043", ChurnRate: "26.54%", AvgCharges: "$65.20"}, rec.kpis[0])
	assert.Empty(t, rec.notified)
}

func TestLoadKPIsEmptyBreakdownShowsNA(t *testing.T) {
	src := &stubSource{summary: analytics.ChurnSummary{TotalCustomers: 0, ChurnRate: 0}}
	rec := &recorder{}
	_, err := newTestDashboard(src).LoadKPIs(context.Background(), rec, rec)
	require.NoError(t, err)
	assert.Equal(t, NotAvailable, rec.kpis[0].AvgCharges)
	assert.Equal(t, "0%", rec.kpis[0].ChurnRate)
}

func TestLoadKPIsFailureNotifiesOnce(t *testing.T) {
	src := &stubSource{summaryErr: churnapi.ErrTransport}
	rec := &recorder{}
	_, err := newTestDashboard(src).LoadKPIs(context.Background(), rec, rec)
	require.Error(t, err)
	assert.Empty(t, rec.kpis)
	require.Len(t, rec.notified, 1)
	assert.Equal(t, MsgKPIFailed, rec.notified[0].Message)
	assert.Equal(t, LevelError, rec.notified[0].Level)
}

func TestLoadSegmentsShapesChart(t *testing.T) {
	src := &stubSource{segments: map[string]analytics.SegmentAnalysis{"Contract": contractAnalysis()}}
	rec := &recorder{}
	board := NewBoard()
	chart, err := newTestDashboard(src).LoadSegments(context.Background(), board, "Contract", rec, rec)
	require.NoError(t, err)
	require.Len(t, rec.charts, 1)
	assert.Same(t, chart, board.Current())
	assert.Equal(t, []string{"Month-to-month", "One year", "Two year"}, chart.Data.Labels)
	assert.Len(t, chart.Data.ChurnRates, 3)
	assert.Len(t, chart.Data.Totals, 3)
	assert.Equal(t, "Churn Rate (%): 42.71%", chart.Data.RateTooltips[0])
	assert.Equal(t, "Total Customers: 3,875", chart.Data.TotalTooltips[0])
	assert.Contains(t, string(chart.SVG), "Month-to-month")
}

func TestLoadSegmentsTwiceKeepsOneChart(t *testing.T) {
	src := &stubSource{segments: map[string]analytics.SegmentAnalysis{
		"Contract":        contractAnalysis(),
		"InternetService": {SegmentBy: "InternetService", Segments: []analytics.SegmentEntry{{Label: "DSL", Total: 2421, ChurnRate: 18.96}}},
	}}
	rec := &recorder{}
	board := NewBoard()
	d := newTestDashboard(src)

	first, err := d.LoadSegments(context.Background(), board, "Contract", rec, rec)
	require.NoError(t, err)
	second, err := d.LoadSegments(context.Background(), board, "InternetService", rec, rec)
	require.NoError(t, err)

	assert.True(t, first.Released())
	assert.False(t, second.Released())
	assert.Same(t, second, board.Current())
}

func TestLoadSegmentsFailureLeavesChart(t *testing.T) {
	src := &stubSource{segments: map[string]analytics.SegmentAnalysis{"Contract": contractAnalysis()}}
	rec := &recorder{}
	board := NewBoard()
	d := newTestDashboard(src)
	existing, err := d.LoadSegments(context.Background(), board, "Contract", rec, rec)
	require.NoError(t, err)

	src.segErr = &churnapi.StatusError{StatusCode: 500}
	_, err = d.LoadSegments(context.Background(), board, "Contract", rec, rec)
	require.Error(t, err)
	assert.Same(t, existing, board.Current())
	assert.False(t, existing.Released())
	require.Len(t, rec.notified, 1)
	assert.Equal(t, MsgSegmentsFailed, rec.notified[0].Message)
}

func TestLoadSegmentsStaleCompletionDiscarded(t *testing.T) {
	slow := make(chan struct{})
	src := &stubSource{
		segments: map[string]analytics.SegmentAnalysis{
			"Contract":      contractAnalysis(),
			"PaymentMethod": {SegmentBy: "PaymentMethod", Segments: []analytics.SegmentEntry{{Label: "Mailed check", Total: 1612}}},
		},
		gate: map[string]chan struct{}{"Contract": slow},
	}
	rec := &recorder{}
	board := NewBoard()
	d := newTestDashboard(src)

	type outcome struct {
		chart *Chart
		err   error
	}
	done := make(chan outcome, 1)
	started := make(chan struct{})
	go func() {
		ticket := board.Begin()
		close(started)
		analysis, err := src.GetSegmentAnalysis(context.Background(), "Contract")
		if err != nil {
			done <- outcome{err: err}
			return
		}
		chart, err := d.RenderSegmentChart(analysis)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{chart: chart, err: board.Commit(ticket, chart)}
	}()
	<-started

	fresh, err := d.LoadSegments(context.Background(), board, "PaymentMethod", rec, rec)
	require.NoError(t, err)
	close(slow)
	stale := <-done

	assert.ErrorIs(t, stale.err, ErrStaleChart)
	assert.True(t, stale.chart.Released())
	assert.Same(t, fresh, board.Current())
	assert.False(t, fresh.Released())
	assert.Empty(t, rec.notified)
}

func TestSubmitPredictionRendersResult(t *testing.T) {
	src := &stubSource{result: analytics.PredictionResult{ChurnProbability: 0.823, RiskLevel: "High", ChurnPrediction: "Yes"}}
	rec := &recorder{}
	form := url.Values{
		"tenure":         {"12"},
		"MonthlyCharges": {"70.5"},
		"SeniorCitizen":  {"0"},
		"Contract":       {"Month-to-month"},
	}
	_, err := newTestDashboard(src).SubmitPrediction(context.Background(), form, rec, rec)
	require.NoError(t, err)
	require.Len(t, rec.results, 1)
	got := rec.results[0]
	assert.Equal(t, "82.3%", got.Probability)
	assert.Equal(t, "High", got.RiskLevel)
	assert.Equal(t, "metric-value risk-badge risk-high", got.RiskClass)
	assert.Equal(t, "⚠️ Likely to Churn", got.Verdict)
	assert.Equal(t, 1, rec.reveals)
	assert.Equal(t, 12.0, src.lastInput["tenure"])
	assert.Equal(t, "Month-to-month", src.lastInput["Contract"])
}

func TestSubmitPredictionFailureNoResult(t *testing.T) {
	src := &stubSource{predictErr: &churnapi.StatusError{Operation: churnapi.OpPredict, StatusCode: 503}}
	rec := &recorder{}
	_, err := newTestDashboard(src).SubmitPrediction(context.Background(), url.Values{"tenure": {"1"}}, rec, rec)
	require.Error(t, err)
	var statusErr *churnapi.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Empty(t, rec.results)
	assert.Zero(t, rec.reveals)
	require.Len(t, rec.notified, 1)
	assert.Equal(t, MsgPredictFailed, rec.notified[0].Message)
}

type failingRenderer struct{}

func (failingRenderer) RenderSegmentChart(SegmentChart) (template.HTML, error) {
	return "", errors.New("boom")
}

func TestLoadSegmentsRenderFailureNotifies(t *testing.T) {
	src := &stubSource{segments: map[string]analytics.SegmentAnalysis{"Contract": contractAnalysis()}}
	rec := &recorder{}
	board := NewBoard()
	d := New(src, failingRenderer{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := d.LoadSegments(context.Background(), board, "Contract", rec, rec)
	require.Error(t, err)
	assert.Nil(t, board.Current())
	require.Len(t, rec.notified, 1)
}
