package dashboard

import (
	"html/template"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/analytics/svg"
)

// Series labels shared by the chart, exports and the terminal client.
const (
	ChurnSeriesLabel = "Churn Rate (%)"
	TotalSeriesLabel = "Total Customers"
)

// SegmentChart is the shaped, render-ready segment data.
type SegmentChart struct {
	Dimension     string
	Labels        []string
	ChurnRates    []float64
	Totals        []float64
	RateTooltips  []string
	TotalTooltips []string
	Entries       []analytics.SegmentEntry
}

// ShapeSegments derives labels, both series and their tooltips from the
// breakdown, preserving upstream order.
func ShapeSegments(analysis analytics.SegmentAnalysis) SegmentChart {
	n := len(analysis.Segments)
	chart := SegmentChart{
		Dimension:     analysis.SegmentBy,
		Labels:        make([]string, 0, n),
		ChurnRates:    make([]float64, 0, n),
		Totals:        make([]float64, 0, n),
		RateTooltips:  make([]string, 0, n),
		TotalTooltips: make([]string, 0, n),
		Entries:       append([]analytics.SegmentEntry(nil), analysis.Segments...),
	}
	for _, entry := range analysis.Segments {
		chart.Labels = append(chart.Labels, entry.Label)
		chart.ChurnRates = append(chart.ChurnRates, entry.ChurnRate)
		chart.Totals = append(chart.Totals, float64(entry.Total))
		chart.RateTooltips = append(chart.RateTooltips, ChurnSeriesLabel+": "+FormatFixedPercent(entry.ChurnRate))
		chart.TotalTooltips = append(chart.TotalTooltips, TotalSeriesLabel+": "+FormatCount(entry.Total))
	}
	return chart
}

// ChartRenderer turns shaped data into markup.
type ChartRenderer interface {
	RenderSegmentChart(SegmentChart) (template.HTML, error)
}

// SVGCharts renders segment charts with the inline SVG renderer.
type SVGCharts struct {
	Width  int
	Height int
}

// RenderSegmentChart implements ChartRenderer.
func (r SVGCharts) RenderSegmentChart(data SegmentChart) (template.HTML, error) {
	return svg.DualAxisBars(r.Width, r.Height,
		svg.Series{Label: ChurnSeriesLabel, Values: data.ChurnRates, Tooltips: data.RateTooltips, TickSuffix: "%"},
		svg.Series{Label: TotalSeriesLabel, Values: data.Totals, Tooltips: data.TotalTooltips},
		data.Labels,
		svg.DualAxisOpts{
			Title:       "Churn by " + data.Dimension,
			Description: "Churn rate and customer count per " + data.Dimension + " segment",
		},
	)
}

// Chart is one rendered chart instance. Once released it must not be shown.
type Chart struct {
	ID       string
	Data     SegmentChart
	SVG      template.HTML
	released atomic.Bool
}

// NewChart wraps rendered markup in a fresh instance.
func NewChart(data SegmentChart, markup template.HTML) *Chart {
	return &Chart{ID: uuid.NewString(), Data: data, SVG: markup}
}

// Release marks the chart destroyed. It reports false if it was already released.
func (c *Chart) Release() bool {
	if c == nil {
		return false
	}
	return c.released.CompareAndSwap(false, true)
}

// Released reports whether the chart has been destroyed.
func (c *Chart) Released() bool {
	return c != nil && c.released.Load()
}
