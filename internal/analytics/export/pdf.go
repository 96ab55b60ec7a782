package export

import (
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/dashboard"
)

// DashboardPayload aggregates analytics data destined for exports.
type DashboardPayload struct {
	GeneratedAt time.Time
	Summary     analytics.ChurnSummary
	Segments    analytics.SegmentAnalysis
	ChartSVG    template.HTML
}

// HTMLRenderer converts an HTML document to PDF bytes.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFExporter renders the dashboard snapshot through an HTML-to-PDF service.
type PDFExporter struct {
	Renderer HTMLRenderer
}

// RenderDashboard builds the snapshot HTML and returns the PDF bytes.
func (p *PDFExporter) RenderDashboard(ctx context.Context, payload DashboardPayload) ([]byte, error) {
	if p == nil || p.Renderer == nil {
		return nil, fmt.Errorf("pdf exporter not initialised")
	}
	return p.Renderer.RenderHTML(ctx, buildHTML(payload))
}

func buildHTML(payload DashboardPayload) string {
	kpis := dashboard.FormatKPIs(payload.Summary)

	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><style>")
	b.WriteString("body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}th,td{border:1px solid #ddd;padding:6px;text-align:right;}th{text-align:left;background:#f5f5f5;}section{margin-bottom:24px;} .metric-label{text-align:left;} svg{width:100%;height:auto;}")
	b.WriteString("</style></head><body>")
	b.WriteString("<h1>Customer Churn Analytics</h1>")
	if !payload.GeneratedAt.IsZero() {
		b.WriteString(fmt.Sprintf("<p>Generated %s</p>", templateEscape(payload.GeneratedAt.UTC().Format("02 Jan 2006 15:04 MST"))))
	}

	b.WriteString("<section><h2>KPI Summary</h2><table><tbody>")
	writeMetricRow(&b, "Total Customers", kpis.TotalCustomers)
	writeMetricRow(&b, "Churned Customers", dashboard.FormatCount(payload.Summary.ChurnedCustomers))
	writeMetricRow(&b, "Churn Rate", kpis.ChurnRate)
	writeMetricRow(&b, "Avg Monthly Charges", kpis.AvgCharges)
	weighted, ok := payload.Summary.WeightedAvgCharges()
	writeMetricRow(&b, "Weighted Avg Monthly Charges", dashboard.FormatCurrency(weighted, ok))
	b.WriteString("</tbody></table></section>")

	if payload.ChartSVG != "" {
		b.WriteString("<section><h2>Segment Chart</h2>")
		b.WriteString(string(payload.ChartSVG))
		b.WriteString("</section>")
	}

	if len(payload.Segments.Segments) > 0 {
		b.WriteString("<section><h2>Churn by ")
		b.WriteString(templateEscape(payload.Segments.SegmentBy))
		b.WriteString("</h2><table><thead><tr>")
		for _, heading := range segmentHeader(payload.Segments.SegmentBy) {
			b.WriteString("<th>")
			b.WriteString(templateEscape(heading))
			b.WriteString("</th>")
		}
		b.WriteString("</tr></thead><tbody>")
		for _, entry := range payload.Segments.Segments {
			b.WriteString("<tr><td class=\"metric-label\">")
			b.WriteString(templateEscape(entry.Label))
			b.WriteString("</td><td>")
			b.WriteString(dashboard.FormatCount(entry.Total))
			b.WriteString("</td><td>")
			b.WriteString(dashboard.FormatCount(entry.Churned))
			b.WriteString("</td><td>")
			b.WriteString(dashboard.FormatFixedPercent(entry.ChurnRate))
			b.WriteString("</td><td>")
			b.WriteString(dashboard.FormatCurrency(entry.AvgMonthlyCharges, true))
			b.WriteString("</td><td>")
			b.WriteString(strconv.FormatFloat(entry.AvgTenure, 'f', 1, 64))
			b.WriteString("</td></tr>")
		}
		b.WriteString("</tbody></table></section>")
	}

	b.WriteString("</body></html>")
	return b.String()
}

func writeMetricRow(b *strings.Builder, label, value string) {
	b.WriteString("<tr><td class=\"metric-label\">")
	b.WriteString(templateEscape(label))
	b.WriteString("</td><td>")
	b.WriteString(templateEscape(value))
	b.WriteString("</td></tr>")
}

func templateEscape(v string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(v)
}
