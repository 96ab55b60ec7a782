package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/churnboard/churnboard/internal/dashboard"
)

// terminal renders the dashboard ports as plain text tables. In JSON mode
// the ports stay silent and the command prints the raw payload instead.
type terminal struct {
	out     io.Writer
	errOut  io.Writer
	json    bool
	pending *dashboard.ResultDisplay
}

func newTerminal(out, errOut io.Writer, jsonMode bool) *terminal {
	return &terminal{out: out, errOut: errOut, json: jsonMode}
}

func (t *terminal) ShowKPIs(kpis dashboard.KPIDisplay) {
	if t.json {
		return
	}
	tw := t.table()
	fmt.Fprintf(tw, "Total customers\t%s\n", kpis.TotalCustomers)
	fmt.Fprintf(tw, "Churn rate\t%s\n", kpis.ChurnRate)
	fmt.Fprintf(tw, "Avg monthly charges\t%s\n", kpis.AvgCharges)
	_ = tw.Flush()
}

func (t *terminal) ShowChart(chart *dashboard.Chart) {
	if t.json || chart == nil {
		return
	}
	fmt.Fprintf(t.out, "Churn by %s\n", chart.Data.Dimension)
	tw := t.table()
	fmt.Fprintf(tw, "SEGMENT\tTOTAL\tCHURNED\tCHURN RATE\tAVG CHARGES\tAVG TENURE\n")
	for _, entry := range chart.Data.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f\n",
			entry.Label,
			dashboard.FormatCount(entry.Total),
			dashboard.FormatCount(entry.Churned),
			dashboard.FormatFixedPercent(entry.ChurnRate),
			dashboard.FormatCurrency(entry.AvgMonthlyCharges, true),
			entry.AvgTenure,
		)
	}
	_ = tw.Flush()
}

// ShowResult holds the panel until Reveal so a half-written result never
// reaches the terminal.
func (t *terminal) ShowResult(result dashboard.ResultDisplay) {
	t.pending = &result
}

func (t *terminal) Reveal() {
	if t.json || t.pending == nil {
		return
	}
	result := t.pending
	tw := t.table()
	fmt.Fprintf(tw, "Verdict\t%s\n", result.Verdict)
	fmt.Fprintf(tw, "Churn probability\t%s\n", result.Probability)
	fmt.Fprintf(tw, "Risk level\t%s\n", result.RiskLevel)
	if result.Confidence != "" {
		fmt.Fprintf(tw, "Confidence\t%s\n", result.Confidence)
	}
	if result.PredictionDate != "" {
		fmt.Fprintf(tw, "Predicted at\t%s\n", result.PredictionDate)
	}
	_ = tw.Flush()
}

func (t *terminal) Notify(n dashboard.Notification) {
	fmt.Fprintf(t.errOut, "%s: %s\n", n.Level, n.Message)
}

func (t *terminal) table() *tabwriter.Writer {
	return tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
}
