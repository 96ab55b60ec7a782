package dashboard

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/churnboard/churnboard/internal/analytics"
)

// NotAvailable is shown for values that cannot be computed.
const NotAvailable = "N/A"

const (
	verdictChurn = "⚠️ Likely to Churn"
	verdictStay  = "✅ Likely to Stay"
)

// FormatCount renders n with thousands separators (7,043).
func FormatCount(n int) string {
	// message.Printer is not safe for concurrent use.
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// FormatPercent renders a 0–100 rate in its shortest form (26.54%).
func FormatPercent(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64) + "%"
}

// FormatFixedPercent renders a 0–100 rate with two decimals (42.70%).
func FormatFixedPercent(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 2, 64) + "%"
}

// FormatCurrency renders a dollar amount with two decimals, or N/A.
func FormatCurrency(amount float64, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return "$" + strconv.FormatFloat(amount, 'f', 2, 64)
}

// FormatProbability renders a 0–1 probability as a percentage with one decimal.
func FormatProbability(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
}

// RiskClass is the CSS class list of the risk badge.
func RiskClass(risk string) string {
	return "metric-value risk-badge risk-" + strings.ToLower(risk)
}

// FormatKPIs builds the KPI card from a summary.
func FormatKPIs(summary analytics.ChurnSummary) KPIDisplay {
	avg, ok := summary.AvgCharges()
	return KPIDisplay{
		TotalCustomers: FormatCount(summary.TotalCustomers),
		ChurnRate:      FormatPercent(summary.ChurnRate),
		AvgCharges:     FormatCurrency(avg, ok),
	}
}

// FormatResult builds the prediction panel from a model verdict.
func FormatResult(result analytics.PredictionResult) ResultDisplay {
	display := ResultDisplay{
		Probability:    FormatProbability(result.ChurnProbability),
		RiskLevel:      result.RiskLevel,
		RiskClass:      RiskClass(result.RiskLevel),
		Verdict:        verdictStay,
		WillChurn:      result.WillChurn(),
		PredictionDate: result.PredictionDate,
	}
	if display.WillChurn {
		display.Verdict = verdictChurn
	}
	if result.Confidence != nil {
		display.Confidence = FormatProbability(*result.Confidence)
	}
	return display
}
