package dashboard

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/shared"
)

func TestFormatters(t *testing.T) {
	assert.Equal(t, "7,043", FormatCount(7043))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
	assert.Equal(t, "12", FormatCount(12))
	assert.Equal(t, "26.54%", FormatPercent(26.54))
	assert.Equal(t, "42.70%", FormatFixedPercent(42.7))
	assert.Equal(t, "$64.76", FormatCurrency(64.7617, true))
	assert.Equal(t, "N/A", FormatCurrency(0, false))
	assert.Equal(t, "82.3%", FormatProbability(0.823))
	assert.Equal(t, "0.0%", FormatProbability(0))
	assert.Equal(t, "metric-value risk-badge risk-medium", RiskClass("Medium"))
}

func TestFormatResultStayVerdict(t *testing.T) {
	confidence := 0.9
	display := FormatResult(analytics.PredictionResult{
		ChurnProbability: 0.1,
		ChurnPrediction:  "No",
		RiskLevel:        "Low",
		Confidence:       &confidence,
		PredictionDate:   "2026-10-19T10:00:00Z",
	})
	assert.Equal(t, "✅ Likely to Stay", display.Verdict)
	assert.False(t, display.WillChurn)
	assert.Equal(t, "metric-value risk-badge risk-low", display.RiskClass)
	assert.Equal(t, "90.0%", display.Confidence)
}

func TestCoerceForm(t *testing.T) {
	form := url.Values{
		"tenure":             {"12"},
		"MonthlyCharges":     {" 70.5 "},
		"SeniorCitizen":      {"0"},
		"Contract":           {"Month-to-month"},
		"PaymentMethod":      {"Mailed check", "Electronic check"},
		"InternetService":    {"Fiber optic"},
		shared.CSRFFormField: {"token"},
	}
	input := CoerceForm(form)
	assert.Equal(t, 12.0, input["tenure"])
	assert.Equal(t, 70.5, input["MonthlyCharges"])
	assert.Equal(t, 0.0, input["SeniorCitizen"])
	assert.Equal(t, "Month-to-month", input["Contract"])
	assert.Equal(t, "Electronic check", input["PaymentMethod"])
	_, hasToken := input[shared.CSRFFormField]
	assert.False(t, hasToken)
}

func TestCoerceFormUnparseableBecomesNull(t *testing.T) {
	input := CoerceForm(url.Values{"tenure": {"abc"}, "MonthlyCharges": {"NaN"}, "SeniorCitizen": {""}})
	for _, field := range NumericFields {
		value, ok := input[field]
		require.True(t, ok, field)
		assert.Nil(t, value, field)
	}
}

func TestCoerceFormReadsLeadingNumber(t *testing.T) {
	input := CoerceForm(url.Values{"tenure": {"12abc"}, "MonthlyCharges": {"70.5 USD"}, "SeniorCitizen": {"1e"}})
	assert.Equal(t, 12.0, input["tenure"])
	assert.Equal(t, 70.5, input["MonthlyCharges"])
	assert.Equal(t, 1.0, input["SeniorCitizen"])

	cases := map[string]any{
		"-.5x":  -0.5,
		"+3.":   3.0,
		"2e3kg": 2000.0,
		"0x10":  0.0,
		"x12":   nil,
		"1e999": nil,
		".":     nil,
	}
	for raw, want := range cases {
		assert.Equal(t, want, parseNumber(raw), raw)
	}
}

func TestCoerceInputAcceptsNumbersAndText(t *testing.T) {
	input := CoerceInput(map[string]any{
		"tenure":             24.0,
		"MonthlyCharges":     "89.9",
		"SeniorCitizen":      true,
		"Contract":           "One year",
		shared.CSRFFormField: "token",
	})
	assert.Equal(t, 24.0, input["tenure"])
	assert.Equal(t, 89.9, input["MonthlyCharges"])
	assert.Nil(t, input["SeniorCitizen"])
	assert.Equal(t, "One year", input["Contract"])
	assert.NotContains(t, input, shared.CSRFFormField)
}

func TestBoardReleaseAndPrune(t *testing.T) {
	boards := NewBoards(time.Minute)
	board := boards.Get("abc")
	assert.Same(t, board, boards.Get("abc"))
	assert.Same(t, boards.Get(""), boards.Get("anonymous"))

	chart := NewChart(SegmentChart{}, "")
	board.Replace(chart)
	assert.Same(t, chart, board.Current())

	boards.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	fresh := boards.Get("abc")
	assert.NotSame(t, board, fresh)
	assert.True(t, chart.Released())
	assert.Equal(t, 1, boards.Len())
}

func TestBoardCommitOrdering(t *testing.T) {
	board := NewBoard()
	first := board.Begin()
	second := board.Begin()

	a := NewChart(SegmentChart{}, "")
	b := NewChart(SegmentChart{}, "")
	require.NoError(t, board.Commit(second, b))
	assert.ErrorIs(t, board.Commit(first, a), ErrStaleChart)
	assert.True(t, a.Released())
	assert.Same(t, b, board.Current())

	board.Release()
	assert.Nil(t, board.Current())
	assert.True(t, b.Released())
	assert.False(t, b.Release())
}
