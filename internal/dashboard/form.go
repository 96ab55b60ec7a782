package dashboard

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/shared"
)

// NumericFields are the prediction fields sent as numbers.
var NumericFields = []string{"tenure", "MonthlyCharges", "SeniorCitizen"}

// CoerceForm turns submitted form values into the prediction payload.
// Numeric fields become float64, or nil when they do not parse to a finite
// number. Repeated keys keep their last value. The CSRF field is dropped.
func CoerceForm(form url.Values) analytics.PredictionInput {
	input := make(analytics.PredictionInput, len(form))
	for key, values := range form {
		if key == shared.CSRFFormField || len(values) == 0 {
			continue
		}
		value := values[len(values)-1]
		if isNumericField(key) {
			input[key] = parseNumber(value)
			continue
		}
		input[key] = value
	}
	return input
}

// CoerceInput applies the same rules to a decoded JSON object. Numeric
// fields may arrive as numbers or as text.
func CoerceInput(raw map[string]any) analytics.PredictionInput {
	input := make(analytics.PredictionInput, len(raw))
	for key, value := range raw {
		if key == shared.CSRFFormField {
			continue
		}
		if !isNumericField(key) {
			input[key] = value
			continue
		}
		switch v := value.(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				input[key] = nil
			} else {
				input[key] = v
			}
		case string:
			input[key] = parseNumber(v)
		default:
			input[key] = nil
		}
	}
	return input
}

func isNumericField(key string) bool {
	for _, field := range NumericFields {
		if field == key {
			return true
		}
	}
	return false
}

// leadingNumber matches the decimal prefix a browser's parseFloat reads.
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// parseNumber reads the leading decimal number of raw, so "12abc" is 12.
// Text without one, and values that overflow, become nil.
func parseNumber(raw string) any {
	prefix := leadingNumber.FindString(strings.TrimSpace(raw))
	if prefix == "" {
		return nil
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
