package svg

import (
	"fmt"
	"math"
	"strings"
)

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

// axisMax returns the top of an axis for series: the largest value rounded
// up to 1, 2, 2.5, 5 or 10 times a power of ten. Empty or non-positive
// series get an axis of 1.
func axisMax(series []float64) float64 {
	peak := 0.0
	for _, v := range series {
		if !math.IsNaN(v) && v > peak {
			peak = v
		}
	}
	if peak <= 0 || math.IsInf(peak, 1) {
		return 1
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(peak)))
	for _, step := range []float64{1, 2, 2.5, 5, 10} {
		if bound := step * magnitude; bound >= peak-1e-9 {
			return bound
		}
	}
	return 10 * magnitude
}

// makeID turns a chart title into an id-safe prefix.
func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

// formatTick abbreviates customer counts and keeps one decimal for rates.
func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case math.Abs(v-math.Round(v)) < 1e-9:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}
