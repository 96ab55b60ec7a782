package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// UnknownSegment labels a bucket with neither a segment name nor an id.
const UnknownSegment = "Unknown"

// SegmentEntry is one bucket of the segment analysis.
type SegmentEntry struct {
	Label             string  `json:"label"`
	Total             int     `json:"total"`
	Churned           int     `json:"churned"`
	ChurnRate         float64 `json:"churn_rate"`
	AvgMonthlyCharges float64 `json:"avg_monthly_charges"`
	AvgTenure         float64 `json:"avg_tenure"`
}

// SegmentAnalysis holds the buckets for one dimension, in upstream order.
type SegmentAnalysis struct {
	SegmentBy string         `json:"segment_by"`
	Segments  []SegmentEntry `json:"segments"`
}

// GetSegmentAnalysis loads the breakdown for dim through the cache.
func (s *Service) GetSegmentAnalysis(ctx context.Context, dim string) (SegmentAnalysis, error) {
	if !s.ValidDimension(dim) {
		return SegmentAnalysis{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	var analysis SegmentAnalysis
	loader := func(ctx context.Context) (any, error) {
		return s.loadSegments(ctx, dim)
	}
	if err := s.cached(ctx, keySegments(dim), &analysis, loader); err != nil {
		return SegmentAnalysis{}, err
	}
	return analysis, nil
}

func (s *Service) loadSegments(ctx context.Context, dim string) (SegmentAnalysis, error) {
	resp, err := s.upstream.SegmentAnalysis(ctx, dim)
	if err != nil {
		return SegmentAnalysis{}, err
	}
	analysis := SegmentAnalysis{
		SegmentBy: dim,
		Segments:  make([]SegmentEntry, 0, len(resp.Segments)),
	}
	for _, row := range resp.Segments {
		analysis.Segments = append(analysis.Segments, SegmentEntry{
			Label:             SegmentLabel(row.Segment, row.ID),
			Total:             row.Total,
			Churned:           row.Churned,
			ChurnRate:         row.ChurnRate,
			AvgMonthlyCharges: orZero(row.AvgMonthlyCharges),
			AvgTenure:         orZero(row.AvgTenure),
		})
	}
	return analysis, nil
}

// SegmentLabel prefers segment when it is truthy and falls back to id.
// Falsy means nil, "", 0 or false. A present id is used even when falsy
// so a zero-valued bucket (SeniorCitizen=0) keeps its label.
func SegmentLabel(segment, id any) string {
	if truthy(segment) {
		return labelText(segment)
	}
	if id != nil {
		if text := labelText(id); text != "" {
			return text
		}
	}
	return UnknownSegment
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}

func labelText(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
