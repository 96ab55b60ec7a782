package analytics

import (
	"context"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// BreakdownEntry is one churn group (Yes/No) of the KPI aggregation.
type BreakdownEntry struct {
	Group             any     `json:"group"`
	Count             int     `json:"count"`
	AvgMonthlyCharges float64 `json:"avg_monthly_charges"`
	AvgTenure         float64 `json:"avg_tenure"`
}

// ChurnSummary contains the headline churn indicators surfaced on the dashboard.
type ChurnSummary struct {
	TotalCustomers   int              `json:"total_customers"`
	ChurnedCustomers int              `json:"churned_customers"`
	ChurnRate        float64          `json:"churn_rate"`
	Breakdown        []BreakdownEntry `json:"breakdown"`
}

// AvgCharges is the unweighted mean of the per-group average monthly
// charges. ok is false when the breakdown is empty.
func (s ChurnSummary) AvgCharges() (float64, bool) {
	if len(s.Breakdown) == 0 {
		return 0, false
	}
	values := make(stats.Float64Data, 0, len(s.Breakdown))
	for _, entry := range s.Breakdown {
		values = append(values, entry.AvgMonthlyCharges)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, false
	}
	return mean, true
}

// WeightedAvgCharges weights each group's average by its customer count.
func (s ChurnSummary) WeightedAvgCharges() (float64, bool) {
	if len(s.Breakdown) == 0 {
		return 0, false
	}
	values := make([]float64, len(s.Breakdown))
	weights := make([]float64, len(s.Breakdown))
	total := 0.0
	for i, entry := range s.Breakdown {
		values[i] = entry.AvgMonthlyCharges
		weights[i] = float64(entry.Count)
		total += weights[i]
	}
	if total <= 0 {
		return 0, false
	}
	return stat.Mean(values, weights), true
}

// GetChurnSummary resolves the KPI card using cache-aware lookups.
func (s *Service) GetChurnSummary(ctx context.Context) (ChurnSummary, error) {
	var summary ChurnSummary
	loader := func(ctx context.Context) (any, error) {
		return s.loadSummary(ctx)
	}
	if err := s.cached(ctx, keyChurnSummary(), &summary, loader); err != nil {
		return ChurnSummary{}, err
	}
	return summary, nil
}

func (s *Service) loadSummary(ctx context.Context) (ChurnSummary, error) {
	resp, err := s.upstream.ChurnRate(ctx)
	if err != nil {
		return ChurnSummary{}, err
	}
	summary := ChurnSummary{
		ChurnedCustomers: resp.ChurnedCustomers,
		Breakdown:        make([]BreakdownEntry, 0, len(resp.Breakdown)),
	}
	if resp.TotalCustomers != nil {
		summary.TotalCustomers = *resp.TotalCustomers
	}
	if resp.ChurnRate != nil {
		summary.ChurnRate = *resp.ChurnRate
	}
	for _, row := range resp.Breakdown {
		summary.Breakdown = append(summary.Breakdown, BreakdownEntry{
			Group:             row.ID,
			Count:             row.Count,
			AvgMonthlyCharges: orZero(row.AvgMonthlyCharges),
			AvgTenure:         orZero(row.AvgTenure),
		})
	}
	return summary, nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
