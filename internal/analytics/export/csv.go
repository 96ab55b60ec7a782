package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/churnboard/churnboard/internal/analytics"
)

// WriteKPICSV serialises the churn summary to a CSV representation.
func WriteKPICSV(w io.Writer, summary analytics.ChurnSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	for _, record := range kpiRows(summary) {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSegmentsCSV emits one row per segment in upstream order.
func WriteSegmentsCSV(w io.Writer, analysis analytics.SegmentAnalysis) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(segmentHeader(analysis.SegmentBy)); err != nil {
		return err
	}
	for _, entry := range analysis.Segments {
		if err := writer.Write(segmentRow(entry)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBreakdownCSV emits the churned/retained groups of the summary.
func WriteBreakdownCSV(w io.Writer, summary analytics.ChurnSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(breakdownHeader); err != nil {
		return err
	}
	for _, entry := range summary.Breakdown {
		if err := writer.Write(breakdownRow(entry)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

var breakdownHeader = []string{"Churn", "Customers", "Avg Monthly Charges", "Avg Tenure"}

func kpiRows(summary analytics.ChurnSummary) [][]string {
	avg, ok := summary.AvgCharges()
	weighted, wok := summary.WeightedAvgCharges()
	return [][]string{
		{"Total Customers", strconv.Itoa(summary.TotalCustomers)},
		{"Churned Customers", strconv.Itoa(summary.ChurnedCustomers)},
		{"Churn Rate (%)", formatFloat(summary.ChurnRate)},
		{"Avg Monthly Charges", optionalFloat(avg, ok)},
		{"Weighted Avg Monthly Charges", optionalFloat(weighted, wok)},
	}
}

func segmentHeader(dim string) []string {
	if dim == "" {
		dim = "Segment"
	}
	return []string{dim, "Total", "Churned", "Churn Rate (%)", "Avg Monthly Charges", "Avg Tenure"}
}

func segmentRow(entry analytics.SegmentEntry) []string {
	return []string{
		entry.Label,
		strconv.Itoa(entry.Total),
		strconv.Itoa(entry.Churned),
		formatFloat(entry.ChurnRate),
		formatFloat(entry.AvgMonthlyCharges),
		formatFloat(entry.AvgTenure),
	}
}

func breakdownRow(entry analytics.BreakdownEntry) []string {
	return []string{
		analytics.SegmentLabel(entry.Group, nil),
		strconv.Itoa(entry.Count),
		formatFloat(entry.AvgMonthlyCharges),
		formatFloat(entry.AvgTenure),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optionalFloat(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return formatFloat(v)
}
