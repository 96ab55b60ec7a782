package export

import (
	"io"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	sheetKPIs      = "KPIs"
	sheetSegments  = "Segments"
	sheetBreakdown = "Breakdown"
)

// WriteXLSX writes a workbook with one sheet per dashboard section.
func WriteXLSX(w io.Writer, payload DashboardPayload) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// The default sheet becomes the KPI sheet.
	if err := f.SetSheetName("Sheet1", sheetKPIs); err != nil {
		return err
	}
	kpis := append([][]string{{"Metric", "Value"}}, kpiRows(payload.Summary)...)
	if err := writeSheet(f, sheetKPIs, kpis); err != nil {
		return err
	}

	segments := [][]string{segmentHeader(payload.Segments.SegmentBy)}
	for _, entry := range payload.Segments.Segments {
		segments = append(segments, segmentRow(entry))
	}
	if _, err := f.NewSheet(sheetSegments); err != nil {
		return err
	}
	if err := writeSheet(f, sheetSegments, segments); err != nil {
		return err
	}

	breakdown := [][]string{breakdownHeader}
	for _, entry := range payload.Summary.Breakdown {
		breakdown = append(breakdown, breakdownRow(entry))
	}
	if _, err := f.NewSheet(sheetBreakdown); err != nil {
		return err
	}
	if err := writeSheet(f, sheetBreakdown, breakdown); err != nil {
		return err
	}

	if idx, err := f.GetSheetIndex(sheetKPIs); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	_, err := f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, sheet string, rows [][]string) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(r, value)); err != nil {
				return err
			}
		}
	}
	return nil
}

// cellValue stores numeric strings as numbers below the header row.
func cellValue(row int, value string) any {
	if row == 0 {
		return value
	}
	if n, ok := parseNumeric(value); ok {
		return n
	}
	return value
}

func parseNumeric(value string) (float64, bool) {
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
