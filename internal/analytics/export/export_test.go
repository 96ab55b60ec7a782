package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/report"
)

func sampleSummary() analytics.ChurnSummary {
	return analytics.ChurnSummary{
		TotalCustomers:   7043,
		ChurnedCustomers: 1869,
		ChurnRate:        26.54,
		Breakdown: []analytics.BreakdownEntry{
			{Group: "No", Count: 5174, AvgMonthlyCharges: 61.27, AvgTenure: 37.57},
			{Group: "Yes", Count: 1869, AvgMonthlyCharges: 74.44, AvgTenure: 17.98},
		},
	}
}

func sampleSegments() analytics.SegmentAnalysis {
	return analytics.SegmentAnalysis{SegmentBy: "Contract", Segments: []analytics.SegmentEntry{
		{Label: "Month-to-month", Total: 3875, Churned: 1655, ChurnRate: 42.71, AvgMonthlyCharges: 66.4, AvgTenure: 18.04},
		{Label: "Two year", Total: 1695, Churned: 48, ChurnRate: 2.83, AvgMonthlyCharges: 60.77, AvgTenure: 56.74},
	}}
}

func TestWriteKPICSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteKPICSV(buf, sampleSummary()); err != nil {
		t.Fatalf("kpi csv error: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("expected header plus 5 rows, got %d", len(records))
	}
	if records[1][1] != "7043" || records[3][1] != "26.54" {
		t.Fatalf("unexpected kpi rows %v", records)
	}
}

func TestWriteKPICSVEmptyBreakdown(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteKPICSV(buf, analytics.ChurnSummary{}); err != nil {
		t.Fatalf("kpi csv error: %v", err)
	}
	records, _ := csv.NewReader(buf).ReadAll()
	if records[4][1] != "" {
		t.Fatalf("expected empty average, got %q", records[4][1])
	}
}

func TestWriteSegmentsCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteSegmentsCSV(buf, sampleSegments()); err != nil {
		t.Fatalf("segments csv error: %v", err)
	}
	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if records[0][0] != "Contract" {
		t.Fatalf("expected dimension header, got %v", records[0])
	}
	if records[1][0] != "Month-to-month" || records[1][3] != "42.71" {
		t.Fatalf("unexpected first row %v", records[1])
	}
}

func TestWriteBreakdownCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteBreakdownCSV(buf, sampleSummary()); err != nil {
		t.Fatalf("breakdown csv error: %v", err)
	}
	if !strings.Contains(buf.String(), "Yes,1869,74.44,17.98") {
		t.Fatalf("unexpected breakdown csv %q", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteXLSX(buf, DashboardPayload{Summary: sampleSummary(), Segments: sampleSegments()}); err != nil {
		t.Fatalf("xlsx error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != sheetKPIs {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	label, err := f.GetCellValue(sheetSegments, "A2")
	if err != nil || label != "Month-to-month" {
		t.Fatalf("expected first segment label, got %q (%v)", label, err)
	}
	total, err := f.GetCellValue(sheetKPIs, "B2")
	if err != nil || total != "7043" {
		t.Fatalf("expected total customers cell, got %q (%v)", total, err)
	}
}

func TestPDFExporterRender(t *testing.T) {
	var html string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("unexpected content type: %v", err)
			return
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			if part.FormName() == "files" {
				data, _ := io.ReadAll(part)
				html = string(data)
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("PDF"))
	}))
	defer srv.Close()

	exporter := &PDFExporter{Renderer: report.NewClient(srv.URL)}
	payload := DashboardPayload{
		GeneratedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		Summary:     sampleSummary(),
		Segments:    sampleSegments(),
		ChartSVG:    "<svg></svg>",
	}
	data, err := exporter.RenderDashboard(context.Background(), payload)
	if err != nil {
		t.Fatalf("pdf render error: %v", err)
	}
	if string(data) != "PDF" {
		t.Fatalf("unexpected payload %q", string(data))
	}
	for _, want := range []string{"7,043", "26.54%", "Weighted Avg Monthly Charges", "Month-to-month", "<svg></svg>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in rendered html", want)
		}
	}
}

func TestPDFExporterRequiresRenderer(t *testing.T) {
	if _, err := (&PDFExporter{}).RenderDashboard(context.Background(), DashboardPayload{}); err == nil {
		t.Fatalf("expected error without renderer")
	}
}
