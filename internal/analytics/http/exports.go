package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/churnboard/churnboard/internal/analytics/export"
)

const stampLayout = "20060102-150405"

func (h *Handler) handleSegmentsCSV(w http.ResponseWriter, r *http.Request) {
	segmentBy, err := h.segmentParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	analysis, err := h.service.GetSegmentAnalysis(ctx, segmentBy)
	if err != nil {
		h.handleLoadError(w, "load segments", err)
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()

	if err := export.WriteSegmentsCSV(buf, analysis); err != nil {
		h.handleServerError(w, "write segments csv", err)
		return
	}

	filename := fmt.Sprintf("churn-segments-%s-%s.csv", segmentBy, h.now().UTC().Format(stampLayout))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleXLSX(w http.ResponseWriter, r *http.Request) {
	segmentBy, err := h.segmentParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	payload, err := h.loadExportData(ctx, segmentBy)
	if err != nil {
		h.handleLoadError(w, "load dashboard", err)
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()

	if err := export.WriteXLSX(buf, payload); err != nil {
		h.handleServerError(w, "write xlsx", err)
		return
	}

	filename := fmt.Sprintf("churn-dashboard-%s.xlsx", payload.GeneratedAt.Format(stampLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream xlsx", err)
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.logError("pdf exporter", errors.New("pdf exporter not configured"))
		http.Error(w, "PDF export is not configured", http.StatusServiceUnavailable)
		return
	}
	segmentBy, err := h.segmentParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	payload, err := h.loadExportData(ctx, segmentBy)
	if err != nil {
		h.handleLoadError(w, "load dashboard", err)
		return
	}
	chart, err := h.flows.RenderSegmentChart(payload.Segments)
	if err != nil {
		h.handleServerError(w, "render chart", err)
		return
	}
	defer chart.Release()
	payload.ChartSVG = chart.SVG

	pdfBytes, err := h.pdf.RenderDashboard(ctx, payload)
	if err != nil {
		h.handleServerError(w, "render pdf", err)
		return
	}

	filename := fmt.Sprintf("churn-dashboard-%s.pdf", payload.GeneratedAt.Format(stampLayout))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(pdfBytes); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) loadExportData(ctx context.Context, segmentBy string) (export.DashboardPayload, error) {
	payload := export.DashboardPayload{GeneratedAt: h.now().UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := h.service.GetChurnSummary(ctx)
		if err != nil {
			return err
		}
		payload.Summary = summary
		return nil
	})
	g.Go(func() error {
		analysis, err := h.service.GetSegmentAnalysis(ctx, segmentBy)
		if err != nil {
			return err
		}
		payload.Segments = analysis
		return nil
	})
	if err := g.Wait(); err != nil {
		return export.DashboardPayload{}, err
	}
	return payload, nil
}
