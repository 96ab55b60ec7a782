// Package svg renders dependency-free inline SVG charts.
package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// DualAxisBars renders two bar series side by side per label. The left
// series is scaled against the left axis and owns the gridlines; the right
// series has its own independent scale drawn on the right edge.
func DualAxisBars(width, height int, left, right Series, labels []string, opts DualAxisOpts) (template.HTML, error) {
	if len(left.Values) != len(labels) {
		return "", fmt.Errorf("svg: left series length must match labels")
	}
	if len(right.Values) != len(labels) {
		return "", fmt.Errorf("svg: right series length must match labels")
	}
	if len(left.Tooltips) > 0 && len(left.Tooltips) != len(labels) {
		return "", fmt.Errorf("svg: left tooltips length must match labels")
	}
	if len(right.Tooltips) > 0 && len(right.Tooltips) != len(labels) {
		return "", fmt.Errorf("svg: right tooltips length must match labels")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}

	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")
	colorLeft := fallback(left.Color, "rgba(239, 68, 68, 0.8)")
	colorRight := fallback(right.Color, "rgba(59, 130, 246, 0.8)")
	labelLeft := fallback(left.Label, "Left")
	labelRight := fallback(right.Label, "Right")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	titleID := makeID(opts.Title, "bar-title")
	descID := makeID(opts.Title, "bar-desc")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID))
	b.WriteString(fmt.Sprintf("<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Bar chart"))))
	b.WriteString(fmt.Sprintf("<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Dual axis bar comparison"))))

	if len(labels) == 0 {
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"14\" text-anchor=\"middle\" class=\"chart-empty\">%s</text>", float64(width)/2, float64(height)/2, axisColor, template.HTMLEscapeString(fallback(opts.EmptyText, "No data"))))
		b.WriteString("</svg>")
		return template.HTML(b.String()), nil
	}

	maxLeft := axisMax(left.Values)
	maxRight := axisMax(right.Values)
	scaleLeft := chartHeight / maxLeft
	scaleRight := chartHeight / maxRight
	chartBottom := padding + chartHeight
	chartRight := padding + chartWidth

	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		y := chartBottom - ratio*chartHeight
		b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\" class=\"grid\"></line>", padding, y, chartRight, y, gridColor))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", padding-6, y+4, axisColor, template.HTMLEscapeString(formatTick(maxLeft*ratio)+left.TickSuffix)))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", chartRight+6, y+4, axisColor, template.HTMLEscapeString(formatTick(maxRight*ratio)+right.TickSuffix)))
	}

	// Axes
	b.WriteString(fmt.Sprintf("<g stroke=\"%s\" aria-label=\"Axes\">", axisColor))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", padding, padding, padding, chartBottom))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", chartRight, padding, chartRight, chartBottom))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", padding, chartBottom, chartRight, chartBottom))
	b.WriteString("</g>")

	groupWidth := chartWidth / float64(len(labels))
	barWidth := groupWidth / 3

	for i, label := range labels {
		baseX := padding + float64(i)*groupWidth
		writeBar(&b, "left", baseX+barWidth*0.4, barWidth, left.Values[i], scaleLeft, chartBottom, padding, colorLeft, tooltip(left, labelLeft, label, i))
		writeBar(&b, "right", baseX+barWidth*1.6, barWidth, right.Values[i], scaleRight, chartBottom, padding, colorRight, tooltip(right, labelRight, label, i))
		center := baseX + groupWidth/2
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", center, chartBottom+14, axisColor, template.HTMLEscapeString(label)))
	}

	// Legend
	legendY := padding - 16
	if legendY < 12 {
		legendY = 12
	}
	legendX := padding
	b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", legendX, legendY-8, colorLeft))
	b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", legendX+14, legendY, axisColor, template.HTMLEscapeString(labelLeft)))
	legendX += 130
	b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", legendX, legendY-8, colorRight))
	b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", legendX+14, legendY, axisColor, template.HTMLEscapeString(labelRight)))

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func writeBar(b *strings.Builder, axis string, x, width, value, scale, bottom, top float64, color, title string) {
	height := value * scale
	if height < 0 {
		height = 0
	}
	y := bottom - height
	if y < top {
		height -= top - y
		y = top
	}
	b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" data-axis=\"%s\"><title>%s</title></rect>", x, y, width, height, color, axis, template.HTMLEscapeString(title)))
}

func tooltip(series Series, seriesLabel, label string, i int) string {
	if len(series.Tooltips) > 0 {
		return series.Tooltips[i]
	}
	return fmt.Sprintf("%s %s: %s", seriesLabel, label, formatTick(series.Values[i]))
}
