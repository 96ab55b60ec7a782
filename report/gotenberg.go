// Package report renders dashboard snapshots to PDF through Gotenberg.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	convertPath    = "/forms/chromium/convert/html"
	healthPath     = "/health"
	maxErrorBody   = 4 << 10
)

// ErrNotConfigured is returned when no Gotenberg URL was supplied.
var ErrNotConfigured = errors.New("gotenberg endpoint not configured")

// Page describes the printed layout. The zero value prints A4 portrait.
type Page struct {
	Landscape bool
	// Width and Height are in inches.
	Width  float64
	Height float64
	// Margin applies to all four sides, in inches.
	Margin float64
}

// DashboardPage fits the KPI cards and the dual-axis chart on one sheet.
var DashboardPage = Page{Landscape: true, Width: 8.27, Height: 11.7, Margin: 0.4}

// Client talks to a Gotenberg instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	waitDelay  string
	page       Page
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPage sets the printed page layout.
func WithPage(page Page) Option {
	return func(c *Client) { c.page = page }
}

// NewClient constructs a client for baseURL. An empty URL yields an
// unconfigured client whose calls fail with ErrNotConfigured.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		waitDelay:  "500ms",
		page:       DashboardPage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a Gotenberg endpoint was supplied.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Ping checks that Gotenberg answers its health probe.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("gotenberg health returned status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts a self-contained HTML document into PDF bytes.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	body, contentType, err := c.form(html)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+convertPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("render pdf: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return io.ReadAll(resp.Body)
}

// form builds the multipart request. Gotenberg requires the main document
// to be named index.html.
func (c *Client) form(html string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"waitDelay", c.waitDelay},
		{"printBackground", "true"},
		{"landscape", strconv.FormatBool(c.page.Landscape)},
	}
	if c.page.Width > 0 && c.page.Height > 0 {
		fields = append(fields,
			[2]string{"paperWidth", inches(c.page.Width)},
			[2]string{"paperHeight", inches(c.page.Height)},
		)
	}
	if c.page.Margin > 0 {
		margin := inches(c.page.Margin)
		for _, side := range []string{"marginTop", "marginBottom", "marginLeft", "marginRight"} {
			fields = append(fields, [2]string{side, margin})
		}
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func inches(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
