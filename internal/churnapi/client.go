// Package churnapi talks to the remote churn analytics API.
package churnapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	maxResponseBytes = 4 << 20
	errorBodyBytes   = 4 << 10
)

// Operation names used for logging and metrics.
const (
	OpChurnRate       = "churn_rate"
	OpSegmentAnalysis = "segment_analysis"
	OpPredict         = "predict"
	OpPredictBatch    = "predict_batch"
	OpListCustomers   = "list_customers"
	OpGetCustomer     = "get_customer"
)

// Observer receives one callback per upstream call.
type Observer interface {
	ObserveUpstream(operation string, statusCode int, err error, elapsed time.Duration)
}

// Client is the single HTTP client shared by every dashboard flow.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
	validate   *validator.Validate
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver installs a metrics observer.
func WithObserver(observer Observer) Option {
	return func(c *Client) { c.observer = observer }
}

// NewClient constructs a client rooted at baseURL (e.g. http://localhost:8000/api).
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ChurnRate fetches the churn KPI summary.
func (c *Client) ChurnRate(ctx context.Context) (ChurnRateResponse, error) {
	var out ChurnRateResponse
	if err := c.do(ctx, OpChurnRate, http.MethodGet, "/analytics/churn-rate/", nil, nil, &out); err != nil {
		return ChurnRateResponse{}, err
	}
	return out, nil
}

// SegmentAnalysis fetches the churn breakdown grouped by segmentBy.
func (c *Client) SegmentAnalysis(ctx context.Context, segmentBy string) (SegmentAnalysisResponse, error) {
	query := url.Values{}
	query.Set("segment_by", segmentBy)
	var out SegmentAnalysisResponse
	if err := c.do(ctx, OpSegmentAnalysis, http.MethodGet, "/analytics/segment-analysis/", query, nil, &out); err != nil {
		return SegmentAnalysisResponse{}, err
	}
	return out, nil
}

// Predict posts one customer's attributes to the prediction endpoint.
func (c *Client) Predict(ctx context.Context, input map[string]any) (PredictionResponse, error) {
	var out PredictionResponse
	if err := c.do(ctx, OpPredict, http.MethodPost, "/predict/", nil, input, &out); err != nil {
		return PredictionResponse{}, err
	}
	return out, nil
}

// PredictBatch scores several customers in one call.
func (c *Client) PredictBatch(ctx context.Context, customers []map[string]any) (BatchPredictionResponse, error) {
	var out BatchPredictionResponse
	body := BatchPredictionRequest{Customers: customers}
	if err := c.do(ctx, OpPredictBatch, http.MethodPost, "/predict/batch/", nil, body, &out); err != nil {
		return BatchPredictionResponse{}, err
	}
	return out, nil
}

// ListCustomers pages through the customer collection.
func (c *Client) ListCustomers(ctx context.Context, filter CustomerFilter) (CustomerPage, error) {
	query := url.Values{}
	if filter.Contract != "" {
		query.Set("contract", filter.Contract)
	}
	if filter.InternetService != "" {
		query.Set("internet_service", filter.InternetService)
	}
	if filter.Churn != "" {
		query.Set("churn", filter.Churn)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(filter.PageSize))
	}
	var out CustomerPage
	if err := c.do(ctx, OpListCustomers, http.MethodGet, "/customers/", query, nil, &out); err != nil {
		return CustomerPage{}, err
	}
	return out, nil
}

// GetCustomer loads one customer by its customer_id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("churnapi: customer id required")
	}
	var out Customer
	path := "/customers/" + url.PathEscape(customerID) + "/"
	if err := c.do(ctx, OpGetCustomer, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, dest any) (resultErr error) {
	start := time.Now()
	status := 0
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream(op, status, resultErr, time.Since(start))
		}
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("churnapi: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("churnapi: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("close upstream body", slog.String("operation", op), slog.Any("error", err))
		}
	}()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
		return &StatusError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dest); err != nil {
		return fmt.Errorf("%w: %s: decode: %w", ErrMalformed, op, err)
	}
	if err := c.check(dest); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, op, err)
	}
	return nil
}

func (c *Client) check(dest any) error {
	switch dest.(type) {
	case *Customer:
		return nil
	}
	return c.validate.Struct(dest)
}
