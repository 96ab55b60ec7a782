package churnapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	codes []int
}

func (o *recordingObserver) ObserveUpstream(operation string, statusCode int, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, operation)
	o.codes = append(o.codes, statusCode)
}

func TestChurnRateDecodesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analytics/churn-rate/", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"total_customers":7043,"churned_customers":1869,"churn_rate":26.54,
			"breakdown":[{"_id":"No","count":5174,"avg_monthly_charges":61.27,"avg_tenure":37.57},
			{"_id":"Yes","count":1869,"avg_monthly_charges":74.44,"avg_tenure":17.98}]}`))
	}))
	defer srv.Close()

	observer := &recordingObserver{}
	client := NewClient(srv.URL+"/api/", time.Second, WithObserver(observer))
	out, err := client.ChurnRate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.TotalCustomers)
	assert.Equal(t, 7043, *out.TotalCustomers)
	assert.InDelta(t, 26.54, *out.ChurnRate, 1e-9)
	require.Len(t, out.Breakdown, 2)
	assert.Equal(t, "Yes", out.Breakdown[1].ID)
	assert.Equal(t, []string{OpChurnRate}, observer.calls)
	assert.Equal(t, []int{http.StatusOK}, observer.codes)
}

func TestChurnRateMissingFieldIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"churned_customers":1}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ChurnRate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.True(t, IsUpstream(err))
}

func TestSegmentAnalysisSendsDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "InternetService", r.URL.Query().Get("segment_by"))
		_, _ = w.Write([]byte(`{"segment_by":"InternetService","segments":[{"segment":"Fiber optic","_id":"Fiber optic","total":3096,"churned":1297,"churn_rate":41.89}]}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).SegmentAnalysis(context.Background(), "InternetService")
	require.NoError(t, err)
	require.Len(t, out.Segments, 1)
	assert.Equal(t, "Fiber optic", out.Segments[0].Segment)
	assert.Equal(t, 3096, out.Segments[0].Total)
}

func TestPredictPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"churn_probability":0.823,"churn_prediction":"Yes","risk_level":"High","confidence":0.823}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).Predict(context.Background(), map[string]any{
		"tenure":   12.0,
		"Contract": "Month-to-month",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.823, *out.ChurnProbability, 1e-9)
	assert.Equal(t, "High", out.RiskLevel)
	assert.Equal(t, "Yes", out.ChurnPrediction)
	assert.Equal(t, 12.0, got["tenure"])
	assert.Equal(t, "Month-to-month", got["Contract"])
}

func TestPredictNon2xxReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Model not available"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Predict(context.Background(), map[string]any{})
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, OpPredict, statusErr.Operation)
	assert.Contains(t, statusErr.Body, "Model not available")
}

func TestPredictProbabilityOutOfRangeIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"churn_probability":1.7,"churn_prediction":"Yes","risk_level":"High"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Predict(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).ChurnRate(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestListCustomersEncodesFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Two year", q.Get("contract"))
		assert.Equal(t, "Yes", q.Get("churn"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "", q.Get("internet_service"))
		_, _ = w.Write([]byte(`{"count":1,"page":2,"page_size":20,"results":[{"customerID":"7590-VHVEG"}]}`))
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, time.Second).ListCustomers(context.Background(), CustomerFilter{
		Contract: "Two year",
		Churn:    "Yes",
		Page:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "7590-VHVEG", page.Results[0]["customerID"])
}

func TestGetCustomerEscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/7590-VHVEG/", r.URL.Path)
		_, _ = w.Write([]byte(`{"customerID":"7590-VHVEG","tenure":1}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	customer, err := client.GetCustomer(context.Background(), "7590-VHVEG")
	require.NoError(t, err)
	assert.Equal(t, "7590-VHVEG", customer["customerID"])

	_, err = client.GetCustomer(context.Background(), "  ")
	assert.Error(t, err)
	assert.False(t, IsUpstream(err))
}

func TestPredictBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body BatchPredictionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Customers, 2)
		_, _ = w.Write([]byte(`{"count":2,"predictions":[
			{"churn_probability":0.1,"churn_prediction":"No","risk_level":"Low"},
			{"churn_probability":0.9,"churn_prediction":"Yes","risk_level":"High"}]}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).PredictBatch(context.Background(), []map[string]any{{}, {}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "High", out.Predictions[1].RiskLevel)
}
