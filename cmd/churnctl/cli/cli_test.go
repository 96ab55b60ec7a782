package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	server      *httptest.Server
	segmentHits atomic.Int32
	lastPredict map[string]any
	lastBatch   map[string]any
	failPredict bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analytics/churn-rate/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_customers":7043,"churned_customers":1869,"churn_rate":26.54,
			"breakdown":[{"_id":"No","count":5174,"avg_monthly_charges":61.25,"avg_tenure":37.5},
			{"_id":"Yes","count":1869,"avg_monthly_charges":74.25,"avg_tenure":18}]}`))
	})
	mux.HandleFunc("/api/analytics/segment-analysis/", func(w http.ResponseWriter, r *http.Request) {
		api.segmentHits.Add(1)
		_, _ = w.Write([]byte(`{"segment_by":"` + r.URL.Query().Get("segment_by") + `","segments":[
			{"segment":"Fiber optic","_id":"Fiber optic","total":3096,"churned":1297,"churn_rate":41.89,"avg_monthly_charges":91.5,"avg_tenure":32.9},
			{"segment":"DSL","_id":"DSL","total":2421,"churned":459,"churn_rate":18.96,"avg_monthly_charges":58.1,"avg_tenure":32.8}]}`))
	})
	mux.HandleFunc("/api/predict/", func(w http.ResponseWriter, r *http.Request) {
		if api.failPredict {
			http.Error(w, `{"error":"model not loaded"}`, http.StatusServiceUnavailable)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&api.lastPredict)
		_, _ = w.Write([]byte(`{"churn_probability":0.8,"churn_prediction":"Yes","risk_level":"High","confidence":0.625}`))
	})
	mux.HandleFunc("/api/predict/batch/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&api.lastBatch)
		_, _ = w.Write([]byte(`{"count":2,"predictions":[
			{"churn_probability":0.75,"churn_prediction":"Yes","risk_level":"High"},
			{"churn_probability":0.125,"churn_prediction":"No","risk_level":"Low"}]}`))
	})
	mux.HandleFunc("/api/customers/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/customers/7590-VHVEG/" {
			_, _ = w.Write([]byte(`{"customerID":"7590-VHVEG","tenure":1,"Contract":"Month-to-month","Churn":"No"}`))
			return
		}
		if r.URL.Path != "/api/customers/" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Two year", r.URL.Query().Get("contract"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"count":1695,"page":2,"page_size":20,"results":[
			{"customerID":"3668-QPYBK","gender":"Male","tenure":2,"Contract":"Two year","InternetService":"DSL","MonthlyCharges":53.85,"Churn":"Yes"}]}`))
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) url() string { return a.server.URL + "/api" }

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("REDIS_ADDR", "")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestKPIsCommandPrintsCard(t *testing.T) {
	api := newFakeAPI(t)

	out, _, err := execute(t, "--api-url", api.url(), "kpis")
	require.NoError(t, err)
	assert.Contains(t, out, "Total customers")
	assert.Contains(t, out, "7,043")
	assert.Contains(t, out, "26.54%")
	assert.Contains(t, out, "$67.75")
}

func TestKPIsCommandJSON(t *testing.T) {
	api := newFakeAPI(t)

	out, _, err := execute(t, "--api-url", api.url(), "--json", "kpis")
	require.NoError(t, err)

	var payload struct {
		KPIs struct {
			TotalCustomers string `json:"total_customers"`
		} `json:"kpis"`
		Summary struct {
			ChurnRate float64 `json:"churn_rate"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "7,043", payload.KPIs.TotalCustomers)
	assert.InDelta(t, 26.54, payload.Summary.ChurnRate, 1e-9)
}

func TestKPIsCommandUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, stderr, err := execute(t, "--api-url", srv.URL, "kpis")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Failed to load dashboard metrics")
}

func TestSegmentsCommandPrintsTable(t *testing.T) {
	api := newFakeAPI(t)

	out, _, err := execute(t, "--api-url", api.url(), "segments", "--by", "InternetService")
	require.NoError(t, err)
	assert.Contains(t, out, "Churn by InternetService")
	assert.Contains(t, out, "Fiber optic")
	assert.Contains(t, out, "41.89%")
	assert.Contains(t, out, "3,096")
	assert.Less(t, bytes.Index([]byte(out), []byte("Fiber optic")), bytes.Index([]byte(out), []byte("DSL")))
}

func TestSegmentsCommandRejectsUnknownDimension(t *testing.T) {
	api := newFakeAPI(t)

	_, _, err := execute(t, "--api-url", api.url(), "segments", "--by", "Favourite colour")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown segment dimension")
	assert.Zero(t, api.segmentHits.Load())
}

func TestPredictCommandCoercesFields(t *testing.T) {
	api := newFakeAPI(t)

	out, _, err := execute(t, "--api-url", api.url(), "predict",
		"--set", "tenure=12", "--set", "MonthlyCharges=abc", "--set", "Contract=Month-to-month")
	require.NoError(t, err)
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "High")

	require.NotNil(t, api.lastPredict)
	assert.Equal(t, float64(12), api.lastPredict["tenure"])
	assert.Nil(t, api.lastPredict["MonthlyCharges"])
	assert.Contains(t, api.lastPredict, "MonthlyCharges")
	assert.Equal(t, "Month-to-month", api.lastPredict["Contract"])
}

func TestPredictCommandFromFile(t *testing.T) {
	api := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "customer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tenure":"24","SeniorCitizen":1,"PaymentMethod":"Electronic check"}`), 0o600))

	out, _, err := execute(t, "--api-url", api.url(), "--json", "predict", "--file", path)
	require.NoError(t, err)

	var result struct {
		RiskLevel string `json:"risk_level"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "High", result.RiskLevel)
	assert.Equal(t, float64(24), api.lastPredict["tenure"])
	assert.Equal(t, float64(1), api.lastPredict["SeniorCitizen"])
}

func TestPredictCommandFailureNotifies(t *testing.T) {
	api := newFakeAPI(t)
	api.failPredict = true

	out, stderr, err := execute(t, "--api-url", api.url(), "predict", "--set", "tenure=1")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Failed to predict churn. Please try again.")
}

func TestPredictCommandRequiresInput(t *testing.T) {
	_, _, err := execute(t, "predict")
	require.Error(t, err)
}

func TestPredictBatchCommand(t *testing.T) {
	api := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"customers":[
		{"customerID":"A-1","tenure":"3"},
		{"customerID":"B-2","tenure":60}]}`), 0o600))

	out, _, err := execute(t, "--api-url", api.url(), "predict-batch", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "A-1")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "2 predictions")

	customers, ok := api.lastBatch["customers"].([]any)
	require.True(t, ok)
	require.Len(t, customers, 2)
	assert.Equal(t, float64(3), customers[0].(map[string]any)["tenure"])
}

func TestCustomersCommand(t *testing.T) {
	api := newFakeAPI(t)

	out, _, err := execute(t, "--api-url", api.url(), "customers", "--contract", "Two year", "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "3668-QPYBK")
	assert.Contains(t, out, "53.85")
	assert.Contains(t, out, "page 2, 1 of 1695 customers")
}

func TestCustomerCommand(t *testing.T) {
	api := newFakeAPI(t)

	out, _, err := execute(t, "--api-url", api.url(), "customer", "7590-VHVEG")
	require.NoError(t, err)
	assert.Contains(t, out, "Contract")
	assert.Contains(t, out, "Month-to-month")
}

func TestExportCSVCommandWritesFile(t *testing.T) {
	api := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "segments.csv")

	_, _, err := execute(t, "--api-url", api.url(), "export", "csv", "--by", "InternetService", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fiber optic")
	assert.Contains(t, string(data), "3096")
}

func TestExportXLSXCommandToStdout(t *testing.T) {
	api := newFakeAPI(t)

	out, _, err := execute(t, "--api-url", api.url(), "export", "xlsx")
	require.NoError(t, err)
	assert.True(t, len(out) > 2 && out[:2] == "PK")
}

func TestCacheWarmRunsAgainstRedis(t *testing.T) {
	api := newFakeAPI(t)
	mr := miniredis.RunT(t)

	out, _, err := execute(t, "--api-url", api.url(), "--redis", mr.Addr(), "cache", "warm")
	require.NoError(t, err)
	assert.Contains(t, out, "cache warmed")
	assert.EqualValues(t, 4, api.segmentHits.Load())

	_, _, err = execute(t, "--api-url", api.url(), "--redis", mr.Addr(), "segments", "--by", "Contract")
	require.NoError(t, err)
	assert.EqualValues(t, 4, api.segmentHits.Load())
}

func TestCacheWarmNeedsRedis(t *testing.T) {
	api := newFakeAPI(t)

	_, _, err := execute(t, "--api-url", api.url(), "cache", "warm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis address required")
}

func TestJobsTriggerRejectsUnknownTask(t *testing.T) {
	mr := miniredis.RunT(t)

	_, _, err := execute(t, "--redis", mr.Addr(), "jobs", "trigger", "reports:nightly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported job")
}

func TestParseFieldsRejectsMissingEquals(t *testing.T) {
	_, err := parseFields([]string{"tenure"})
	require.Error(t, err)

	form, err := parseFields([]string{"Contract=One year", "gender=Female"})
	require.NoError(t, err)
	assert.Equal(t, "One year", form.Get("Contract"))
}
