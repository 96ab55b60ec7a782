package churnapi

// ChurnRateResponse mirrors GET /analytics/churn-rate/.
type ChurnRateResponse struct {
	TotalCustomers   *int           `json:"total_customers" validate:"required,gte=0"`
	ChurnedCustomers int            `json:"churned_customers"`
	ChurnRate        *float64       `json:"churn_rate" validate:"required"`
	Breakdown        []BreakdownRow `json:"breakdown"`
}

// BreakdownRow is one churn group (Yes/No) of the churn-rate aggregation.
type BreakdownRow struct {
	ID                any      `json:"_id"`
	Count             int      `json:"count"`
	AvgMonthlyCharges *float64 `json:"avg_monthly_charges"`
	AvgTenure         *float64 `json:"avg_tenure"`
}

// SegmentAnalysisResponse mirrors GET /analytics/segment-analysis/.
type SegmentAnalysisResponse struct {
	SegmentBy string       `json:"segment_by"`
	Segments  []SegmentRow `json:"segments" validate:"required"`
}

// SegmentRow is a single grouped bucket. Segment and ID are left untyped
// because numeric dimensions (SeniorCitizen) come back as numbers.
type SegmentRow struct {
	Segment           any      `json:"segment"`
	ID                any      `json:"_id"`
	Total             int      `json:"total"`
	Churned           int      `json:"churned"`
	ChurnRate         float64  `json:"churn_rate"`
	AvgMonthlyCharges *float64 `json:"avg_monthly_charges"`
	AvgTenure         *float64 `json:"avg_tenure"`
}

// PredictionResponse mirrors POST /predict/.
type PredictionResponse struct {
	ChurnProbability *float64 `json:"churn_probability" validate:"required,gte=0,lte=1"`
	ChurnPrediction  string   `json:"churn_prediction"`
	RiskLevel        string   `json:"risk_level" validate:"required"`
	Confidence       *float64 `json:"confidence,omitempty"`
	PredictionDate   string   `json:"prediction_date,omitempty"`
}

// BatchPredictionRequest is the body of POST /predict/batch/.
type BatchPredictionRequest struct {
	Customers []map[string]any `json:"customers"`
}

// BatchPredictionResponse mirrors POST /predict/batch/.
type BatchPredictionResponse struct {
	Count       int                  `json:"count"`
	Predictions []PredictionResponse `json:"predictions" validate:"required,dive"`
}

// CustomerFilter narrows GET /customers/.
type CustomerFilter struct {
	Contract        string
	InternetService string
	Churn           string
	Page            int
	PageSize        int
}

// Customer is an opaque customer document; the API returns the raw
// dataset columns.
type Customer map[string]any

// CustomerPage mirrors GET /customers/.
type CustomerPage struct {
	Count    int        `json:"count"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Results  []Customer `json:"results" validate:"required"`
}
