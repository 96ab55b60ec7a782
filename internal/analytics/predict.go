package analytics

import "context"

// PredictionInput is the customer payload posted to the model. Numeric
// fields hold float64 or nil, everything else holds strings.
type PredictionInput map[string]any

// PredictionResult is the model's verdict for one customer.
type PredictionResult struct {
	ChurnProbability float64  `json:"churn_probability"`
	ChurnPrediction  string   `json:"churn_prediction"`
	RiskLevel        string   `json:"risk_level"`
	Confidence       *float64 `json:"confidence,omitempty"`
	PredictionDate   string   `json:"prediction_date,omitempty"`
}

// WillChurn reports whether the model predicted churn.
func (r PredictionResult) WillChurn() bool {
	return r.ChurnPrediction == "Yes"
}

// Predict submits input to the model. Predictions are never cached.
func (s *Service) Predict(ctx context.Context, input PredictionInput) (PredictionResult, error) {
	resp, err := s.upstream.Predict(ctx, map[string]any(input))
	if err != nil {
		return PredictionResult{}, err
	}
	return PredictionResult{
		ChurnProbability: orZero(resp.ChurnProbability),
		ChurnPrediction:  resp.ChurnPrediction,
		RiskLevel:        resp.RiskLevel,
		Confidence:       resp.Confidence,
		PredictionDate:   resp.PredictionDate,
	}, nil
}
