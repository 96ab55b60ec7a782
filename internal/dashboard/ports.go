// Package dashboard drives the three dashboard flows (KPIs, segment chart,
// prediction) against output ports so the same logic backs the web pages
// and the terminal client.
package dashboard

// KPIDisplay is the formatted KPI card.
type KPIDisplay struct {
	TotalCustomers string `json:"total_customers"`
	ChurnRate      string `json:"churn_rate"`
	AvgCharges     string `json:"avg_charges"`
}

// ResultDisplay is the formatted prediction panel.
type ResultDisplay struct {
	Probability    string `json:"probability"`
	RiskLevel      string `json:"risk_level"`
	RiskClass      string `json:"risk_class"`
	Verdict        string `json:"verdict"`
	WillChurn      bool   `json:"will_churn"`
	Confidence     string `json:"confidence,omitempty"`
	PredictionDate string `json:"prediction_date,omitempty"`
}

// Level classifies a notification.
type Level string

const (
	LevelError Level = "error"
	LevelInfo  Level = "info"
)

// Notification is a non-blocking message for the user.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// User-facing failure messages.
const (
	MsgKPIFailed      = "Failed to load dashboard metrics"
	MsgSegmentsFailed = "Failed to load segment analysis"
	MsgPredictFailed  = "Failed to predict churn. Please try again."
)

// KPIPort receives the KPI card in a single call.
type KPIPort interface {
	ShowKPIs(KPIDisplay)
}

// ChartPort receives the chart that is now attached to the board.
type ChartPort interface {
	ShowChart(*Chart)
}

// ResultPort receives the prediction panel and is then asked to reveal it.
type ResultPort interface {
	ShowResult(ResultDisplay)
	Reveal()
}

// Notifier surfaces failures without blocking the flow.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

func notifyError(n Notifier, message string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Level: LevelError, Message: message})
}
