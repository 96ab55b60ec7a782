package ui

import (
	"html/template"
	"sync"

	"github.com/churnboard/churnboard/internal/dashboard"
)

// DimensionOption is one entry of the segment selector.
type DimensionOption struct {
	Value    string
	Label    string
	Selected bool
}

var dimensionLabels = map[string]string{
	"Contract":         "Contract Type",
	"InternetService":  "Internet Service",
	"PaymentMethod":    "Payment Method",
	"TechSupport":      "Tech Support",
	"SeniorCitizen":    "Senior Citizen",
	"PaperlessBilling": "Paperless Billing",
	"MultipleLines":    "Multiple Lines",
}

// DimensionOptions builds the selector for dims with selected marked.
func DimensionOptions(dims []string, selected string) []DimensionOption {
	options := make([]DimensionOption, 0, len(dims))
	for _, dim := range dims {
		label, ok := dimensionLabels[dim]
		if !ok {
			label = dim
		}
		options = append(options, DimensionOption{Value: dim, Label: label, Selected: dim == selected})
	}
	return options
}

// DashboardViewModel collects what the flows write through their ports and
// is handed to the templates once every flow has finished.
type DashboardViewModel struct {
	mu sync.Mutex

	KPIs          dashboard.KPIDisplay
	KPIsLoaded    bool
	Chart         *dashboard.Chart
	Result        *dashboard.ResultDisplay
	Revealed      bool
	Notifications []dashboard.Notification
	SegmentBy     string
	Dimensions    []DimensionOption
	Form          PredictionForm
}

// NewDashboardViewModel prepares an empty page for segmentBy.
func NewDashboardViewModel(dims []string, segmentBy string, form PredictionForm) *DashboardViewModel {
	return &DashboardViewModel{
		SegmentBy:  segmentBy,
		Dimensions: DimensionOptions(dims, segmentBy),
		Form:       form,
	}
}

// ShowKPIs implements dashboard.KPIPort.
func (vm *DashboardViewModel) ShowKPIs(kpis dashboard.KPIDisplay) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.KPIs = kpis
	vm.KPIsLoaded = true
}

// ShowChart implements dashboard.ChartPort.
func (vm *DashboardViewModel) ShowChart(chart *dashboard.Chart) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.Chart = chart
}

// ShowResult implements dashboard.ResultPort.
func (vm *DashboardViewModel) ShowResult(result dashboard.ResultDisplay) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.Result = &result
}

// Reveal implements dashboard.ResultPort.
func (vm *DashboardViewModel) Reveal() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.Revealed = true
}

// Notify implements dashboard.Notifier.
func (vm *DashboardViewModel) Notify(n dashboard.Notification) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.Notifications = append(vm.Notifications, n)
}

// ChartSVG returns the markup of the attached chart, if it is still live.
func (vm *DashboardViewModel) ChartSVG() template.HTML {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.Chart == nil || vm.Chart.Released() {
		return ""
	}
	return vm.Chart.SVG
}

// HasChart reports whether a live chart is attached.
func (vm *DashboardViewModel) HasChart() bool {
	return vm.ChartSVG() != ""
}
