package ui

import (
	"net/url"
	"strings"
)

// Option is a select option.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// SelectField is a dropdown of the prediction form.
type SelectField struct {
	Name    string
	Label   string
	Options []Option
}

// NumberField is a numeric input of the prediction form.
type NumberField struct {
	Name  string
	Label string
	Min   string
	Max   string
	Step  string
	Value string
}

// PredictionForm describes the customer attribute form. Submitted values
// stay selected after a round trip.
type PredictionForm struct {
	Numbers []NumberField
	Selects []SelectField
}

type selectDef struct {
	name, label string
	values      []string
	labels      []string
}

var selectFields = []selectDef{
	{name: "SeniorCitizen", label: "Senior Citizen", values: []string{"0", "1"}, labels: []string{"No", "Yes"}},
	{name: "Contract", label: "Contract", values: []string{"Month-to-month", "One year", "Two year"}},
	{name: "InternetService", label: "Internet Service", values: []string{"DSL", "Fiber optic", "No"}},
	{name: "TechSupport", label: "Tech Support", values: []string{"Yes", "No", "No internet service"}},
	{name: "PaymentMethod", label: "Payment Method", values: []string{"Electronic check", "Mailed check", "Bank transfer (automatic)", "Credit card (automatic)"}},
	{name: "PaperlessBilling", label: "Paperless Billing", values: []string{"Yes", "No"}},
	{name: "MultipleLines", label: "Multiple Lines", values: []string{"No", "Yes", "No phone service"}},
}

// NewPredictionForm builds the form, pre-filled from values when given.
func NewPredictionForm(values url.Values) PredictionForm {
	form := PredictionForm{
		Numbers: []NumberField{
			{Name: "tenure", Label: "Tenure (months)", Min: "0", Max: "100", Step: "1", Value: valueOr(values, "tenure", "12")},
			{Name: "MonthlyCharges", Label: "Monthly Charges ($)", Min: "0", Max: "200", Step: "0.01", Value: valueOr(values, "MonthlyCharges", "70.00")},
		},
	}
	for _, def := range selectFields {
		selected := valueOr(values, def.name, def.values[0])
		field := SelectField{Name: def.name, Label: def.label, Options: make([]Option, 0, len(def.values))}
		for i, value := range def.values {
			label := value
			if i < len(def.labels) {
				label = def.labels[i]
			}
			field.Options = append(field.Options, Option{Value: value, Label: label, Selected: value == selected})
		}
		form.Selects = append(form.Selects, field)
	}
	return form
}

func valueOr(values url.Values, key, fallback string) string {
	if values == nil {
		return fallback
	}
	if v := strings.TrimSpace(values.Get(key)); v != "" {
		return v
	}
	return fallback
}
