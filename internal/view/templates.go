package view

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/churnboard/churnboard/internal/shared"
	"github.com/churnboard/churnboard/web"
)

var errNoEngine = errors.New("template engine not initialised")

// Layouts accepted by formatTimestamp; the API emits timestamps without zone.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"}

// Engine renders the dashboard page and its fragments.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Data        any
}

// NewEngine parses the embedded layouts, pages and partials.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").
		Funcs(template.FuncMap{"formatTimestamp": formatTimestamp}).
		ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template as a full HTML response. Output is
// buffered so a failing template never leaves a half-written page.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	var buf bytes.Buffer
	if err := e.RenderTo(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// RenderTo executes a named template into an arbitrary writer.
func (e *Engine) RenderTo(w io.Writer, name string, data TemplateData) error {
	if e == nil {
		return errNoEngine
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// formatTimestamp renders a prediction date for display and falls back to
// the raw string when it cannot be parsed.
func formatTimestamp(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02 Jan 2006 15:04")
		}
	}
	return raw
}
