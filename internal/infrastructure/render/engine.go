// Package render turns report view models into HTML mail bodies.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

// Error codes for rendering failures
const (
	ErrCodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	ErrCodeInvalidTemplate  = "INVALID_TEMPLATE"
	ErrCodeRenderFailed     = "RENDER_FAILED"
)

// RenderError is returned for any template failure
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

// Engine renders the embedded html/template set. It is safe for concurrent use.
type Engine struct {
	templates *template.Template
}

// NewEngine parses the embedded templates
func NewEngine() (*Engine, error) {
	tmpl, err := template.New("").Funcs(funcMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidTemplate, "failed to parse templates", err)
	}
	return &Engine{templates: tmpl}, nil
}

// Render executes the named template with data
func (e *Engine) Render(name string, data any) (string, error) {
	tmpl := e.templates.Lookup(name)
	if tmpl == nil {
		return "", NewRenderError(ErrCodeTemplateNotFound, fmt.Sprintf("template %q not found", name), nil)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template", err)
	}
	return buf.String(), nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"title":     titleCase,
		"formatInt": formatInt,
	}
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// formatInt renders an integer with thousand separators
// Example: 1234567 -> "1,234,567"
func formatInt(v any) string {
	var d decimal.Decimal
	switch n := v.(type) {
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case decimal.Decimal:
		d = n.Round(0)
	default:
		return fmt.Sprintf("%v", v)
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	digits := d.String()

	var result strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return sign + result.String()
}
