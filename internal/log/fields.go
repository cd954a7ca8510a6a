package log

import (
	"log/slog"
	"time"
)

// Attribute keys shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldRunID       = "run_id"
	FieldSessionID   = "session_id"
	FieldBase        = "base"
	FieldActual      = "actual"
	FieldRows        = "rows"
	FieldFilter      = "filter"
	FieldFilterValue = "filter_value"
	FieldFormat      = "format"
)

// Component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentComparison = "comparison"
	ComponentTemplate   = "template"
	ComponentTrace      = "trace"
)

// Operations and error categories that appear in log records.
const (
	OpCompare = "compare"
	OpPublish = "publish"

	ErrorTypeConfiguration = "configuration_error"
)

// Fields accumulates attributes for one log record.
type Fields []slog.Attr

// NewFields creates an empty attribute list.
func NewFields() Fields {
	return make(Fields, 0, 8)
}

func (f Fields) add(key string, value any) Fields {
	return append(f, slog.Any(key, value))
}

// Request adds the method, path and query of an HTTP request.
func (f Fields) Request(method, path, query string) Fields {
	f = f.add(FieldMethod, method).add(FieldPath, path)
	if query != "" {
		f = f.add(FieldQuery, query)
	}
	return f
}

// Response adds the status code and elapsed time.
func (f Fields) Response(status int, elapsed time.Duration) Fields {
	return f.add(FieldStatusCode, status).add(FieldDuration, elapsed.Milliseconds())
}

// Comparison adds the run identity and the detail row count.
func (f Fields) Comparison(runID, base, actual string, rows int) Fields {
	return f.add(FieldRunID, runID).add(FieldBase, base).add(FieldActual, actual).add(FieldRows, rows)
}

// Client adds the resolved client address, and the user agent when known.
func (f Fields) Client(ip, userAgent string) Fields {
	f = f.add(FieldClientIP, ip)
	if userAgent != "" {
		f = f.add(FieldUserAgent, userAgent)
	}
	return f
}
