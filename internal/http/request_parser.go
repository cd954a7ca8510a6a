package http

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"comparativo/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// formValues are the sanitized scalar fields of a form post or JSON object.
type formValues map[string]string

// readForm accepts urlencoded forms from htmx and flat JSON objects from API
// clients. JSON is detected by Content-Type or a leading brace.
func readForm(r *http.Request) (formValues, error) {
	out := formValues{}
	if r.Body == nil {
		return out, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return out, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		for k, v := range obj {
			if s, ok := scalar(v); ok {
				out[k] = sanitizeInput(s)
			}
		}
		return out, nil
	}

	q, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	for k := range q {
		out[k] = sanitizeInput(q.Get(k))
	}
	return out, nil
}

// first returns the first non-empty value among keys.
func (v formValues) first(keys ...string) string {
	for _, k := range keys {
		if s := v[k]; s != "" {
			return s
		}
	}
	return ""
}

// scalar stringifies JSON strings, numbers and booleans. Snapshot ids may
// arrive as numbers (202412).
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// parseComparisonRequest reads the snapshot pair. The report's own field
// names are accepted alongside the short ones.
func parseComparisonRequest(v formValues) core.ComparisonRequest {
	return core.ComparisonRequest{
		Base:   v.first("base", "asignacion_base"),
		Actual: v.first("actual", "asignacion_actual"),
	}
}

// ParseRowLimit reads the "limit" query parameter: a positive count, or
// "all" for every row. Anything else returns def.
func ParseRowLimit(query url.Values, def int) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def
	}
	if strings.EqualFold(v, "all") {
		return -1
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}
