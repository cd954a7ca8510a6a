package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"comparativo/internal/core"
	"comparativo/internal/report"
	"comparativo/internal/session"
)

// SessionCookie names the cookie carrying the session ID.
const SessionCookie = "comparativo_session"

// sessionID returns the caller's session ID, minting a new one (and setting
// the cookie) when the request has none or it is malformed.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var templateFuncs = template.FuncMap{
	"amount": report.Amount,
	"count":  report.Count,
	"statusColor": func(st core.Status) template.CSS {
		return template.CSS(report.StatusColor(st))
	},
	"rangeOf": func(r core.DiffRow) string {
		return string(r.Range())
	},
	"negative": func(d decimal.Decimal) bool {
		return d.IsNegative()
	},
	// rowsOf splits toggles into rows of n for the type mosaic.
	"rowsOf": func(n int, toggles []report.Toggle) [][]report.Toggle {
		if n <= 0 {
			n = 1
		}
		var out [][]report.Toggle
		for i := 0; i < len(toggles); i += n {
			end := i + n
			if end > len(toggles) {
				end = len(toggles)
			}
			out = append(out, toggles[i:end])
		}
		return out
	},
}
