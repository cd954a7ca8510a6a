package security

import (
	"fmt"
	"net/http"
	"strings"
)

// CSPDirective is one Content-Security-Policy directive and its sources.
type CSPDirective struct {
	Name    string
	Sources []string
}

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	CSP []CSPDirective

	// HSTS, sent over TLS only
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	// Static headers; empty values are not sent
	Static map[string]string
}

// DefaultHeadersConfig allows the page to load htmx and Plotly from their
// CDNs and everything else from self.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: []CSPDirective{
			{"default-src", []string{"'self'"}},
			{"script-src", []string{"'self'", "https://unpkg.com", "https://cdn.plot.ly"}},
			{"style-src", []string{"'self'", "'unsafe-inline'"}},
			{"img-src", []string{"'self'", "data:", "blob:"}},
			{"connect-src", []string{"'self'"}},
			{"object-src", []string{"'none'"}},
			{"frame-ancestors", []string{"'none'"}},
			{"base-uri", []string{"'self'"}},
			{"form-action", []string{"'self'"}},
		},
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		Static: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
			// htmx and Plotly CDNs send no CORP header, so COEP stays unset.
			"Cross-Origin-Embedder-Policy": "",
		},
	}
}

// BuildCSP renders the directives in order.
func BuildCSP(directives []CSPDirective) string {
	parts := make([]string, 0, len(directives))
	for _, d := range directives {
		if len(d.Sources) == 0 {
			parts = append(parts, d.Name)
			continue
		}
		parts = append(parts, d.Name+" "+strings.Join(d.Sources, " "))
	}
	return strings.Join(parts, "; ")
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	headers http.Header
	hsts    string
}

// NewHeadersMiddleware renders config once; the middleware only copies
// the precomputed values.
func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{headers: make(http.Header)}
	for name, value := range config.Static {
		if value != "" {
			h.headers.Set(name, value)
		}
	}
	if len(config.CSP) > 0 {
		h.headers.Set("Content-Security-Policy", BuildCSP(config.CSP))
	}
	if config.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
		if config.HSTSPreload {
			h.hsts += "; preload"
		}
	}
	return h
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for name, values := range h.headers {
			dst[name] = append([]string(nil), values...)
		}
		if r.TLS != nil && h.hsts != "" {
			dst.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// NoStore marks dynamic responses (report partials, exports) as uncacheable.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware adds caching headers for static assets
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
