package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"report page", http.MethodGet, "/ui/report", "Mozilla/5.0", false},
		{"export", http.MethodGet, "/export/report.xlsx", "Mozilla/5.0", false},
		{"path traversal", http.MethodGet, "/static/../.env", "Mozilla/5.0", true},
		{"traversal in query", http.MethodGet, "/api/report?file=../../etc/passwd", "Mozilla/5.0", true},
		{"encoded injection", http.MethodGet, "/api/report?limit=1%20UNION%20SELECT%20name", "Mozilla/5.0", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "Mozilla/5.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.DetectSuspiciousRequest(r); got != tt.want {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
		})
	}
	m := d.GetMetrics()
	if m.SuspiciousRequests != 5 {
		t.Errorf("SuspiciousRequests = %d, want 5", m.SuspiciousRequests)
	}
	if m.ByRule["path_probe"] != 2 || m.ByRule["injection"] != 1 {
		t.Errorf("ByRule = %v", m.ByRule)
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.2.3")
	if got := d.ExtractClientIP(r); got != "203.0.113.7" {
		t.Errorf("trusted proxy: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.9:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := d.ExtractClientIP(r); got != "198.51.100.9" {
		t.Errorf("untrusted peer must not be overridden: got %q", got)
	}

	if err := d.AddTrustedProxy("198.51.100.0/24"); err != nil {
		t.Fatal(err)
	}
	if got := d.ExtractClientIP(r); got != "203.0.113.7" {
		t.Errorf("added proxy: got %q", got)
	}
	if err := d.AddTrustedProxy("nope"); err == nil {
		t.Error("expected invalid CIDR error")
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	hdr := rr.Header()
	if hdr.Get("X-Frame-Options") != "DENY" || hdr.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing basic headers: %v", hdr)
	}
	if !strings.Contains(hdr.Get("Content-Security-Policy"), "https://cdn.plot.ly") {
		t.Errorf("CSP must allow the chart library: %q", hdr.Get("Content-Security-Policy"))
	}
	if hdr.Get("Cross-Origin-Embedder-Policy") != "" {
		t.Error("COEP should be off by default")
	}
	if hdr.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS only applies over TLS")
	}
	if hdr.Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", hdr.Get("Cache-Control"))
	}
}

func TestBuildCSP(t *testing.T) {
	got := BuildCSP([]CSPDirective{
		{"default-src", []string{"'self'"}},
		{"upgrade-insecure-requests", nil},
	})
	if want := "default-src 'self'; upgrade-insecure-requests"; got != want {
		t.Errorf("BuildCSP() = %q, want %q", got, want)
	}
}

func TestInvalidPeerAddress(t *testing.T) {
	d := NewDetector()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "not-an-ip"
	if got := d.ExtractClientIP(r); got != "not-an-ip" {
		t.Errorf("ExtractClientIP() = %q", got)
	}
	if d.GetMetrics().InvalidIPAttempts != 1 {
		t.Error("invalid peer address not counted")
	}
}
