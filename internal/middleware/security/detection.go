package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
	ByRule             map[string]int64
}

// Rule flags one kind of suspicious request.
type Rule struct {
	Name  string
	Match func(r *http.Request) bool
}

var (
	probeFragments = []string{
		"../", "..\\", "/.env", "/.git", "/.ssh", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", "etc/passwd", "cmd.exe",
	}
	injectionFragments = []string{
		"<script", "javascript:", "eval(", "union select", "union all select",
		"' or '1'='1", "waitfor delay", "xp_cmdshell", "information_schema", ";--",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "nuclei",
	}
	unusualMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

// DefaultRules covers path probes, injection attempts against the snapshot
// and filter parameters, scanner agents and protocol oddities.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "path_probe", Match: func(r *http.Request) bool {
			return containsAny(strings.ToLower(r.URL.Path), probeFragments) ||
				containsAny(strings.ToLower(r.URL.RawQuery), probeFragments)
		}},
		{Name: "injection", Match: func(r *http.Request) bool {
			return containsAny(decodedQuery(r), injectionFragments)
		}},
		{Name: "scanner_agent", Match: func(r *http.Request) bool {
			return containsAny(strings.ToLower(r.Header.Get("User-Agent")), scannerAgents)
		}},
		{Name: "unusual_method", Match: func(r *http.Request) bool {
			return unusualMethods[r.Method]
		}},
		{Name: "long_url", Match: func(r *http.Request) bool {
			return len(r.URL.String()) > 2048
		}},
		{Name: "forwarding_chain", Match: func(r *http.Request) bool {
			return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5
		}},
	}
}

// Detector flags suspicious requests and resolves client addresses behind
// trusted proxies.
type Detector struct {
	rules []Rule

	suspicious  atomic.Int64
	invalidIP   atomic.Int64
	mu          sync.RWMutex
	byRule      map[string]int64
	trustedNets []netip.Prefix
}

// NewDetector returns a detector with DefaultRules that trusts loopback and
// private networks as proxies.
func NewDetector() *Detector {
	d := &Detector{rules: DefaultRules(), byRule: make(map[string]int64)}
	for _, cidr := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		d.trustedNets = append(d.trustedNets, netip.MustParsePrefix(cidr))
	}
	return d
}

// Middleware logs suspicious requests and passes every request on.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if matched := d.Check(r); len(matched) > 0 {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"component", "security",
				"rules", matched,
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", d.ExtractClientIP(r),
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Check returns the names of the rules r matches and counts them.
func (d *Detector) Check(r *http.Request) []string {
	var matched []string
	for _, rule := range d.rules {
		if rule.Match(r) {
			matched = append(matched, rule.Name)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	d.suspicious.Add(1)
	d.mu.Lock()
	for _, name := range matched {
		d.byRule[name]++
	}
	d.mu.Unlock()
	return matched
}

// DetectSuspiciousRequest reports whether r matches any rule.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	return len(d.Check(r)) > 0
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		d.invalidIP.Add(1)
		return host
	}
	if !d.isTrustedProxy(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.String()
		}
	}
	return host
}

func (d *Detector) isTrustedProxy(ip netip.Addr) bool {
	ip = ip.Unmap()
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.trustedNets {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// AddTrustedProxy trusts forwarded headers from peers in cidr.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.mu.Lock()
	d.trustedNets = append(d.trustedNets, p.Masked())
	d.mu.Unlock()
	return nil
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	d.mu.RLock()
	byRule := make(map[string]int64, len(d.byRule))
	for k, v := range d.byRule {
		byRule[k] = v
	}
	d.mu.RUnlock()
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
		ByRule:             byRule,
	}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// decodedQuery lowercases the unescaped query so encoded payloads match.
func decodedQuery(r *http.Request) string {
	q := r.URL.RawQuery
	if q == "" {
		return ""
	}
	if unescaped, err := url.QueryUnescape(q); err == nil {
		q = unescaped
	}
	return strings.ToLower(q)
}
