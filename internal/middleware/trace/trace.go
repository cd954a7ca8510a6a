// Package trace assigns request IDs and logs every request with its
// outcome.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "comparativo/internal/log"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// Incoming IDs from proxies are kept only when they match this.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Counters are in-process request totals for the readiness report.
type Counters struct {
	TotalRequests int64
	ClientErrors  int64
	ServerErrors  int64
	// LastLatency is the duration of the most recently finished request.
	LastLatency time.Duration
}

// Middleware tags requests with an ID and logs their start and end.
type Middleware struct {
	clientIP func(*http.Request) string
	events   *applog.StructuredLogger

	total, clientErrs, serverErrs, lastLatency atomic.Int64
}

// NewMiddleware resolves client addresses with clientIP, which may be nil.
func NewMiddleware(clientIP func(*http.Request) string, logger *applog.Logger) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Middleware{
		clientIP: clientIP,
		events:   applog.NewStructuredLogger(logger.WithComponent(applog.ComponentTrace)),
	}
}

// Middleware wraps next. A sane incoming X-Request-ID is reused; otherwise
// a new one is minted. The ID is echoed in the response.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(id) {
			id = NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		ip := ""
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}
		m.events.LogHTTPStart(r.Context(), r, ip)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		m.count(sw.status, elapsed)
		m.events.LogHTTPEnd(r.Context(), r, sw.status, elapsed, ip)
	})
}

func (m *Middleware) count(status int, elapsed time.Duration) {
	m.total.Add(1)
	m.lastLatency.Store(int64(elapsed))
	switch {
	case status >= 500:
		m.serverErrs.Add(1)
	case status >= 400:
		m.clientErrs.Add(1)
	}
}

// GetMetrics returns the counters so far.
func (m *Middleware) GetMetrics() Counters {
	return Counters{
		TotalRequests: m.total.Load(),
		ClientErrors:  m.clientErrs.Load(),
		ServerErrors:  m.serverErrs.Load(),
		LastLatency:   time.Duration(m.lastLatency.Load()),
	}
}

// statusWriter records the first status written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status, w.written = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// NewRequestID returns a fresh random request ID.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID returns the request ID stored in ctx, if any.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID reads the request ID of r; it plugs into log.RequestIDMiddleware.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
