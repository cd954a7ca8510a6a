package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ctxKey struct{}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return build(slog.Default(), "", nil)
}

// Middleware makes logger the request logger.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// RequestIDMiddleware tags the request logger with the id requestID returns.
func RequestIDMiddleware(requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestID(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			logger := FromContext(r.Context()).With(FieldRequestID, id)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger writes the fixed-shape events for requests and runs.
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart records an incoming request at debug level.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	f := NewFields().
		Request(r.Method, r.URL.Path, r.URL.RawQuery).
		Client(clientIP, r.Header.Get("User-Agent"))
	sl.logger.LogAttrs(ctx, slog.LevelDebug, "HTTP request started", f...)
}

// LogHTTPEnd records a finished request. 4xx responses log at warn and
// 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, status int, elapsed time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	f := NewFields().
		Request(r.Method, r.URL.Path, r.URL.RawQuery).
		Response(status, elapsed).
		Client(clientIP, "")
	sl.logger.LogAttrs(ctx, level, "HTTP request completed", f...)
}

// LogComparisonExecuted records a completed comparison run.
func (sl *StructuredLogger) LogComparisonExecuted(ctx context.Context, sessionID, runID, base, actual string, rows int, elapsed time.Duration) {
	f := NewFields().
		Comparison(runID, base, actual, rows).
		add(FieldSessionID, sessionID).
		add(FieldOperation, OpCompare).
		add(FieldDuration, elapsed.Milliseconds())
	sl.logger.LogAttrs(ctx, slog.LevelInfo, "Comparison executed", f...)
}
