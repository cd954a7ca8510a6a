package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rps float64, burst int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(Config{RequestsPerSecond: rps, Burst: burst, CleanupInterval: time.Hour, IdleTTL: time.Minute})
	t.Cleanup(l.Stop)
	clock := time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestBurstThenRefill(t *testing.T) {
	l, clock := newTestLimiter(t, 1, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "clients are independent")

	*clock = clock.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refilled")
	assert.False(t, l.Allow("10.0.0.1"))

	m := l.GetMetrics()
	assert.EqualValues(t, 2, m.Rejected)
	assert.Equal(t, 2, m.Clients)
}

func TestReserveReportsDelay(t *testing.T) {
	l, _ := newTestLimiter(t, 0.5, 1)
	ok, _ := l.Reserve("c")
	require.True(t, ok)

	ok, wait := l.Reserve("c")
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)
}

func TestRejectedReservationKeepsTokens(t *testing.T) {
	l, clock := newTestLimiter(t, 1, 1)
	require.True(t, l.Allow("c"))
	for i := 0; i < 5; i++ {
		assert.False(t, l.Allow("c"))
	}
	*clock = clock.Add(time.Second)
	assert.True(t, l.Allow("c"), "rejections must not borrow future tokens")
}

func TestSweep(t *testing.T) {
	l, clock := newTestLimiter(t, 1, 1)
	l.Allow("old")
	*clock = clock.Add(2 * time.Minute)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.GetMetrics().Clients)
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(Config{})
	l.Stop()
	l.Stop()
}

func TestGuard(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	h := l.Guard(func(*http.Request) string { return "10.0.0.1" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/comparisons", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/comparisons", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestGuardCustomReject(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	h := l.Guard(func(*http.Request) string { return "ip" }, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/export/report.pdf", nil))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/report.pdf", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 3, retryAfterSeconds(2100*time.Millisecond))
}
