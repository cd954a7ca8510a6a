package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comparativo/internal/core"
	"comparativo/internal/export"
	applog "comparativo/internal/log"
	"comparativo/internal/metrics"
	"comparativo/internal/middleware/ratelimit"
	"comparativo/internal/report"
	"comparativo/internal/services"
	"comparativo/internal/session"
	"comparativo/internal/snapshots"
	"comparativo/internal/snapshots/memory"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil), Component: "test"})
}

func snap(entity string, period int, typ, value string) core.SnapshotRow {
	return core.SnapshotRow{EntityID: entity, Period: core.PeriodOf(period), PortfolioType: typ, Value: core.ParseValue(value)}
}

func demoSource() *memory.Store {
	return memory.New(map[string][]core.SnapshotRow{
		"2024-06": {
			snap("E1", 201801, "Consumo", "100"),
			snap("E2", 202001, "Vivienda", "200"),
		},
		"2024-12": {
			snap("E1", 201801, "Consumo", "150"),
			snap("E3", 202503, "Consumo", "50"),
		},
	})
}

// brokenSource lists snapshots but fails every comparison.
type brokenSource struct{ *memory.Store }

func (brokenSource) Compare(context.Context, string, string) ([]core.DiffRow, error) {
	return nil, errors.New("connection refused")
}

type testServer struct {
	*Server
	cookie *http.Cookie
}

func newTestServer(t *testing.T, source snapshots.Source, rl ratelimit.Config) *testServer {
	t.Helper()
	logger := quietLogger()
	store := session.NewMemoryStore(16, time.Hour, nil)
	m := metrics.New(nil)
	svc := services.NewComparisonService(source, store, services.Options{Logger: logger, Metrics: m})
	if rl.RequestsPerSecond == 0 {
		rl = ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000}
	}
	srv := NewServer(":0", svc, Options{Logger: logger, Metrics: m, RateLimit: rl})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv}
}

// do sends a request carrying the session cookie minted by earlier calls.
func (ts *testServer) do(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "10.0.0.1:1234"
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			ts.cookie = c
		}
	}
	return rr
}

func (ts *testServer) runComparison(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/comparisons", url.Values{"base": {"2024-06"}, "actual": {"2024-12"}})
}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})

	rr := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, ts.cookie, "index should mint a session cookie")
	assert.True(t, ts.cookie.HttpOnly)
	body := rr.Body.String()
	assert.Contains(t, body, `<option value="2024-12"`)
	assert.Contains(t, body, `id="report"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Header().Get("Content-Type"), "application/json", path)
	}
}

func TestSessionCookieIsReused(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})
	ts.do(t, http.MethodGet, "/", nil)
	first := ts.cookie.Value

	rr := ts.do(t, http.MethodGet, "/ui/report", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Result().Cookies(), "a valid cookie must not be replaced")
	assert.Equal(t, first, ts.cookie.Value)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestRunComparison(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})

	rr := ts.runComparison(t)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "report:updated")
	body := rr.Body.String()
	assert.Contains(t, body, "Comparativo completo generado")
	assert.Contains(t, body, string(core.StatusNew))
	assert.Contains(t, body, string(core.StatusRemoved))
	assert.Contains(t, body, string(core.StatusIncreased))

	rr = ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Consumo", "index renders the stored run")
}

func TestRunComparisonValidation(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})

	rr := ts.do(t, http.MethodPost, "/comparisons", url.Values{"base": {""}, "actual": {"2024-12"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `class="error"`)

	rr = ts.do(t, http.MethodGet, "/comparisons", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRunComparisonSourceFailure(t *testing.T) {
	ts := newTestServer(t, brokenSource{demoSource()}, ratelimit.Config{})

	rr := ts.runComparison(t)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Error al generar el comparativo")
	assert.Contains(t, body, "connection refused")
	assert.Empty(t, rr.Header().Get("HX-Trigger"))
}

func TestToggles(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})

	rr := ts.do(t, http.MethodPost, "/filters/types", url.Values{"value": {"Consumo"}})
	assert.Equal(t, http.StatusConflict, rr.Code, "toggle before any run")

	require.Equal(t, http.StatusOK, ts.runComparison(t).Code)

	rr = ts.do(t, http.MethodPost, "/filters/types", url.Values{"value": {"Consumo"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "filters:changed")

	var rep report.Report
	rr = ts.do(t, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	require.Len(t, rep.Rows, 1, "only the Vivienda row remains")
	assert.Equal(t, "E2", rep.Rows[0].EntityID)

	rr = ts.do(t, http.MethodPost, "/filters/ranges", url.Values{"value": {string(core.RangeNoData)}})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPost, "/filters/ranges", url.Values{"value": {"1990"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = ts.do(t, http.MethodPost, "/filters/types", url.Values{"value": {"Tarjeta"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAPISnapshotsAndReport(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})

	rr := ts.do(t, http.MethodGet, "/api/snapshots", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snaps struct {
		Snapshots []string `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snaps))
	assert.Equal(t, []string{"2024-12", "2024-06"}, snaps.Snapshots)

	rr = ts.do(t, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var empty report.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &empty))
	assert.Nil(t, empty.Run)

	require.Equal(t, http.StatusOK, ts.runComparison(t).Code)
	rr = ts.do(t, http.MethodGet, "/api/report?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rep report.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	require.NotNil(t, rep.Run)
	assert.Equal(t, "2024-06", rep.Run.Base)
	assert.Len(t, rep.Rows, 1)
	assert.Equal(t, 3, rep.RowCount)
	assert.Len(t, rep.Cards, 3)
}

func TestAPIRunsUnsupported(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})
	rr := ts.do(t, http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestExports(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})

	rr := ts.do(t, http.MethodGet, "/export/report.xlsx", nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "nothing to export before a run")

	require.Equal(t, http.StatusOK, ts.runComparison(t).Code)

	tests := []struct {
		path   string
		format string
	}{
		{"/export/report.xlsx", export.FormatXLSX},
		{"/export/report.pdf", export.FormatPDF},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rr := ts.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, export.ContentTypes[tt.format], rr.Header().Get("Content-Type"))
			assert.Contains(t, rr.Header().Get("Content-Disposition"), "."+tt.format)
			assert.NotZero(t, rr.Body.Len())
		})
	}
}

func TestRateLimitOnActions(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1})

	require.Equal(t, http.StatusOK, ts.runComparison(t).Code)
	rr := ts.runComparison(t)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/snapshots", nil).Code)
	// exports share the action budget
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodGet, "/export/report.xlsx", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, demoSource(), ratelimit.Config{})
	require.Equal(t, http.StatusOK, ts.runComparison(t).Code)

	rr := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "comparativo_")
}
