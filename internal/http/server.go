package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	applog "comparativo/internal/log"
	"comparativo/internal/metrics"
	"comparativo/internal/middleware/ratelimit"
	"comparativo/internal/middleware/security"
	"comparativo/internal/middleware/trace"
	"comparativo/internal/report"
	"comparativo/internal/services"
	appweb "comparativo/web"
)

// Options configures NewServer. Zero values pick defaults.
type Options struct {
	Logger         *applog.Logger
	Metrics        *metrics.Metrics
	RateLimit      ratelimit.Config
	SessionTTL     time.Duration
	SecureCookies  bool
	RowLimit       int
	TrustedProxies []string
}

type Server struct {
	http.Server
	templates *template.Template
	svc       *services.ComparisonService
	metrics   *metrics.Metrics
	logger    *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	sessionTTL    time.Duration
	secureCookies bool
	rowLimit      int
	startedAt     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, svc *services.ComparisonService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	rowLimit := opts.RowLimit
	if rowLimit == 0 {
		rowLimit = report.DefaultRowLimit
	}

	s := &Server{
		svc:              svc,
		metrics:          opts.Metrics,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: security.NewDetector(),
		sessionTTL:       ttl,
		secureCookies:    opts.SecureCookies,
		rowLimit:         rowLimit,
		startedAt:        time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	t, err := parseTemplates()
	if err != nil {
		s.logger.Error("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
	}
	limited := s.rateLimiter.Guard(s.securityDetector.ExtractClientIP, onLimit)
	action := func(h http.HandlerFunc) http.Handler { return limited(h) }
	download := func(h http.HandlerFunc) http.Handler { return limited(security.NoStore(h)) }

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// UI partials and actions
	mux.Handle("GET /ui/report", security.NoStore(http.HandlerFunc(s.handleReportPartial)))
	mux.Handle("POST /comparisons", action(s.handleRunComparison))
	mux.Handle("POST /filters/types", action(s.handleToggleType))
	mux.Handle("POST /filters/ranges", action(s.handleToggleRange))

	// JSON API
	mux.HandleFunc("GET /api/snapshots", s.handleAPISnapshots)
	mux.Handle("GET /api/report", security.NoStore(http.HandlerFunc(s.handleAPIReport)))
	mux.HandleFunc("GET /api/runs", s.handleAPIRuns)

	// Exports
	mux.Handle("GET /export/report.xlsx", download(s.handleExportXLSX))
	mux.Handle("GET /export/report.pdf", download(s.handleExportPDF))

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestID)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
