package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"comparativo/internal/core"
	"comparativo/internal/export"
	applog "comparativo/internal/log"
	"comparativo/internal/report"
	"comparativo/internal/services"
	"comparativo/internal/session"
)

// pageData feeds index.html and the report partial.
type pageData struct {
	Snapshots      []string
	SnapshotsError string
	Base           string
	Actual         string
	Report         report.Report
	Banner         *report.Banner
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.svc.Ready(ctx); err != nil {
		checks["source"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["source"] = "ok"
	}

	rl := s.rateLimiter.GetMetrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": rl.Clients,
		"rejected":       rl.Rejected,
	}
	tm := s.traceMiddleware.GetMetrics()
	checks["requests"] = map[string]any{
		"total":         tm.TotalRequests,
		"client_errors": tm.ClientErrors,
		"server_errors": tm.ServerErrors,
		"last_latency":  tm.LastLatency.String(),
	}
	checks["suspicious_requests"] = s.securityDetector.GetMetrics().SuspiciousRequests

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	sid := s.sessionID(w, r)
	data := s.pageData(r.Context(), sid)

	snaps, err := s.svc.Snapshots(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Snapshot catalog error", applog.FieldError, err)
		data.SnapshotsError = "No fue posible cargar las asignaciones disponibles."
	}
	data.Snapshots = snaps
	if data.Report.Run == nil && len(snaps) > 0 {
		// default: compare the newest snapshot against the previous one
		data.Actual = snaps[0]
		data.Base = snaps[0]
		if len(snaps) > 1 {
			data.Base = snaps[1]
		}
	}

	s.render(w, r, http.StatusOK, "index.html", data)
}

// handleReportPartial renders the report section of the caller's session.
func (s *Server) handleReportPartial(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	s.render(w, r, http.StatusOK, "report", s.pageData(r.Context(), sid))
}

// pageData loads the session view. A store failure degrades to an empty
// report rather than failing the page.
func (s *Server) pageData(ctx context.Context, sid string) pageData {
	view, err := s.svc.View(ctx, sid)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Session view error",
			applog.FieldSessionID, sid, applog.FieldError, err)
		view = session.New(sid).View()
	}
	data := pageData{Report: report.Build(view, report.Options{RowLimit: s.rowLimit})}
	if view.Run != nil {
		data.Base = view.Run.Base
		data.Actual = view.Run.Actual
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if s.templates == nil {
		writeError(w, http.StatusInternalServerError, "templates not loaded")
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name)
		writeError(w, http.StatusInternalServerError, msgRenderFailed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// handleRunComparison executes a comparison for the session and returns the
// refreshed report partial. When the source fails the previous report is
// rendered again under an error banner with status 502.
func (s *Server) handleRunComparison(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())
	sid := s.sessionID(w, r)

	form, err := readForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	req := parseComparisonRequest(form)

	st, err := s.svc.Execute(r.Context(), sid, req)
	switch {
	case errors.Is(err, core.ErrEmptySnapshotID):
		writeError(w, http.StatusUnprocessableEntity, msgMissingIDs)
		return
	case err != nil:
		logger.ErrorContext(r.Context(), "Comparison run failed",
			applog.FieldSessionID, sid,
			applog.FieldBase, req.Base,
			applog.FieldActual, req.Actual,
			applog.FieldError, err)
		data := s.pageData(r.Context(), sid)
		banner := report.ErrorBanner(err)
		data.Banner = &banner
		s.render(w, r, http.StatusBadGateway, "report", data)
		return
	}

	data := pageData{
		Base:   st.Run.Base,
		Actual: st.Run.Actual,
		Report: report.Build(st.View(), report.Options{RowLimit: s.rowLimit}),
	}
	banner := report.SuccessBanner()
	data.Banner = &banner

	newHTMXResponse().reportUpdated(st.Run.ID).apply(w)
	s.render(w, r, http.StatusOK, "report", data)
}

func (s *Server) handleToggleType(w http.ResponseWriter, r *http.Request) {
	s.handleToggle(w, r, "type", s.svc.ToggleType)
}

func (s *Server) handleToggleRange(w http.ResponseWriter, r *http.Request) {
	s.handleToggle(w, r, "range", s.svc.ToggleRange)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, filter string, toggle func(context.Context, string, string) (session.State, error)) {
	sid := s.sessionID(w, r)
	form, err := readForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	value := form["value"]

	st, err := toggle(r.Context(), sid, value)
	switch {
	case errors.Is(err, core.ErrNoComparison):
		writeError(w, http.StatusConflict, msgNoRun)
		return
	case errors.Is(err, core.ErrUnknownType), errors.Is(err, core.ErrUnknownRange):
		writeError(w, http.StatusUnprocessableEntity, msgUnknownValue+value)
		return
	case err != nil:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Toggle failed",
			applog.FieldSessionID, sid,
			applog.FieldFilter, filter,
			applog.FieldFilterValue, value,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, msgToggleFailed)
		return
	}

	data := pageData{Report: report.Build(st.View(), report.Options{RowLimit: s.rowLimit})}
	if st.Run != nil {
		data.Base, data.Actual = st.Run.Base, st.Run.Actual
	}
	newHTMXResponse().filtersChanged(filter, value).apply(w)
	s.render(w, r, http.StatusOK, "report", data)
}

func (s *Server) handleAPISnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.svc.Snapshots(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Snapshot catalog error", applog.FieldError, err)
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	if snaps == nil {
		snaps = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	view, err := s.svc.View(r.Context(), sid)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	limit := ParseRowLimit(r.URL.Query(), s.rowLimit)
	writeJSON(w, http.StatusOK, report.Build(view, report.Options{RowLimit: limit}))
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.svc.Runs(r.Context(), ParseRowLimit(r.URL.Query(), 20))
	switch {
	case errors.Is(err, services.ErrRunsUnsupported):
		writeJSONError(w, http.StatusNotImplemented, err.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	if runs == nil {
		runs = []core.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, r, export.FormatXLSX, export.WriteXLSX)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, r, export.FormatPDF, export.WritePDF)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, format string, write func(io.Writer, session.View) error) {
	logger := applog.FromContext(r.Context())
	sid := s.sessionID(w, r)
	view, err := s.svc.View(r.Context(), sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgSessionError)
		return
	}

	var buf bytes.Buffer
	err = write(&buf, view)
	s.metrics.ObserveExport(format, err)
	switch {
	case errors.Is(err, export.ErrNothingToExport):
		writeError(w, http.StatusConflict, msgNoRun)
		return
	case err != nil:
		logger.ErrorContext(r.Context(), "Export failed",
			applog.FieldFormat, format,
			applog.FieldSessionID, sid,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, msgExportFailed)
		return
	}

	logger.InfoContext(r.Context(), "Report exported",
		applog.FieldFormat, format,
		applog.FieldRunID, view.Run.ID,
		applog.FieldRows, len(view.Rows))

	w.Header().Set("Content-Type", export.ContentTypes[format])
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(view.Run, format)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
