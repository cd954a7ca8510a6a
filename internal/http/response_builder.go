package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HX-Trigger event names the page listens for.
const (
	EventReportUpdated  = "report:updated"
	EventFiltersChanged = "filters:changed"
)

// htmxResponse collects HX-Trigger events for a partial response. Handlers
// apply it before rendering the partial themselves.
type htmxResponse struct {
	triggers map[string]any
}

func newHTMXResponse() *htmxResponse {
	return &htmxResponse{triggers: make(map[string]any)}
}

func (h *htmxResponse) trigger(event string, detail any) *htmxResponse {
	h.triggers[event] = detail
	return h
}

// reportUpdated tells the page a run completed so it redraws the charts.
func (h *htmxResponse) reportUpdated(runID string) *htmxResponse {
	return h.trigger(EventReportUpdated, map[string]string{"run_id": runID})
}

// filtersChanged names the toggled filter ("type" or "range") and value.
func (h *htmxResponse) filtersChanged(filter, value string) *htmxResponse {
	return h.trigger(EventFiltersChanged, map[string]string{"filter": filter, "value": value})
}

func (h *htmxResponse) apply(w http.ResponseWriter) {
	if len(h.triggers) == 0 {
		return
	}
	if b, err := json.Marshal(h.triggers); err == nil {
		w.Header().Set("HX-Trigger", string(b))
	}
}

// writeError answers an htmx request with an escaped error fragment. The
// page shows it in the flash area unless status is 502.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`))
}

// User-facing messages for the error responses.
const (
	msgBadRequest   = "Formato de solicitud no válido"
	msgMissingIDs   = "Selecciona la asignación base y la asignación actual."
	msgNoRun        = "Primero ejecuta un comparativo."
	msgUnknownValue = "Filtro desconocido: "
	msgToggleFailed = "Error al aplicar el filtro"
	msgSessionError = "Error al cargar la sesión"
	msgExportFailed = "Error al generar el archivo"
	msgRenderFailed = "Error al renderizar la página"
	msgRateLimited  = "Demasiadas solicitudes. Intenta de nuevo en unos segundos."
)
