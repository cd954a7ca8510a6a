package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTMXTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	newHTMXResponse().
		reportUpdated("run-1").
		filtersChanged("type", "Consumo").
		apply(w)

	var got map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &got); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	if got[EventReportUpdated]["run_id"] != "run-1" {
		t.Errorf("report:updated = %v", got[EventReportUpdated])
	}
	if got[EventFiltersChanged]["filter"] != "type" || got[EventFiltersChanged]["value"] != "Consumo" {
		t.Errorf("filters:changed = %v", got[EventFiltersChanged])
	}
}

func TestHTMXNoTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	newHTMXResponse().apply(w)
	if _, ok := w.Header()["Hx-Trigger"]; ok {
		t.Error("HX-Trigger set without events")
	}
}

func TestWriteErrorEscapes(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusUnprocessableEntity, msgUnknownValue+`<script>alert("x")</script>`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := `<div class="error">Filtro desconocido: &lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</div>`
	if w.Body.String() != want {
		t.Errorf("body = %q, want %q", w.Body.String(), want)
	}
}
