// Package metrics exposes Prometheus collectors for comparison runs, filter
// toggles and exports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "comparativo_"

	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics bundles the report collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	ComparisonsTotal   *prometheus.CounterVec
	ComparisonDuration *prometheus.HistogramVec
	DiffRows           prometheus.Gauge
	FilterToggles      *prometheus.CounterVec
	ExportsTotal       *prometheus.CounterVec
	SessionEvictions   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New constructs the collectors and registers them on reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ComparisonsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "comparisons_total",
				Help: "Total comparison runs by result",
			},
			[]string{"result"},
		),
		ComparisonDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "comparison_duration_seconds",
				Help:    "Comparison run duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"result"},
		),
		DiffRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "diff_rows",
			Help: "Rows produced by the last successful comparison",
		}),
		FilterToggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "filter_toggles_total",
				Help: "Total filter toggles by filter",
			},
			[]string{"filter"},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		),
		SessionEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "session_evictions_total",
				Help: "In-memory sessions dropped by reason (capacity, expired)",
			},
			[]string{"reason"},
		),
		gatherer: reg,
	}
	reg.MustRegister(
		m.ComparisonsTotal,
		m.ComparisonDuration,
		m.DiffRows,
		m.FilterToggles,
		m.ExportsTotal,
		m.SessionEvictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveComparison records one comparison attempt.
func (m *Metrics) ObserveComparison(err error, d time.Duration, rows int) {
	if m == nil {
		return
	}
	result := resultOf(err)
	m.ComparisonsTotal.WithLabelValues(result).Inc()
	m.ComparisonDuration.WithLabelValues(result).Observe(d.Seconds())
	if err == nil {
		m.DiffRows.Set(float64(rows))
	}
}

// ObserveToggle records a filter toggle; filter is "type" or "range".
func (m *Metrics) ObserveToggle(filter string) {
	if m == nil {
		return
	}
	m.FilterToggles.WithLabelValues(filter).Inc()
}

// ObserveExport records an export attempt for format.
func (m *Metrics) ObserveExport(format string, err error) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(format, resultOf(err)).Inc()
}

// ObserveSessionEviction counts a session dropped from the memory store.
func (m *Metrics) ObserveSessionEviction(reason string) {
	if m == nil {
		return
	}
	m.SessionEvictions.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
