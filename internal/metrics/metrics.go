// Package metrics exposes Prometheus metrics for the lifetime manager.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Removal reasons.
const (
	ReasonRequest      = "request"
	ReasonSessionReset = "session_reset"
	ReasonReconcile    = "reconcile"
	ReasonClean        = "clean"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Registrations    *prometheus.CounterVec
	RemovedLifetimes *prometheus.CounterVec
	DeleteFailures   prometheus.Counter
	ReconcileRuns    prometheus.Counter
	CatalogHandles   *prometheus.GaugeVec
	ChangeHandlers   prometheus.Gauge
}

// NewMetrics creates metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryd_registrations_total",
				Help: "Registration calls by resource kind, lifetime scope and result",
			},
			[]string{"kind", "scope", "result"},
		),
		RemovedLifetimes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryd_removed_lifetimes_total",
				Help: "Lifetimes removed from the catalog by scope and reason",
			},
			[]string{"scope", "reason"},
		),
		DeleteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entryd_file_delete_failures_total",
				Help: "Backing files that could not be deleted during lifetime removal",
			},
		),
		ReconcileRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entryd_reconcile_runs_total",
				Help: "Reconciler ticks",
			},
		),
		CatalogHandles: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "entryd_catalog_handles",
				Help: "Handles currently recorded in the catalog",
			},
			[]string{"kind"},
		),
		ChangeHandlers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "entryd_change_handlers",
				Help: "Registered change handler processes",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRegistration counts one registration call.
func (m *Metrics) ObserveRegistration(kind, scope string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Registrations.WithLabelValues(kind, scope, result).Inc()
}

// ObserveRemoval counts one removed lifetime.
func (m *Metrics) ObserveRemoval(scope, reason string) {
	if m == nil {
		return
	}
	m.RemovedLifetimes.WithLabelValues(scope, reason).Inc()
}

// ObserveDeleteFailure counts one file that could not be deleted.
func (m *Metrics) ObserveDeleteFailure() {
	if m == nil {
		return
	}
	m.DeleteFailures.Inc()
}

// ObserveReconcile counts one reconciler tick.
func (m *Metrics) ObserveReconcile() {
	if m == nil {
		return
	}
	m.ReconcileRuns.Inc()
}

// SetCatalogSize records the catalog handle counts.
func (m *Metrics) SetCatalogSize(entries, icons int) {
	if m == nil {
		return
	}
	m.CatalogHandles.WithLabelValues("entry").Set(float64(entries))
	m.CatalogHandles.WithLabelValues("icon").Set(float64(icons))
}

// SetChangeHandlers records the number of change handlers.
func (m *Metrics) SetChangeHandlers(n int) {
	if m == nil {
		return
	}
	m.ChangeHandlers.Set(float64(n))
}
