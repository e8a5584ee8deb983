// Package metrics exposes Prometheus counters for sync runs, per-task
// outcomes and the HTTP control surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskcal"

// Metrics owns its own registry so tests and multiple servers in one
// process do not collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	reconcileTotal *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	httpRequests   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Reconciled tasks by outcome (created, recreated, updated, skipped, error, placeholder).",
		}, []string{"action"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by result (ok, failed, busy).",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP control surface requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.Registry.MustRegister(m.reconcileTotal, m.runsTotal, m.runDuration, m.httpRequests)
	return m
}

// ObserveReconcile counts one task outcome.
func (m *Metrics) ObserveReconcile(action string) {
	m.reconcileTotal.WithLabelValues(action).Inc()
}

// ObserveRun counts a run. The duration is only recorded for runs that
// actually executed.
func (m *Metrics) ObserveRun(result string, d time.Duration) {
	m.runsTotal.WithLabelValues(result).Inc()
	if d > 0 {
		m.runDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
