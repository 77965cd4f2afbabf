// Package metrics holds the Prometheus collectors shared by the lifecycle
// manager, sessions and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors on a dedicated registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Instances   prometheus.Gauge
	Refreshes   *prometheus.CounterVec
	Evictions   prometheus.Counter
	Errors      *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	Pages       *prometheus.CounterVec
	Sessions    *prometheus.CounterVec
}

// New constructs and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	instances := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "domain_intel_collector_instances",
		Help: "Collector instances currently registered with the lifecycle manager.",
	})
	refreshes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_intel_collector_refreshes_total",
			Help: "Collector instance refreshes by trigger.",
		},
		[]string{"collector", "reason"},
	)
	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "domain_intel_collector_evictions_total",
		Help: "Idle collector instances evicted by the health check.",
	})
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_intel_collector_errors_total",
			Help: "Errors reported against collector instances.",
		},
		[]string{"collector"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_intel_session_runs_total",
			Help: "Collector runs driven by sessions, by outcome.",
		},
		[]string{"collector", "outcome"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domain_intel_session_run_duration_seconds",
			Help:    "Wall time of a collector run inside a session.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"collector"},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_intel_pages_total",
			Help: "Pages returned by collector runs, by outcome.",
		},
		[]string{"collector", "outcome"},
	)
	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_intel_sessions_total",
			Help: "Session state transitions.",
		},
		[]string{"status"},
	)

	registry.MustRegister(instances, refreshes, evictions, errorsTotal, runs, runDuration, pages, sessions)

	return &Metrics{
		Registry:    registry,
		Instances:   instances,
		Refreshes:   refreshes,
		Evictions:   evictions,
		Errors:      errorsTotal,
		Runs:        runs,
		RunDuration: runDuration,
		Pages:       pages,
		Sessions:    sessions,
	}
}

// SetInstances records the number of registered instances.
func (m *Metrics) SetInstances(n int) {
	if m == nil {
		return
	}
	m.Instances.Set(float64(n))
}

// IncRefresh counts a refresh of collector for reason.
func (m *Metrics) IncRefresh(collector, reason string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(collector, reason).Inc()
}

// IncEviction counts an idle eviction.
func (m *Metrics) IncEviction() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}

// IncError counts an error reported for collector.
func (m *Metrics) IncError(collector string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(collector).Inc()
}

// ObserveRun records a finished run and its page outcomes.
func (m *Metrics) ObserveRun(collector string, ok bool, d time.Duration, succeeded, failed int) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.Runs.WithLabelValues(collector, outcome).Inc()
	m.RunDuration.WithLabelValues(collector).Observe(d.Seconds())
	if succeeded > 0 {
		m.Pages.WithLabelValues(collector, "success").Add(float64(succeeded))
	}
	if failed > 0 {
		m.Pages.WithLabelValues(collector, "failure").Add(float64(failed))
	}
}

// IncSession counts a session entering status.
func (m *Metrics) IncSession(status string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(status).Inc()
}
