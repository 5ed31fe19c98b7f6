package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	transitions    *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	siblingRetries prometheus.Counter
	expired        prometheus.Counter
	httpRequests   *prometheus.CounterVec

	// Histograms
	matchDuration *prometheus.HistogramVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_transitions_total",
				Help: "Task status transitions applied",
			},
			[]string{"from", "to"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_conflicts_total",
				Help: "Conditional writes that lost a race",
			},
			[]string{"operation"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "application_decisions_total",
				Help: "Application decisions by outcome",
			},
			[]string{"decision"},
		),
		siblingRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "application_sibling_reject_retries_total",
				Help: "Retries spent rejecting sibling applications after an accept",
			},
		),
		expired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tasks_expired_total",
				Help: "Open tasks moved to expired by the sweep",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		matchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "match_duration_seconds",
				Help:    "Time spent ranking a match query",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.transitions,
		m.conflicts,
		m.decisions,
		m.siblingRetries,
		m.expired,
		m.httpRequests,
		m.matchDuration,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordSiblingRetry() {
	if m == nil {
		return
	}
	m.siblingRetries.Inc()
}

func (m *Metrics) RecordExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *Metrics) ObserveMatch(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.matchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
