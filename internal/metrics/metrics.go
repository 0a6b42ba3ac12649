// Package metrics holds the Prometheus collectors of the server. Every
// collector is registered on the Metrics' own registry so tests can build
// isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prep"

type Metrics struct {
	Registry *prometheus.Registry

	// RequestsTotal counts HTTP requests. Labels: route, method, status.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration observes handler latency. Labels: route, method.
	RequestDuration *prometheus.HistogramVec
	// ActiveStreams tracks open SSE responses. Labels: endpoint.
	ActiveStreams *prometheus.GaugeVec
	// GenerationsTotal counts AI generations. Labels: kind, status.
	GenerationsTotal *prometheus.CounterVec

	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheInvalidations prometheus.Counter

	// RateLimitDecisions counts limiter outcomes. Labels: policy, outcome.
	RateLimitDecisions *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route", "method"}),
		ActiveStreams: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "active_streams",
			Help:      "Server-sent event streams currently open.",
		}, []string{"endpoint"}),
		GenerationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "generations_total",
			Help:      "AI generations by kind and status.",
		}, []string{"kind", "status"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups served from the cache.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that fell through to the loader.",
		}),
		CacheInvalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidated_tags_total",
			Help:      "Tags invalidated after writes.",
		}),
		RateLimitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limiter decisions by policy and outcome.",
		}, []string{"policy", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// The helpers below accept a nil receiver so components can run without metrics.

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) CacheInvalidated(n int) {
	if m != nil {
		m.CacheInvalidations.Add(float64(n))
	}
}

func (m *Metrics) RateLimitDecision(policy string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.RateLimitDecisions.WithLabelValues(policy, outcome).Inc()
}

func (m *Metrics) Generation(kind, status string) {
	if m != nil {
		m.GenerationsTotal.WithLabelValues(kind, status).Inc()
	}
}

// StreamOpened increments the active stream gauge and returns its decrement.
func (m *Metrics) StreamOpened(endpoint string) func() {
	if m == nil {
		return func() {}
	}
	g := m.ActiveStreams.WithLabelValues(endpoint)
	g.Inc()
	return g.Dec
}
