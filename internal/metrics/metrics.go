// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers do not collide.
type Metrics struct {
	reg *prometheus.Registry

	mutations *prometheus.CounterVec
	history   *prometheus.CounterVec
	requests  *prometheus.HistogramVec
}

// New registers all collectors plus Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "buyers_mutations_total",
			Help: "Buyer mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		history: f.NewCounterVec(prometheus.CounterOpts{
			Name: "buyers_history_entries_total",
			Help: "History entries written by kind.",
		}, []string{"kind"}),
		requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// Mutation counts one create/update/delete attempt; outcome is "ok" or an error kind.
func (m *Metrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// HistoryEntry counts one committed history entry.
func (m *Metrics) HistoryEntry(kind string) {
	if m == nil {
		return
	}
	m.history.WithLabelValues(kind).Inc()
}

// Request observes one finished HTTP request.
func (m *Metrics) Request(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, status).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
