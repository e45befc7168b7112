// Package promsink adapts application.MetricsSink onto
// github.com/prometheus/client_golang, the concrete metrics backend
// named by SPEC_FULL.md's DOMAIN STACK wiring table.
//
// Grounded on SAGE-X-project-sage's internal/metrics package: a
// dedicated prometheus.Registry (not the global DefaultRegisterer, so
// an embedder can run more than one Sink without cross-registering),
// promauto-style construction, and promhttp.HandlerFor for exposition.
// SAGE-X's metrics are hand-declared per named operation
// (HandshakesInitiated, SessionsActive, ...); the core's MetricsSink
// interface instead calls IncCounter/ObserveValue with an arbitrary
// name chosen at each call site (§3/§5's embedder-agnostic boundary),
// so this adapter registers each name's collector lazily on first use
// rather than listing them all up front.
package promsink

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "veil"

// Sink implements application.MetricsSink over a private
// prometheus.Registry. The zero value is not usable; build one with
// New.
type Sink struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// New builds a Sink backed by a fresh, private registry.
func New() *Sink {
	registry := prometheus.NewRegistry()
	return &Sink{
		registry:   registry,
		factory:    promauto.With(registry),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Handler returns the HTTP handler exposing this Sink's registry in
// the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// IncCounter implements application.MetricsSink, lazily registering a
// Counter named veil_<name>_total on first use.
func (s *Sink) IncCounter(name string, delta uint64) {
	s.mu.Lock()
	c, ok := s.counters[name]
	if !ok {
		c = s.factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name + "_total",
			Help:      "VEIL counter: " + name,
		})
		s.counters[name] = c
	}
	s.mu.Unlock()
	c.Add(float64(delta))
}

// ObserveValue implements application.MetricsSink, lazily registering
// a Histogram named veil_<name> on first use. Histograms (rather than
// gauges) are used because the core's ObserveValue calls are point
// samples of a varying quantity (an RTT estimate, a buffer occupancy),
// not a single up-down counter — the same choice SAGE-X makes for its
// duration/size metrics.
func (s *Sink) ObserveValue(name string, value float64) {
	s.mu.Lock()
	h, ok := s.histograms[name]
	if !ok {
		h = s.factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      "VEIL observation: " + name,
		})
		s.histograms[name] = h
	}
	s.mu.Unlock()
	h.Observe(value)
}
