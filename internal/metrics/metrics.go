// Package metrics exposes Prometheus instrumentation for the reference
// loader, the caches and the device aggregator. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bmeutil"

const (
	CacheLookup = "lookup"
	CacheResult = "result"
)

type Metrics struct {
	registry *prometheus.Registry

	CacheRequests   *prometheus.CounterVec
	ReferenceLoads  *prometheus.CounterVec
	DegradedSources *prometheus.CounterVec
	LoadDuration    prometheus.Histogram
	Aggregations    *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	RateLimited  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by cache and outcome.",
		}, []string{"cache", "outcome"}),
		ReferenceLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_loads_total",
			Help:      "Reference table loads by outcome.",
		}, []string{"outcome"}),
		DegradedSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_sources_total",
			Help:      "Secondary reference sources replaced by empty tables.",
		}, []string{"source"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reference_load_duration_seconds",
			Help:      "Time spent reading and normalizing reference tables.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_aggregations_total",
			Help:      "Device aggregations actually computed, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(
		m.CacheRequests,
		m.ReferenceLoads,
		m.DegradedSources,
		m.LoadDuration,
		m.Aggregations,
		m.HTTPRequests,
		m.HTTPDuration,
		m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit(cache string) {
	if m != nil {
		m.CacheRequests.WithLabelValues(cache, "hit").Inc()
	}
}

func (m *Metrics) CacheMiss(cache string) {
	if m != nil {
		m.CacheRequests.WithLabelValues(cache, "miss").Inc()
	}
}

// ObserveLoad records one reference load attempt.
func (m *Metrics) ObserveLoad(seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ReferenceLoads.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(seconds)
}

func (m *Metrics) Degraded(source string) {
	if m != nil {
		m.DegradedSources.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) Aggregated(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Aggregations.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) Limited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}
