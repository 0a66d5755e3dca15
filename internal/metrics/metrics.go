// Package metrics exposes refresh and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
// All methods are nil-safe.
type Metrics struct {
	registry *prometheus.Registry

	refreshTotal      *prometheus.CounterVec
	refreshDuration   *prometheus.HistogramVec
	droppedEvents     *prometheus.CounterVec
	generationEvents  prometheus.Gauge
	generationBuiltAt prometheus.Gauge
	pilots            prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventmap_refresh_total",
			Help: "Total refreshes by source and result.",
		}, []string{"source", "result"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventmap_refresh_duration_seconds",
			Help:    "Histogram of refresh durations by source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventmap_feed_dropped_events_total",
			Help: "Feed records rejected at ingestion by reason.",
		}, []string{"reason"}),
		generationEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventmap_generation_events",
			Help: "Events in the current generation.",
		}),
		generationBuiltAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventmap_generation_built_timestamp_seconds",
			Help: "Unix time the current generation was built.",
		}),
		pilots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventmap_traffic_pilots",
			Help: "Pilots in the current traffic snapshot.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventmap_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventmap_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventmap_cache_hits_total",
			Help: "Total response cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventmap_cache_misses_total",
			Help: "Total response cache misses.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshTotal,
		m.refreshDuration,
		m.droppedEvents,
		m.generationEvents,
		m.generationBuiltAt,
		m.pilots,
		m.httpRequestsTotal,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Refresh records the outcome of one refresh of source.
func (m *Metrics) Refresh(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refreshTotal.WithLabelValues(source, result).Inc()
	m.refreshDuration.WithLabelValues(source).Observe(d.Seconds())
}

// Dropped adds n rejected feed records for reason.
func (m *Metrics) Dropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedEvents.WithLabelValues(reason).Add(float64(n))
}

// Generation records the size and build time of a published generation.
func (m *Metrics) Generation(events int, builtAt time.Time) {
	if m == nil {
		return
	}
	m.generationEvents.Set(float64(events))
	m.generationBuiltAt.Set(float64(builtAt.Unix()))
}

// Pilots records the size of a published traffic snapshot.
func (m *Metrics) Pilots(n int) {
	if m == nil {
		return
	}
	m.pilots.Set(float64(n))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and durations for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
