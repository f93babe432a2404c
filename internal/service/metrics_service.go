package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	computeDuration *prometheus.HistogramVec
	studentOutcomes *prometheus.CounterVec
	publications    *prometheus.CounterVec
	unmatchedGrades prometheus.Counter
	dispatchPending prometheus.Gauge

	cacheHitCount   uint64
	cacheMissCount  uint64
	requestCount    uint64
	computedCount   uint64
	failedCount     uint64
	computeRunCount uint64
}

// MetricsSnapshot is a JSON-friendly summary of the counters above.
type MetricsSnapshot struct {
	CacheHitRatio    float64   `json:"cache_hit_ratio"`
	CacheHits        uint64    `json:"cache_hits"`
	CacheMisses      uint64    `json:"cache_misses"`
	RequestsTotal    uint64    `json:"requests_total"`
	ComputeRuns      uint64    `json:"compute_runs"`
	StudentsComputed uint64    `json:"students_computed"`
	StudentsFailed   uint64    `json:"students_failed"`
	Goroutines       int       `json:"goroutines"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	computeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "results_compute_duration_seconds",
		Help:    "Duration of result computations",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation", "outcome"})

	studentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "results_students_total",
		Help: "Students processed by result computation",
	}, []string{"outcome"})

	publications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "results_publication_rows_total",
		Help: "Term result rows whose publication flag was changed",
	}, []string{"action"})

	unmatchedGrades := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "results_unmatched_grade_lookups_total",
		Help: "Percentage lookups that hit no band or several bands of the grade scale",
	})

	dispatchPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "results_dispatch_pending",
		Help: "Computations waiting in the dispatch queue",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		computeDuration, studentOutcomes, publications, unmatchedGrades, dispatchPending, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		computeDuration: computeDuration,
		studentOutcomes: studentOutcomes,
		publications:    publications,
		unmatchedGrades: unmatchedGrades,
		dispatchPending: dispatchPending,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveComputation records one classroom or student computation.
func (m *MetricsService) ObserveComputation(operation string, computed, failed int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case failed > 0:
		outcome = "partial"
	}
	m.computeDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
	m.studentOutcomes.WithLabelValues("computed").Add(float64(computed))
	m.studentOutcomes.WithLabelValues("failed").Add(float64(failed))
	atomic.AddUint64(&m.computeRunCount, 1)
	atomic.AddUint64(&m.computedCount, uint64(computed))
	atomic.AddUint64(&m.failedCount, uint64(failed))
}

// ObservePublication counts rows flipped by publish or unpublish.
func (m *MetricsService) ObservePublication(action string, affected int64) {
	if m == nil {
		return
	}
	m.publications.WithLabelValues(action).Add(float64(affected))
}

// IncUnmatchedGrade counts a grade lookup that did not resolve to exactly one band.
func (m *MetricsService) IncUnmatchedGrade() {
	if m == nil {
		return
	}
	m.unmatchedGrades.Inc()
}

// SetDispatchPending reports the dispatch queue depth.
func (m *MetricsService) SetDispatchPending(n int) {
	if m == nil {
		return
	}
	m.dispatchPending.Set(float64(n))
}

// Snapshot returns aggregated metrics.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return MetricsSnapshot{
		CacheHitRatio:    ratio,
		CacheHits:        hits,
		CacheMisses:      misses,
		RequestsTotal:    atomic.LoadUint64(&m.requestCount),
		ComputeRuns:      atomic.LoadUint64(&m.computeRunCount),
		StudentsComputed: atomic.LoadUint64(&m.computedCount),
		StudentsFailed:   atomic.LoadUint64(&m.failedCount),
		Goroutines:       runtime.NumGoroutine(),
		GeneratedAt:      time.Now().UTC(),
	}
}
