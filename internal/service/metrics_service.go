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

// MetricsSnapshot is a point-in-time summary of the engine counters.
type MetricsSnapshot struct {
	SessionCacheHitRatio     float64   `json:"session_cache_hit_ratio"`
	SessionCacheHits         uint64    `json:"session_cache_hits"`
	SessionCacheMisses       uint64    `json:"session_cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	StoreQueryCount          uint64    `json:"store_query_count"`
	AverageStoreQueryMs      float64   `json:"average_store_query_ms"`
	SelfHealed               uint64    `json:"self_healed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	queryDuration   *prometheus.HistogramVec
	contentBytes    prometheus.Counter
	selfHealed      *prometheus.CounterVec
	deltaEntries    *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	queryCount           uint64
	queryDurationTotal   uint64
	selfHealCount        uint64
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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_cache_hit_ratio",
		Help: "Ratio of session node cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_cache_hits_total",
		Help: "Total session node cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_cache_misses_total",
		Help: "Total session node cache misses",
	})

	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_query_duration_seconds",
		Help:    "Duration of node store queries by shape",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	contentBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_written_bytes_total",
		Help: "Bytes written to blob storage",
	})

	selfHealed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "self_healed_nodes_total",
		Help: "Nodes removed while resolving: orphaned references and expired nodes",
	}, []string{"reason"})

	deltaEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delta_entries_total",
		Help: "Entries emitted by the delta feed",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHitRatio, cacheHits, cacheMisses, queryDuration,
		contentBytes, selfHealed, deltaEntries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		queryDuration:   queryDuration,
		contentBytes:    contentBytes,
		selfHealed:      selfHealed,
		deltaEntries:    deltaEntries,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records session cache hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveDBQuery records store query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.queryCount, 1)
	atomic.AddUint64(&m.queryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordContentWrite counts bytes stored for file content.
func (m *MetricsService) RecordContentWrite(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.contentBytes.Add(float64(bytes))
}

// RecordSelfHeal counts a node removed during resolution.
func (m *MetricsService) RecordSelfHeal(reason string) {
	if m == nil {
		return
	}
	m.selfHealed.WithLabelValues(reason).Inc()
	atomic.AddUint64(&m.selfHealCount, 1)
}

// RecordDeltaEntries counts entries emitted by one delta page.
func (m *MetricsService) RecordDeltaEntries(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deltaEntries.WithLabelValues(kind).Add(float64(n))
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	queries := atomic.LoadUint64(&m.queryCount)
	queryDuration := atomic.LoadUint64(&m.queryDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgQueryMs float64
	if queries > 0 {
		avgQueryMs = float64(queryDuration) / float64(queries) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		SessionCacheHitRatio:     cacheRatio,
		SessionCacheHits:         hits,
		SessionCacheMisses:       misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		StoreQueryCount:          queries,
		AverageStoreQueryMs:      avgQueryMs,
		SelfHealed:               atomic.LoadUint64(&m.selfHealCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
