package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "registration"

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// MetricsService owns a private Prometheus registry with the HTTP, cache,
// store and registration collectors. A nil *MetricsService records nothing.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration   *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	cacheDuration  *prometheus.HistogramVec
	storeDuration  *prometheus.HistogramVec
	operations     *prometheus.CounterVec
	snapshotWrites *prometheus.CounterVec
}

// NewMetricsService registers every collector on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &MetricsService{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "path", "status"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "report_cache_lookups_total",
			Help:      "Report cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		cacheDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "report_cache_duration_seconds",
			Help:      "Latency of report cache calls by operation.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}, []string{"op"}),
		storeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "store_duration_seconds",
			Help:      "Duration of repository reads backing reports.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Registration operations by outcome code.",
		}, []string{"operation", "outcome"}),
		snapshotWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_writes_total",
			Help:      "JSON snapshot writes by file and outcome.",
		}, []string{"target", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry is exposed for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, path, code).Inc()
}

// RecordCacheLookup counts a report cache read by result.
func (m *MetricsService) RecordCacheLookup(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheDuration.WithLabelValues("get").Observe(duration.Seconds())
}

// ObserveCacheCall times a report cache write or invalidation.
func (m *MetricsService) ObserveCacheCall(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveStoreQuery records how long a repository read took.
func (m *MetricsService) ObserveStoreQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordOperation counts a registration operation. Outcome is "ok" or the
// error code that stopped it.
func (m *MetricsService) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordSnapshotWrite counts a snapshot file write.
func (m *MetricsService) RecordSnapshotWrite(target string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.snapshotWrites.WithLabelValues(target, outcome).Inc()
}
