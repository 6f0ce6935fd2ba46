// Package metrics provides Prometheus instrumentation for the tenant host.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Sync loop metrics
	SyncCycles         *prometheus.CounterVec
	SyncCycleDuration  prometheus.Histogram
	SyncApplies        *prometheus.CounterVec
	SyncTenantsTracked prometheus.Gauge

	// Tenant context metrics
	ContextsBuilt  prometheus.Counter
	ContextsActive prometheus.Gauge
}

// New creates the metric set on the given registerer. Production code passes
// prometheus.DefaultRegisterer; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantsync_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantsync_http_request_duration_seconds",
				Help:    "Duration of HTTP request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantsync_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),

		SyncCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantsync_sync_cycles_total",
				Help: "Total number of sync cycles by result",
			},
			[]string{"result"},
		),

		SyncCycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tenantsync_sync_cycle_duration_seconds",
				Help:    "Duration of sync cycles",
				Buckets: prometheus.DefBuckets,
			},
		),

		SyncApplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantsync_sync_applies_total",
				Help: "Total number of remote changes applied by action",
			},
			[]string{"action"},
		),

		SyncTenantsTracked: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantsync_sync_tenants_tracked",
				Help: "Number of tenants covered by the last sync cycle",
			},
		),

		ContextsBuilt: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantsync_contexts_built_total",
				Help: "Total number of tenant contexts built",
			},
		),

		ContextsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantsync_contexts_active",
				Help: "Number of tenant contexts currently held",
			},
		),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSyncCycle records the outcome and duration of one sync cycle.
func (m *Metrics) RecordSyncCycle(result string, duration time.Duration) {
	m.SyncCycles.WithLabelValues(result).Inc()
	m.SyncCycleDuration.Observe(duration.Seconds())
}

// RecordApply records one remote change applied locally.
func (m *Metrics) RecordApply(action string) {
	m.SyncApplies.WithLabelValues(action).Inc()
}

// SetTenantsTracked updates the tenant count gauge.
func (m *Metrics) SetTenantsTracked(count int) {
	m.SyncTenantsTracked.Set(float64(count))
}

// Middleware records HTTP metrics for every request passing through it.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
