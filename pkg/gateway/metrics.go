package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

// Metrics holds the Prometheus collectors for the gateway. Each gateway
// owns its registry so tests can assert on counters in isolation.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	fallbackTotal   *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance with all gateway collectors
// registered on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Backend dispatch attempts by variant and outcome",
			},
			[]string{"variant", "outcome"},
		),

		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_backend_duration_seconds",
				Help:    "Backend dispatch latency in seconds by variant",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"variant"},
		),

		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_fallback_total",
				Help: "Fallback dispatch attempts by target variant and outcome",
			},
			[]string{"variant", "outcome"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.backendDuration,
		m.fallbackTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordDispatch records one backend dispatch attempt. Primary and
// fallback attempts each count once, with their own outcome label.
func (m *Metrics) RecordDispatch(variant domain.Variant, outcome domain.Outcome, latency time.Duration, fallback bool) {
	m.requestsTotal.WithLabelValues(string(variant), string(outcome)).Inc()
	m.backendDuration.WithLabelValues(string(variant)).Observe(latency.Seconds())
	if fallback {
		m.fallbackTotal.WithLabelValues(string(variant), string(outcome)).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and duration for every endpoint.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, endpointName(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// endpointName normalizes the path to a bounded label set.
func endpointName(path string) string {
	switch path {
	case "/predict":
		return "predict"
	case "/healthz":
		return "healthz"
	case "/readyz":
		return "readyz"
	case "/metrics":
		return "metrics"
	default:
		return "unknown"
	}
}
