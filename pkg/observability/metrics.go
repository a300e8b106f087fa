package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsTotal    *prometheus.CounterVec
	LoginAttemptsTotal   *prometheus.CounterVec
	TokensIssuedTotal    prometheus.Counter
	RateLimitedTotal     *prometheus.CounterVec
	AuthCheckDuration    prometheus.Histogram
	PasswordHashDuration prometheus.Histogram

	// Directory metrics
	DirectoryOperationsTotal   *prometheus.CounterVec
	DirectoryOperationDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Authentication metrics
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_auth_attempts_total",
				Help: "Bearer-token authentication attempts by outcome",
			},
			[]string{"outcome"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_login_attempts_total",
				Help: "Password login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_tokens_issued_total",
				Help: "Total number of session tokens issued",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_rate_limited_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
		AuthCheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "storefront_auth_check_duration_seconds",
				Help:    "Time spent authenticating a request, including the account reload",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		PasswordHashDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "storefront_password_hash_duration_seconds",
				Help:    "Time spent hashing or verifying passwords",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2},
			},
		),

		// Directory metrics
		DirectoryOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_directory_operations_total",
				Help: "Admin directory operations by result",
			},
			[]string{"operation", "result"},
		),
		DirectoryOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_directory_operation_duration_seconds",
				Help:    "Admin directory operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthAttemptsTotal,
		m.LoginAttemptsTotal,
		m.TokensIssuedTotal,
		m.RateLimitedTotal,
		m.AuthCheckDuration,
		m.PasswordHashDuration,
		m.DirectoryOperationsTotal,
		m.DirectoryOperationDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// ObserveAuth records one bearer-token authentication outcome.
// Safe to call on a nil *Metrics.
func (m *Metrics) ObserveAuth(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(outcome).Inc()
	m.AuthCheckDuration.Observe(d.Seconds())
}

// ObserveLogin records one password login outcome
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTokenIssued counts a newly signed session token
func (m *Metrics) ObserveTokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.Inc()
}

// ObserveRateLimited counts a request rejected by limiter
func (m *Metrics) ObserveRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// ObservePasswordHash records time spent in bcrypt
func (m *Metrics) ObservePasswordHash(d time.Duration) {
	if m == nil {
		return
	}
	m.PasswordHashDuration.Observe(d.Seconds())
}

// ObserveDirectoryOp records one directory operation and its result label
func (m *Metrics) ObserveDirectoryOp(operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.DirectoryOperationsTotal.WithLabelValues(operation, result).Inc()
	m.DirectoryOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordDBStats copies connection pool statistics into the gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// RouteLabeler maps a request to a low-cardinality path label
type RouteLabeler func(r *http.Request) string

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// label may be nil, in which case the raw URL path is used.
func HTTPMetricsMiddleware(metrics *Metrics, label RouteLabeler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if label != nil {
				path = label(r)
			}

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
