package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"method", "endpoint"},
	)

	// Contact form metrics
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_form_submissions_total",
			Help: "Total number of contact form submit attempts by outcome",
		},
		[]string{"outcome"}, // success, invalid, verification_required, rejected, transport_error
	)

	validationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_form_validation_errors_total",
			Help: "Total number of field validation failures on submit",
		},
		[]string{"field"},
	)

	submissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contact_form_submission_duration_seconds",
			Help:    "Time spent waiting for the submission endpoint",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contact_form_sessions_active",
			Help: "Number of mounted contact form sessions",
		},
	)
)

// Outcome labels for RecordSubmission
const (
	OutcomeSuccess              = "success"
	OutcomeInvalid              = "invalid"
	OutcomeVerificationRequired = "verification_required"
	OutcomeRejected             = "rejected"
	OutcomeTransportError       = "transport_error"
	OutcomeBusy                 = "busy"
)

// PrometheusMiddleware creates a middleware that records Prometheus metrics.
// Routes are labelled by pattern so session ids don't explode cardinality.
func PrometheusMiddleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// Wrap response writer to capture status code and size
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		endpoint := route(r)
		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint, statusCode).Observe(duration)
		httpResponseSize.WithLabelValues(r.Method, endpoint).Observe(float64(wrapped.size))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// RecordSubmission records the outcome of a submit attempt
func RecordSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidationError records a field that blocked a submit
func RecordValidationError(field string) {
	validationErrorsTotal.WithLabelValues(field).Inc()
}

// ObserveSubmissionDuration records how long the endpoint took to answer
func ObserveSubmissionDuration(d time.Duration) {
	submissionDuration.Observe(d.Seconds())
}

// SessionMounted increments the active session gauge
func SessionMounted() {
	sessionsActive.Inc()
}

// SessionUnmounted decrements the active session gauge
func SessionUnmounted() {
	sessionsActive.Dec()
}
