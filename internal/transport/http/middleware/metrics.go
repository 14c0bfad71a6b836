package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "signup_service"

var (
	requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	// signup latency is dominated by bcrypt and the CRM round trip, so the
	// buckets reach further than the client default
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.ExponentialBucketsRange(0.005, 15, 12),
	}, []string{"method", "path"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_in_flight",
		Help:      "Requests currently being served.",
	})

	// SignupsTotal counts signup attempts by outcome: success,
	// validation_failed, user_already_exists, rate_limited or error.
	SignupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "signups_total",
		Help:      "Signup attempts by outcome.",
	}, []string{"outcome"})

	// CRMSyncTotal counts the CRM status attached to each created account.
	CRMSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "signup_crm_sync_total",
		Help:      "CRM sync status for created accounts.",
	}, []string{"status"})
)

// Metrics records request count, latency and concurrency per chi route.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight.Inc()
		defer inFlight.Dec()

		rec := newStatusRecorder(w)
		began := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(began)

		// the pattern is only known once chi has routed the request
		path := routePattern(r)
		requestCount.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		requestLatency.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
	})
}

// routePattern labels by chi pattern so ids in paths do not explode
// cardinality.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}

// statusRecorder remembers the first status written and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.written {
		s.written = true
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	s.written = true
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
