// Package metrics exposes Prometheus collectors for the WebDAV server.
//
// A disabled server uses the no-op implementation so handlers never need
// to check whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "derpycloud"

// Metrics records request and lock statistics.
type Metrics interface {
	// ObserveRequest records one finished WebDAV request.
	ObserveRequest(method string, status int, elapsed time.Duration)
	// RequestStarted and RequestFinished track in-flight requests.
	RequestStarted(method string)
	RequestFinished(method string)
	// AuthFailed counts rejected credentials by reason.
	AuthFailed(reason string)
	// RateLimited counts requests rejected by the per-client limiter.
	RateLimited()
	SetActiveLocks(n int)
	SetUserSpaces(n int)
	// LocksReaped counts expired locks removed by the reaper.
	LocksReaped(n int)
	// Handler serves the collected metrics in the Prometheus text format.
	Handler() http.Handler
}

type promMetrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	authFailures     *prometheus.CounterVec
	rateLimited      prometheus.Counter
	activeLocks      prometheus.Gauge
	userSpaces       prometheus.Gauge
	locksReaped      prometheus.Counter
}

// New creates a Prometheus backed Metrics with its own registry. Process and
// Go runtime collectors are registered alongside.
func New() Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	return &promMetrics{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webdav_requests_total",
				Help:      "Total number of WebDAV requests by method and status",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webdav_request_duration_milliseconds",
				Help:      "Duration of WebDAV requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"method"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "webdav_requests_in_flight",
				Help:      "Current number of WebDAV requests being processed",
			},
			[]string{"method"},
		),
		authFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Rejected authentication attempts by reason",
			},
			[]string{"reason"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the per-client rate limiter",
			},
		),
		activeLocks: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "webdav_active_locks",
				Help:      "Number of locks currently held across all user spaces",
			},
		),
		userSpaces: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "user_spaces",
				Help:      "Number of user spaces opened since start",
			},
		),
		locksReaped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webdav_locks_reaped_total",
				Help:      "Expired locks removed by the background reaper",
			},
		),
	}
}

func (m *promMetrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(float64(elapsed.Microseconds()) / 1000)
}

func (m *promMetrics) RequestStarted(method string) {
	m.requestsInFlight.WithLabelValues(method).Inc()
}

func (m *promMetrics) RequestFinished(method string) {
	m.requestsInFlight.WithLabelValues(method).Dec()
}

func (m *promMetrics) AuthFailed(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *promMetrics) RateLimited() {
	m.rateLimited.Inc()
}

func (m *promMetrics) SetActiveLocks(n int) {
	m.activeLocks.Set(float64(n))
}

func (m *promMetrics) SetUserSpaces(n int) {
	m.userSpaces.Set(float64(n))
}

func (m *promMetrics) LocksReaped(n int) {
	m.locksReaped.Add(float64(n))
}

func (m *promMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

type noopMetrics struct{}

// NewNoop returns a Metrics that discards everything.
func NewNoop() Metrics {
	return noopMetrics{}
}

func (noopMetrics) ObserveRequest(string, int, time.Duration) {}
func (noopMetrics) RequestStarted(string)                     {}
func (noopMetrics) RequestFinished(string)                    {}
func (noopMetrics) AuthFailed(string)                         {}
func (noopMetrics) RateLimited()                              {}
func (noopMetrics) SetActiveLocks(int)                        {}
func (noopMetrics) SetUserSpaces(int)                         {}
func (noopMetrics) LocksReaped(int)                           {}

func (noopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Metrics collection is disabled\n"))
	})
}
