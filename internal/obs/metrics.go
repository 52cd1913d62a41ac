package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every endpoint.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Access lifecycle metrics. Schedule failures are the alarm signal for
// orphaned access: a grant succeeded but no revocation timer exists.
var (
	grantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zsp_access_grants_total",
			Help: "Access grant attempts by identity type and result.",
		},
		[]string{"identity_type", "result"},
	)

	revocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zsp_access_revocations_total",
			Help: "Scheduled revocation executions by result.",
		},
		[]string{"result"},
	)

	scheduleFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zsp_revocation_schedule_failures_total",
		Help: "Grants whose revocation could not be durably scheduled (orphaned access).",
	})

	revocationAlarms = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zsp_revocation_alarms_total",
		Help: "Revocations that exceeded the retry alarm threshold.",
	})

	pendingRevocations = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zsp_pending_revocations",
		Help: "Scheduled revocations not yet completed.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		grantsTotal, revocationsTotal, scheduleFailures,
		revocationAlarms, pendingRevocations,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGrant records a grant attempt outcome.
func ObserveGrant(identityType, result string) {
	grantsTotal.WithLabelValues(identityType, result).Inc()
}

// ObserveRevocation records a revocation execution outcome.
func ObserveRevocation(result string) {
	revocationsTotal.WithLabelValues(result).Inc()
}

// ObserveScheduleFailure counts a grant left without a durable revocation timer.
func ObserveScheduleFailure() { scheduleFailures.Inc() }

// ObserveRevocationAlarm counts a revocation crossing the retry alarm threshold.
func ObserveRevocationAlarm() { revocationAlarms.Inc() }

// SetPendingRevocations publishes the current scheduler backlog.
func SetPendingRevocations(n int) { pendingRevocations.Set(float64(n)) }

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
