package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the collectors of the request pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	refreshTotal   *prometheus.CounterVec
	refreshQueue   prometheus.Gauge
	replaysTotal   prometheus.Counter
	signOutsTotal  *prometheus.CounterVec
	guardDecisions *prometheus.CounterVec

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_refresh_total",
				Help: "Token refresh calls by outcome.",
			},
			[]string{"outcome"},
		),
		refreshQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auth_refresh_pending_requests",
			Help: "Requests waiting on an in-flight token refresh.",
		}),
		replaysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_replayed_requests_total",
			Help: "Requests re-issued with a refreshed token.",
		}),
		signOutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_sign_outs_total",
				Help: "Sign-outs by origin (local or broadcast).",
			},
			[]string{"origin"},
		),
		guardDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_guard_decisions_total",
				Help: "Server-side guard decisions.",
			},
			[]string{"guard", "decision"},
		),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.refreshTotal, m.refreshQueue, m.replaysTotal, m.signOutsTotal, m.guardDecisions,
			m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		)
	}
	return m
}

func (m *Metrics) RefreshDone(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PendingRequests(n int) {
	if m == nil {
		return
	}
	m.refreshQueue.Set(float64(n))
}

func (m *Metrics) Replayed() {
	if m == nil {
		return
	}
	m.replaysTotal.Inc()
}

func (m *Metrics) SignedOut(origin string) {
	if m == nil {
		return
	}
	m.signOutsTotal.WithLabelValues(origin).Inc()
}

func (m *Metrics) GuardDecision(guard, decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(guard, decision).Inc()
}

// Handler exposes the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Instrument records RPS, latency and in-flight requests for next.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		m.httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
