package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coinpay/transaction-service/internal/app"
)

// Metrics exposes HTTP and status-transition metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequestsTotal   *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	statusTransitions   *prometheus.CounterVec
	invalidationFailure prometheus.Counter
	balanceLookups      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transaction_status_operations_total",
			Help: "Status service operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		invalidationFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balance_cache_invalidation_failures_total",
			Help: "Balance cache removals that failed and were skipped.",
		}),
		balanceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_cache_lookups_total",
			Help: "Balance endpoint lookups by cache result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.statusTransitions,
		m.invalidationFailure,
		m.balanceLookups,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records every request under its chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordStatusTransition(operation string, outcome app.UpdateOutcome) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(operation, outcome.String()).Inc()
}

func (m *Metrics) RecordCacheInvalidationFailure() {
	if m == nil {
		return
	}
	m.invalidationFailure.Inc()
}

func (m *Metrics) BalanceLookup(cached bool) {
	if m == nil {
		return
	}
	result := "miss"
	if cached {
		result = "hit"
	}
	m.balanceLookups.WithLabelValues(result).Inc()
}
