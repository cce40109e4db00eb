// Package metrics holds the Prometheus collectors of boothmetrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	CacheComputationsTotal *prometheus.CounterVec

	// Governor metrics
	RateLimitedTotal *prometheus.CounterVec

	// Business metrics
	TransactionsIngestedTotal *prometheus.CounterVec
	AlertsEmittedTotal        *prometheus.CounterVec
	AlertWriteFailuresTotal   prometheus.Counter
	MonitorChecksTotal        *prometheus.CounterVec
}

// New creates and registers all metrics on registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boothmetrics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_cache_hits_total",
				Help: "Cache lookups answered from a live entry",
			},
			[]string{"operation"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_cache_misses_total",
				Help: "Cache lookups that found no live entry",
			},
			[]string{"operation"},
		),
		CacheComputationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_cache_computations_total",
				Help: "Aggregations executed to fill the cache",
			},
			[]string{"operation", "status"},
		),

		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_rate_limited_total",
				Help: "Requests rejected by the access governor",
			},
			[]string{"operation"},
		),

		TransactionsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_transactions_ingested_total",
				Help: "Ingestion attempts by outcome",
			},
			[]string{"status"},
		),
		AlertsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_alerts_emitted_total",
				Help: "Threshold alerts written to the ledger",
			},
			[]string{"severity"},
		),
		AlertWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "boothmetrics_alert_write_failures_total",
				Help: "Threshold alerts that could not be written and will be retried",
			},
		),
		MonitorChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boothmetrics_monitor_checks_total",
				Help: "Threshold monitor runs by outcome",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheComputationsTotal,
		m.RateLimitedTotal,
		m.TransactionsIngestedTotal,
		m.AlertsEmittedTotal,
		m.AlertWriteFailuresTotal,
		m.MonitorChecksTotal,
	)

	return m
}

func (m *Metrics) CacheHit(op string) {
	if m != nil {
		m.CacheHitsTotal.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) CacheMiss(op string) {
	if m != nil {
		m.CacheMissesTotal.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) CacheComputation(op string, err error) {
	if m != nil {
		m.CacheComputationsTotal.WithLabelValues(op, status(err)).Inc()
	}
}

func (m *Metrics) RateLimited(op string) {
	if m != nil {
		m.RateLimitedTotal.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) TransactionIngested(err error) {
	if m != nil {
		m.TransactionsIngestedTotal.WithLabelValues(status(err)).Inc()
	}
}

func (m *Metrics) AlertEmitted(severity string) {
	if m != nil {
		m.AlertsEmittedTotal.WithLabelValues(severity).Inc()
	}
}

func (m *Metrics) AlertWriteFailed() {
	if m != nil {
		m.AlertWriteFailuresTotal.Inc()
	}
}

func (m *Metrics) MonitorChecked(err error) {
	if m != nil {
		m.MonitorChecksTotal.WithLabelValues(status(err)).Inc()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments requests. The chi route pattern is used as the
// label so path parameters do not explode cardinality.
func HTTPMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
