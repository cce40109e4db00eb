// Package http exposes the dashboard over a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"boothmetrics/internal/core"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
	"boothmetrics/internal/middleware/security"
	"boothmetrics/internal/middleware/trace"
)

// Dashboard is what the handlers call. Query methods take the client
// identity the access governor keys on.
type Dashboard interface {
	GetRevenueByBooth(ctx context.Context, client string) ([]core.GroupTotal, error)
	GetTopServices(ctx context.Context, client string, n int) ([]core.GroupCount, error)
	GetRevenueByService(ctx context.Context, client string, n int) ([]core.GroupTotal, error)
	GetTopBooths(ctx context.Context, client string, n int) ([]core.GroupTotal, error)
	GetSummary(ctx context.Context, client string) (core.Summary, error)
	GetServiceLimits(ctx context.Context, client string) ([]core.LimitStatus, error)
	GetTrends(ctx context.Context, client string, days int) ([]core.TrendPoint, error)
	GetBenchmarks(ctx context.Context, client string) (core.Benchmarks, error)
	ListUnreadAlerts(ctx context.Context, limit int) ([]core.Alert, error)
	MarkAlertRead(ctx context.Context, id int64) error
	IngestTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	Ping(ctx context.Context) error
}

// Options configures the server. Gatherer enables /metrics.
type Options struct {
	TrustedProxies []string
	Logger         *applog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
}

type Server struct {
	http.Server
	dashboard Dashboard
	clientIPs *ClientIPExtractor
	logger    *applog.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, d Dashboard, opts Options) (*Server, error) {
	clientIPs, err := NewClientIPExtractor(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		dashboard: d,
		clientIPs: clientIPs,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(clientIPs.ClientIP, logger).Middleware)
	r.Use(applog.Middleware(logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(metrics.HTTPMiddleware(opts.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if opts.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/revenue_by_booth", s.handleRevenueByBooth)
		r.Get("/top_services", s.handleTopServices)
		r.Get("/revenue_by_service", s.handleRevenueByService)
		r.Get("/top_booths", s.handleTopBooths)
		r.Get("/summary", s.handleSummary)
		r.Get("/service_limits", s.handleServiceLimits)
		r.Get("/trends", s.handleTrends)
		r.Get("/benchmarks", s.handleBenchmarks)

		r.Get("/alerts", s.handleListAlerts)
		r.Post("/alerts/{id}/read", s.handleMarkAlertRead)

		r.Post("/transactions", s.handleIngest)
	})

	s.Handler = r
	return s, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready only when the ledger answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboard.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		writeError(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
