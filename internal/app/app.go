// Package app assembles the ledger, the engine and its guards from
// configuration. Both binaries start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"boothmetrics/internal/backend"
	"boothmetrics/internal/cache"
	"boothmetrics/internal/config"
	"boothmetrics/internal/core"
	"boothmetrics/internal/ledger"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
	"boothmetrics/internal/monitor"
	"boothmetrics/internal/ratelimit"
	"boothmetrics/internal/seed"
	"boothmetrics/internal/services"
)

// Options carries collaborators created by the caller.
type Options struct {
	// Notifier receives stored alerts. Nil disables publishing.
	Notifier monitor.Notifier
	// Factory overrides the backend factory. Tests only.
	Factory backend.Factory
}

type App struct {
	Config    *config.Config
	Logger    *applog.Logger
	Store     ledger.Store
	Limits    core.ServiceLimits
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Monitor   *monitor.Monitor
	Dashboard *services.Dashboard

	closers []func() error
}

// New wires every component. On error, whatever was already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.wire(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Info("Application wired",
		"backend", cfg.DataBackend,
		"services", a.Limits.Len(),
		"shared_rate_limit", cfg.RedisURL != "",
		"alert_publishing", opts.Notifier != nil)
	return a, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg, logger := a.Config, a.Logger

	var err error
	a.Limits, err = config.LoadServiceLimits(cfg.ServiceLimitsFile)
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger)
	}
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	a.Store = res.Store
	if res.Cleanup != nil {
		a.closers = append(a.closers, res.Cleanup)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	limiter, err := a.newLimiter(ctx)
	if err != nil {
		return err
	}

	monitorOpts := []monitor.Option{
		monitor.WithThresholds(cfg.WarnFraction, cfg.CriticalFraction),
		monitor.WithMetrics(a.Metrics),
		monitor.WithLogger(logger),
	}
	if opts.Notifier != nil {
		monitorOpts = append(monitorOpts, monitor.WithNotifier(opts.Notifier))
	}
	a.Monitor = monitor.New(a.Store, a.Store, a.Limits, monitorOpts...)

	layer := cache.NewLayer(cache.Config{
		DefaultTTL:     cfg.QueryCacheTTL,
		TTLs:           map[string]time.Duration{services.OpSummary: cfg.SummaryCacheTTL},
		MaxEntries:     cfg.CacheMaxEntries,
		ComputeTimeout: cfg.StoreTimeout,
	}, a.Metrics, logger)

	governor := ratelimit.NewGovernor(limiter, ratelimit.Config{
		RequestsPerWindow: cfg.RateLimitPerMinute,
	}, a.Metrics, logger)

	a.Dashboard = services.NewDashboard(services.Deps{
		Store:        a.Store,
		Cache:        layer,
		Governor:     governor,
		Monitor:      a.Monitor,
		Limits:       a.Limits,
		Metrics:      a.Metrics,
		Logger:       logger,
		StoreTimeout: cfg.StoreTimeout,
	})
	return nil
}

// newLimiter prefers Redis so limits hold across instances.
func (a *App) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if a.Config.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, a.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return ratelimit.NewRedisLimiter(client, a.Config.RateLimitWindow, "boothmetrics:ratelimit"), nil
	}

	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{Window: a.Config.RateLimitWindow})
	a.closers = append(a.closers, func() error {
		limiter.Stop()
		return nil
	})
	return limiter, nil
}

// Seed loads SEED_CSV_PATH into an empty ledger. It is a no-op without a path.
func (a *App) Seed(ctx context.Context) (seed.Result, error) {
	if a.Config.SeedCSVPath == "" {
		return seed.Result{Skipped: true}, nil
	}
	return seed.NewLoader(a.Dashboard, a.Store, a.Logger).LoadIfEmpty(ctx, a.Config.SeedCSVPath)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
