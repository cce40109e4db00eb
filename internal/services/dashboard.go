package services

import (
	"context"
	"fmt"
	"time"

	"boothmetrics/internal/analytics"
	"boothmetrics/internal/cache"
	"boothmetrics/internal/core"
	"boothmetrics/internal/ledger"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
	"boothmetrics/internal/monitor"
	"boothmetrics/internal/ratelimit"
)

// Operation names. They key the cache, the rate limits and the metrics.
const (
	OpRevenueByBooth   = "revenue_by_booth"
	OpTopServices      = "top_services"
	OpRevenueByService = "revenue_by_service"
	OpTopBooths        = "top_booths"
	OpSummary          = "summary"
	OpServiceLimits    = "service_limits"
	OpTrends           = "trends"
	OpBenchmarks       = "benchmarks"
)

// Defaults applied when a caller passes a non-positive size.
const (
	DefaultTopServices      = 5
	DefaultRevenueByService = 10
	DefaultTopBooths        = 5
	DefaultTrendDays        = 30
	DefaultAlertLimit       = 10
)

// Deps wires a Dashboard. Cache, Governor and Monitor are required.
type Deps struct {
	Store        ledger.Store
	Engine       *analytics.Engine
	Cache        *cache.Layer
	Governor     *ratelimit.Governor
	Monitor      *monitor.Monitor
	Limits       core.ServiceLimits
	Metrics      *metrics.Metrics
	Logger       *applog.Logger
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Dashboard is the entry point for every read and write the boundary layers
// perform. Queries pass the governor, then the cache, then the engine.
type Dashboard struct {
	store        ledger.Store
	engine       *analytics.Engine
	cache        *cache.Layer
	governor     *ratelimit.Governor
	monitor      *monitor.Monitor
	limits       core.ServiceLimits
	metrics      *metrics.Metrics
	logger       *applog.Logger
	events       *applog.StructuredLogger
	storeTimeout time.Duration
	now          func() time.Time
}

func NewDashboard(d Deps) *Dashboard {
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = 5 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Engine == nil {
		d.Engine = analytics.NewEngineWithClock(d.Store, d.Logger, d.Now)
	}
	return &Dashboard{
		store:        d.Store,
		engine:       d.Engine,
		cache:        d.Cache,
		governor:     d.Governor,
		monitor:      d.Monitor,
		limits:       d.Limits,
		metrics:      d.Metrics,
		logger:       d.Logger.WithComponent(applog.ComponentDashboard),
		events:       applog.NewStructuredLogger(d.Logger),
		storeTimeout: d.StoreTimeout,
		now:          d.Now,
	}
}

// query runs compute behind the governor and the cache.
func query[T any](ctx context.Context, d *Dashboard, op, client string, params []any, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := d.governor.Admit(ctx, op, client); err != nil {
		return zero, err
	}
	v, err := cache.Fetch(ctx, d.cache, op, params, compute)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// GetRevenueByBooth returns revenue per booth in first-seen order.
func (d *Dashboard) GetRevenueByBooth(ctx context.Context, client string) ([]core.GroupTotal, error) {
	return query(ctx, d, OpRevenueByBooth, client, nil, func(ctx context.Context) ([]core.GroupTotal, error) {
		return d.engine.RevenueByGroup(ctx, core.GroupByBooth)
	})
}

// GetTopServices ranks services by transaction count.
func (d *Dashboard) GetTopServices(ctx context.Context, client string, n int) ([]core.GroupCount, error) {
	n = orDefault(n, DefaultTopServices)
	return query(ctx, d, OpTopServices, client, []any{n}, func(ctx context.Context) ([]core.GroupCount, error) {
		return d.engine.TopByCount(ctx, core.GroupByService, n)
	})
}

// GetRevenueByService ranks services by revenue.
func (d *Dashboard) GetRevenueByService(ctx context.Context, client string, n int) ([]core.GroupTotal, error) {
	n = orDefault(n, DefaultRevenueByService)
	return query(ctx, d, OpRevenueByService, client, []any{n}, func(ctx context.Context) ([]core.GroupTotal, error) {
		return d.engine.TopByRevenue(ctx, core.GroupByService, n)
	})
}

// GetTopBooths ranks booths by revenue.
func (d *Dashboard) GetTopBooths(ctx context.Context, client string, n int) ([]core.GroupTotal, error) {
	n = orDefault(n, DefaultTopBooths)
	return query(ctx, d, OpTopBooths, client, []any{n}, func(ctx context.Context) ([]core.GroupTotal, error) {
		return d.engine.TopByRevenue(ctx, core.GroupByBooth, n)
	})
}

func (d *Dashboard) GetSummary(ctx context.Context, client string) (core.Summary, error) {
	return query(ctx, d, OpSummary, client, nil, d.engine.Summary)
}

// GetTrends returns daily revenue for the last days days.
// The cache key carries the UTC date so a window never outlives its day.
func (d *Dashboard) GetTrends(ctx context.Context, client string, days int) ([]core.TrendPoint, error) {
	if days < 0 || days > analytics.MaxTrendDays {
		return nil, fmt.Errorf("%w: days must be between 0 and %d", core.ErrValidation, analytics.MaxTrendDays)
	}
	days = orDefault(days, DefaultTrendDays)
	day := d.now().UTC().Format("2006-01-02")
	return query(ctx, d, OpTrends, client, []any{days, day}, func(ctx context.Context) ([]core.TrendPoint, error) {
		return d.engine.Trends(ctx, days)
	})
}

func (d *Dashboard) GetBenchmarks(ctx context.Context, client string) (core.Benchmarks, error) {
	return query(ctx, d, OpBenchmarks, client, nil, d.engine.Benchmarks)
}

// GetServiceLimits is governed but not cached: each call is a monitor check
// and may emit alerts.
func (d *Dashboard) GetServiceLimits(ctx context.Context, client string) ([]core.LimitStatus, error) {
	if err := d.governor.Admit(ctx, OpServiceLimits, client); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	return d.monitor.Check(ctx)
}

// IngestTransaction validates the input, derives revenue, appends the record
// and runs a threshold check. A failed check is logged; the transaction is
// already stored and is returned.
func (d *Dashboard) IngestTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(d.limits); err != nil {
		d.metrics.TransactionIngested(err)
		return core.Transaction{}, err
	}

	tx := core.NewTransaction(in, d.now())

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	stored, err := d.store.AppendTransaction(sctx, tx)
	cancel()
	if err != nil {
		d.metrics.TransactionIngested(err)
		return core.Transaction{}, fmt.Errorf("ingest transaction: %w", err)
	}
	d.metrics.TransactionIngested(nil)
	d.events.LogTransactionIngested(ctx, stored.ID, stored.Booth, stored.Service, stored.Amount, stored.Rate, stored.Revenue)

	cctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	if _, err := d.monitor.Check(cctx); err != nil {
		d.logger.ErrorContext(ctx, "Threshold check after ingestion failed",
			applog.FieldOperation, applog.OpCheck,
			applog.FieldError, err)
	}

	return stored, nil
}

// ListUnreadAlerts returns unread alerts, newest first.
func (d *Dashboard) ListUnreadAlerts(ctx context.Context, limit int) ([]core.Alert, error) {
	limit = orDefault(limit, DefaultAlertLimit)
	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()

	alerts, err := d.store.ListUnreadAlerts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unread alerts: %w", err)
	}
	if alerts == nil {
		alerts = []core.Alert{}
	}
	return alerts, nil
}

// MarkAlertRead returns core.ErrNotFound for an unknown id.
func (d *Dashboard) MarkAlertRead(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()

	if err := d.store.MarkAlertRead(ctx, id); err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	d.logger.InfoContext(ctx, "Alert marked as read",
		applog.FieldAlertID, id,
		applog.FieldOperation, applog.OpMarkRead)
	return nil
}

// Ping reports whether the ledger answers within the store timeout.
func (d *Dashboard) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	return d.store.Ping(ctx)
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
