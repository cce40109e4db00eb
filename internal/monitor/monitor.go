// Package monitor compares cumulative service revenue against configured
// ceilings and records an alert each time a service crosses a threshold.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"boothmetrics/internal/analytics"
	"boothmetrics/internal/core"
	"boothmetrics/internal/ledger"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
)

const (
	DefaultWarnFraction     = 0.90
	DefaultCriticalFraction = 1.00
)

// Notifier receives every alert after it has been stored.
type Notifier interface {
	NotifyAlert(ctx context.Context, a core.Alert) error
}

type Option func(*Monitor)

// WithThresholds sets the usage fractions for warning and critical alerts.
func WithThresholds(warn, critical float64) Option {
	return func(m *Monitor) {
		m.warn = warn
		m.critical = critical
	}
}

func WithNotifier(n Notifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

func WithLogger(l *applog.Logger) Option {
	return func(m *Monitor) { m.logger = l.WithComponent(applog.ComponentMonitor) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor keeps the last alerted severity per service. Check is serialized,
// so two concurrent checks cannot both emit for the same crossing.
type Monitor struct {
	reader ledger.TransactionReader
	alerts ledger.AlertWriter
	limits core.ServiceLimits

	warn     float64
	critical float64

	notifier Notifier
	metrics  *metrics.Metrics
	logger   *applog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]core.Severity
}

func New(reader ledger.TransactionReader, alerts ledger.AlertWriter, limits core.ServiceLimits, opts ...Option) *Monitor {
	m := &Monitor{
		reader:   reader,
		alerts:   alerts,
		limits:   limits,
		warn:     DefaultWarnFraction,
		critical: DefaultCriticalFraction,
		logger:   applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentMonitor),
		now:      time.Now,
		last:     make(map[string]core.Severity),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check reads the ledger, reports every configured service and emits an
// alert for each service whose level rose since the previous check.
// A failed ledger read returns an error and leaves the tracked state alone.
// A failed alert write is logged and the service's state is not advanced,
// so the next check tries again.
func (m *Monitor) Check(ctx context.Context) ([]core.LimitStatus, error) {
	statuses, emitted, err := m.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	// Published after the lock is released.
	m.notify(ctx, emitted)
	return statuses, nil
}

func (m *Monitor) evaluate(ctx context.Context) ([]core.LimitStatus, []core.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs, err := m.reader.ListTransactions(ctx)
	if err != nil {
		m.metrics.MonitorChecked(err)
		if !errors.Is(err, core.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
		}
		return nil, nil, fmt.Errorf("check service limits: %w", err)
	}

	usage := make(map[string]float64)
	for _, g := range analytics.RevenueByGroup(txs, core.GroupByService) {
		usage[g.Group] = g.Revenue
	}
	statuses := Statuses(usage, m.limits, m.warn)

	var emitted []core.Alert
	for _, st := range statuses {
		level := m.level(st)
		prev := m.last[st.Service]
		if level.Rank() <= prev.Rank() {
			// Same or lower: no alert. Recording the drop lets a later rise alert again.
			m.last[st.Service] = level
			continue
		}
		if alert, ok := m.emit(ctx, st, level); ok {
			emitted = append(emitted, alert)
		}
	}

	m.metrics.MonitorChecked(nil)
	return statuses, emitted, nil
}

// LastSeverity reports the level recorded for a service by the last check.
func (m *Monitor) LastSeverity(service string) core.Severity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[service]
}

// emit stores the alert and advances the service's level. It reports false
// when the write failed.
func (m *Monitor) emit(ctx context.Context, st core.LimitStatus, level core.Severity) (core.Alert, bool) {
	alert, err := m.alerts.CreateAlert(ctx, core.NewServiceLimitAlert(st, level, m.now()))
	if err != nil {
		m.metrics.AlertWriteFailed()
		m.logger.ErrorContext(ctx, "Failed to store threshold alert",
			applog.FieldService, st.Service,
			applog.FieldSeverity, level,
			applog.FieldError, err)
		return core.Alert{}, false
	}
	m.last[st.Service] = level
	m.metrics.AlertEmitted(string(level))
	m.logger.WarnContext(ctx, "Threshold alert emitted",
		applog.FieldAlertID, alert.ID,
		applog.FieldService, st.Service,
		applog.FieldSeverity, level,
		"usage_percentage", st.UsagePercentage)
	return alert, true
}

func (m *Monitor) notify(ctx context.Context, alerts []core.Alert) {
	if m.notifier == nil {
		return
	}
	for _, alert := range alerts {
		if err := m.notifier.NotifyAlert(ctx, alert); err != nil {
			m.logger.WarnContext(ctx, "Failed to publish threshold alert",
				applog.FieldAlertID, alert.ID,
				applog.FieldError, err)
		}
	}
}

func (m *Monitor) level(st core.LimitStatus) core.Severity {
	if st.Limit <= 0 {
		return core.SeverityNone
	}
	if st.CurrentUsage >= st.Limit*m.critical {
		return core.SeverityCritical
	}
	if st.IsLow {
		return core.SeverityWarning
	}
	return core.SeverityNone
}

// Statuses reports usage for every configured service in name order.
// A service is low when its remaining headroom is under (1 - warn) of its
// ceiling. Usage percentage is 0 for a zero ceiling.
func Statuses(usage map[string]float64, limits core.ServiceLimits, warn float64) []core.LimitStatus {
	out := make([]core.LimitStatus, 0, limits.Len())
	for _, service := range limits.Services() {
		limit, _ := limits.Limit(service)
		used := usage[service]
		remaining := limit - used

		var pct float64
		if limit > 0 {
			pct = used / limit * 100
		}
		out = append(out, core.LimitStatus{
			Service:         service,
			CurrentUsage:    used,
			Limit:           limit,
			Remaining:       remaining,
			UsagePercentage: pct,
			IsLow:           remaining < limit-limit*warn,
		})
	}
	return out
}
