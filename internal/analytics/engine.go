package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"boothmetrics/internal/core"
	"boothmetrics/internal/ledger"
	applog "boothmetrics/internal/log"
)

// Engine reads the ledger and applies the aggregation functions.
// It holds no state besides its collaborators.
type Engine struct {
	reader ledger.TransactionReader
	now    func() time.Time
	logger *applog.Logger
}

func NewEngine(reader ledger.TransactionReader, logger *applog.Logger) *Engine {
	return NewEngineWithClock(reader, logger, time.Now)
}

// NewEngineWithClock fixes the reference time used for trend windows.
func NewEngineWithClock(reader ledger.TransactionReader, logger *applog.Logger, now func() time.Time) *Engine {
	return &Engine{
		reader: reader,
		now:    now,
		logger: logger.WithComponent(applog.ComponentAnalytics),
	}
}

func (e *Engine) RevenueByGroup(ctx context.Context, key core.GroupKey) ([]core.GroupTotal, error) {
	txs, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return RevenueByGroup(txs, key), nil
}

func (e *Engine) TopByRevenue(ctx context.Context, key core.GroupKey, n int) ([]core.GroupTotal, error) {
	txs, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return TopByRevenue(txs, key, n), nil
}

func (e *Engine) TopByCount(ctx context.Context, key core.GroupKey, n int) ([]core.GroupCount, error) {
	txs, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return TopByCount(txs, key, n), nil
}

func (e *Engine) Summary(ctx context.Context) (core.Summary, error) {
	txs, err := e.load(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return Summarize(txs), nil
}

// Trends only reads the rows inside the window.
func (e *Engine) Trends(ctx context.Context, days int) ([]core.TrendPoint, error) {
	if days < 0 || days > MaxTrendDays {
		return nil, fmt.Errorf("%w: days must be between 0 and %d", core.ErrValidation, MaxTrendDays)
	}
	now := e.now().UTC()
	from := now.AddDate(0, 0, -days)

	txs, err := e.reader.ListTransactionsBetween(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("read ledger window: %w", err)
	}
	if err := checkRevenue(txs); err != nil {
		return nil, err
	}
	return Trends(txs, days, now), nil
}

func (e *Engine) Benchmarks(ctx context.Context) (core.Benchmarks, error) {
	txs, err := e.load(ctx)
	if err != nil {
		return core.Benchmarks{}, err
	}
	return ComputeBenchmarks(txs), nil
}

func (e *Engine) load(ctx context.Context) ([]core.Transaction, error) {
	start := time.Now()
	txs, err := e.reader.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if err := checkRevenue(txs); err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "Ledger scanned", "rows", len(txs), applog.FieldDuration, time.Since(start).Milliseconds())
	return txs, nil
}

// checkRevenue rejects rows a well-behaved ledger never returns.
func checkRevenue(txs []core.Transaction) error {
	for _, t := range txs {
		if math.IsNaN(t.Revenue) || math.IsInf(t.Revenue, 0) {
			return fmt.Errorf("%w: transaction %d has non-finite revenue", core.ErrComputation, t.ID)
		}
	}
	return nil
}
