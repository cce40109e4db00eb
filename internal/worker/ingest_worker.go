// Package worker runs the background side of the service: it ingests
// transactions from the broker and checks service limits on a schedule.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"boothmetrics/internal/amqp"
	"boothmetrics/internal/core"
	applog "boothmetrics/internal/log"
)

// Ingester stores a validated transaction and returns it with its id.
type Ingester interface {
	IngestTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
}

// Checker runs one threshold check.
type Checker interface {
	Check(ctx context.Context) ([]core.LimitStatus, error)
}

// IngestWorker turns queue messages into ledger records.
type IngestWorker struct {
	ingester Ingester
	logger   *applog.Logger
}

func NewIngestWorker(ingester Ingester, logger *applog.Logger) *IngestWorker {
	return &IngestWorker{
		ingester: ingester,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleTransactionMessage ingests one message. Validation errors are
// returned unchanged so the consumer drops the message instead of requeuing it.
func (w *IngestWorker) HandleTransactionMessage(ctx context.Context, msg *amqp.TransactionMessage) error {
	w.logger.DebugContext(ctx, "Processing transaction message",
		applog.FieldBooth, msg.Booth,
		applog.FieldService, msg.Service)

	tx, err := w.ingester.IngestTransaction(ctx, msg.ToInput())
	if err != nil {
		return fmt.Errorf("ingest message: %w", err)
	}

	w.logger.InfoContext(ctx, "Transaction message ingested",
		"id", tx.ID,
		applog.FieldBooth, tx.Booth,
		applog.FieldRevenue, tx.Revenue)
	return nil
}

// MonitorScheduler runs the threshold check on a cron schedule.
type MonitorScheduler struct {
	cron    *cron.Cron
	checker Checker
	timeout time.Duration
	logger  *applog.Logger
}

// NewMonitorScheduler accepts standard cron expressions and descriptors
// such as "@every 1m".
func NewMonitorScheduler(schedule string, checker Checker, timeout time.Duration, logger *applog.Logger) (*MonitorScheduler, error) {
	s := &MonitorScheduler{
		cron:    cron.New(),
		checker: checker,
		timeout: timeout,
		logger:  logger.WithComponent(applog.ComponentWorker),
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule monitor check %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce performs a single bounded check and logs its outcome.
func (s *MonitorScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	statuses, err := s.checker.Check(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled threshold check failed",
			applog.FieldOperation, applog.OpCheck,
			applog.FieldError, err)
		return
	}

	low := 0
	for _, st := range statuses {
		if st.IsLow {
			low++
		}
	}
	s.logger.DebugContext(ctx, "Scheduled threshold check completed",
		applog.FieldOperation, applog.OpCheck,
		"services", len(statuses),
		"low", low,
		applog.FieldDuration, time.Since(start).Milliseconds())
}

func (s *MonitorScheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running check until ctx is done.
func (s *MonitorScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Monitor scheduler stop timed out")
	}
}
