package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"boothmetrics/internal/amqp"
	"boothmetrics/internal/core"
	applog "boothmetrics/internal/log"
)

type fakeIngester struct {
	got core.TransactionInput
	err error
}

func (f *fakeIngester) IngestTransaction(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	f.got = in
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	return core.NewTransaction(in, time.Now()), nil
}

type countingChecker struct {
	calls atomic.Int32
	err   error
}

func (c *countingChecker) Check(context.Context) ([]core.LimitStatus, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []core.LimitStatus{{Service: "FNB", IsLow: true}}, nil
}

func TestHandleTransactionMessage(t *testing.T) {
	ing := &fakeIngester{}
	w := NewIngestWorker(ing, applog.Discard())

	msg := &amqp.TransactionMessage{Booth: "Wina1", Service: "FNB", Amount: 200, Rate: 0.1}
	if err := w.HandleTransactionMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleTransactionMessage: %v", err)
	}
	if ing.got.Booth != "Wina1" || ing.got.Amount != 200 {
		t.Errorf("ingester received %+v", ing.got)
	}
}

func TestHandleTransactionMessageKeepsErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", core.ErrValidation},
		{"store", core.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewIngestWorker(&fakeIngester{err: tt.err}, applog.Discard())
			err := w.HandleTransactionMessage(context.Background(), &amqp.TransactionMessage{})
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestMonitorScheduler(t *testing.T) {
	if _, err := NewMonitorScheduler("every minute", &countingChecker{}, time.Second, applog.Discard()); err == nil {
		t.Error("invalid schedule should fail")
	}

	checker := &countingChecker{}
	s, err := NewMonitorScheduler("@every 1h", checker, time.Second, applog.Discard())
	if err != nil {
		t.Fatalf("NewMonitorScheduler: %v", err)
	}

	s.RunOnce()
	checker.err = core.ErrStoreUnavailable
	s.RunOnce()
	if got := checker.calls.Load(); got != 2 {
		t.Errorf("checks = %d, want 2", got)
	}

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
