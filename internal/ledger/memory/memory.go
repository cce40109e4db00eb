package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"boothmetrics/internal/core"
)

// Store is an in-process ledger. Transactions are kept in insertion order.
type Store struct {
	mu     sync.RWMutex
	now    func() time.Time
	txs    []core.Transaction
	alerts []core.Alert
	nextTx int64
	nextAl int64
}

func New() *Store {
	return &Store{now: time.Now}
}

// NewWithClock is used by tests that need deterministic CreatedAt values.
func NewWithClock(now func() time.Time) *Store {
	return &Store{now: now}
}

// AppendTransaction implements ledger.TransactionWriter.
func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTx++
	t.ID = s.nextTx
	t.CreatedAt = s.now().UTC()
	s.txs = append(s.txs, t)
	return t, nil
}

// ListTransactions returns a copy of the whole ledger.
func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

func (s *Store) ListTransactionsBetween(_ context.Context, from, to time.Time) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.Timestamp.Before(from) || t.Timestamp.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) CountTransactions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs), nil
}

// CreateAlert implements ledger.AlertWriter.
func (s *Store) CreateAlert(_ context.Context, a core.Alert) (core.Alert, error) {
	if !a.Type.Valid() || !a.Severity.Valid() {
		return core.Alert{}, fmt.Errorf("%w: invalid alert type %q or severity %q", core.ErrValidation, a.Type, a.Severity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAl++
	a.ID = s.nextAl
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.alerts = append(s.alerts, a)
	return a, nil
}

func (s *Store) MarkAlertRead(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("alert %d: %w", id, core.ErrNotFound)
}

// ListUnreadAlerts implements ledger.AlertReader.
func (s *Store) ListUnreadAlerts(_ context.Context, limit int) ([]core.Alert, error) {
	s.mu.RLock()
	var out []core.Alert
	for _, a := range s.alerts {
		if !a.IsRead {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Ping(_ context.Context) error { return nil }
