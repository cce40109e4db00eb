package ledger

import (
	"context"
	"time"

	"boothmetrics/internal/core"
)

// Ports the core consumes from a ledger backend.
type (
	TransactionWriter interface {
		// AppendTransaction stores the record and returns it with ID and CreatedAt set.
		AppendTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// TransactionReader scans the ledger in insertion order.
	TransactionReader interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		// ListTransactionsBetween returns records with from <= Timestamp <= to.
		ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]core.Transaction, error)
		CountTransactions(ctx context.Context) (int, error)
	}

	AlertWriter interface {
		CreateAlert(ctx context.Context, a core.Alert) (core.Alert, error)
		// MarkAlertRead returns core.ErrNotFound for an unknown id.
		MarkAlertRead(ctx context.Context, id int64) error
	}

	AlertReader interface {
		// ListUnreadAlerts returns at most limit unread alerts, newest first.
		ListUnreadAlerts(ctx context.Context, limit int) ([]core.Alert, error)
	}

	// Pinger reports whether the backend is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	Store interface {
		TransactionWriter
		TransactionReader
		AlertWriter
		AlertReader
		Pinger
	}
)
