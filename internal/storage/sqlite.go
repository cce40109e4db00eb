package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"boothmetrics/internal/core"

	_ "modernc.org/sqlite"
)

// Fixed-width UTC layout so that text comparison in SQL orders like time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const transactionColumns = `id, mobile_booth, service, transaction_amount, revenue_per_kwacha, revenue, timestamp, created_at`

// SQLiteStore is the durable ledger backend.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database file at dbPath and migrates it.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewFromDB(db), nil
}

// NewFromDB wraps an already migrated connection.
func NewFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// AppendTransaction implements ledger.TransactionWriter
func (s *SQLiteStore) AppendTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions
		(mobile_booth, service, transaction_amount, revenue_per_kwacha, revenue, timestamp, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		t.Booth, t.Service, t.Amount, t.Rate, t.Revenue,
		formatTime(t.Timestamp), formatTime(t.CreatedAt),
	)
	if err != nil {
		return core.Transaction{}, unavailable("insert transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, unavailable("transaction id", err)
	}
	t.ID = id

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"booth", t.Booth,
		"service", t.Service,
		"revenue", t.Revenue)

	return t, nil
}

// ListTransactions implements ledger.TransactionReader
func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	return scanTransactions(rows)
}

func (s *SQLiteStore) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY id`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, unavailable("list transactions between", err)
	}
	return scanTransactions(rows)
}

func (s *SQLiteStore) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, unavailable("count transactions", err)
	}
	return n, nil
}

// CreateAlert implements ledger.AlertWriter
func (s *SQLiteStore) CreateAlert(ctx context.Context, a core.Alert) (core.Alert, error) {
	if !a.Type.Valid() || !a.Severity.Valid() {
		return core.Alert{}, fmt.Errorf("%w: invalid alert type %q or severity %q", core.ErrValidation, a.Type, a.Severity)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (type, message, severity, is_read, created_at) VALUES (?,?,?,?,?)`,
		string(a.Type), a.Message, string(a.Severity), a.IsRead, formatTime(a.CreatedAt),
	)
	if err != nil {
		return core.Alert{}, unavailable("insert alert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Alert{}, unavailable("alert id", err)
	}
	a.ID = id

	slog.InfoContext(ctx, "Alert saved to SQLite",
		"id", a.ID,
		"type", a.Type,
		"severity", a.Severity)

	return a, nil
}

func (s *SQLiteStore) MarkAlertRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return unavailable("mark alert read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("mark alert read", err)
	}
	if n == 0 {
		// Already-read alerts still match the WHERE clause, so zero rows means unknown id.
		return fmt.Errorf("alert %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListUnreadAlerts implements ledger.AlertReader
func (s *SQLiteStore) ListUnreadAlerts(ctx context.Context, limit int) ([]core.Alert, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, message, severity, is_read, created_at FROM alerts
		WHERE is_read = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("list unread alerts", err)
	}
	defer rows.Close()

	var alerts []core.Alert
	for rows.Next() {
		var (
			a                  core.Alert
			typ, sev, createdAt string
		)
		if err := rows.Scan(&a.ID, &typ, &a.Message, &sev, &a.IsRead, &createdAt); err != nil {
			return nil, unavailable("scan alert", err)
		}
		a.Type = core.AlertType(typ)
		a.Severity = core.Severity(sev)
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("alert %d created_at: %w", a.ID, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate alerts", err)
	}
	return alerts, nil
}

// --- helpers ---

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			t             core.Transaction
			ts, createdAt string
		)
		err := rows.Scan(&t.ID, &t.Booth, &t.Service, &t.Amount, &t.Rate, &t.Revenue, &ts, &createdAt)
		if err != nil {
			return nil, unavailable("scan transaction", err)
		}
		if t.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("transaction %d timestamp: %w", t.ID, err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("transaction %d created_at: %w", t.ID, err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate transactions", err)
	}
	return txs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad stored time %q", core.ErrComputation, s)
	}
	return t.UTC(), nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}
