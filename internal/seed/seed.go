// Package seed loads an initial transaction ledger from a CSV export.
//
// Expected header:
//
//	MobileBooth,Service,TransactionAmount,RevenuePerKwacha,TransactionDate
//
// TransactionDate is 2006-01-02. Any revenue column in the file is ignored;
// every row goes through ingestion, which derives revenue itself.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"boothmetrics/internal/core"
	applog "boothmetrics/internal/log"
)

var columns = []string{"MobileBooth", "Service", "TransactionAmount", "RevenuePerKwacha", "TransactionDate"}

// Ingester is the ingestion path rows are fed through.
type Ingester interface {
	IngestTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
}

// Counter reports the size of the ledger.
type Counter interface {
	CountTransactions(ctx context.Context) (int, error)
}

// Result summarizes one load.
type Result struct {
	Loaded   int
	Rejected int
	Skipped  bool
}

type Loader struct {
	ingester Ingester
	counter  Counter
	logger   *applog.Logger
}

func NewLoader(ingester Ingester, counter Counter, logger *applog.Logger) *Loader {
	return &Loader{
		ingester: ingester,
		counter:  counter,
		logger:   logger.WithComponent(applog.ComponentSeed),
	}
}

// LoadIfEmpty loads the file at path only when the ledger has no transactions.
func (l *Loader) LoadIfEmpty(ctx context.Context, path string) (Result, error) {
	n, err := l.counter.CountTransactions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count transactions: %w", err)
	}
	if n > 0 {
		l.logger.InfoContext(ctx, "Ledger not empty, skipping seed", "transactions", n)
		return Result{Skipped: true}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	res, err := l.Load(ctx, f)
	if err != nil {
		return res, fmt.Errorf("seed %s: %w", path, err)
	}
	l.logger.InfoContext(ctx, "Seed data loaded",
		applog.FieldOperation, applog.OpSeed,
		"path", path,
		"loaded", res.Loaded,
		"rejected", res.Rejected)
	return res, nil
}

// Load ingests every row of r. Rows that fail to parse or validate are
// counted and skipped; a malformed file or a store failure stops the load.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	lineNum := 1
	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("line %d: %w", lineNum, err)
		}

		in, err := parseRow(row, idx)
		if err == nil {
			_, err = l.ingester.IngestTransaction(ctx, in)
		}
		switch {
		case err == nil:
			res.Loaded++
		case errors.Is(err, core.ErrValidation):
			res.Rejected++
			l.logger.WarnContext(ctx, "Seed row rejected", "line", lineNum, applog.FieldError, err)
		default:
			return res, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	return res, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (core.TransactionInput, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	amount, err := core.ParseAmount(field("TransactionAmount"))
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("%w: amount %q", core.ErrValidation, field("TransactionAmount"))
	}
	rate, err := core.ParseRate(field("RevenuePerKwacha"))
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("%w: rate %q", core.ErrValidation, field("RevenuePerKwacha"))
	}
	date, err := time.Parse("2006-01-02", field("TransactionDate"))
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("%w: date %q", core.ErrValidation, field("TransactionDate"))
	}

	return core.TransactionInput{
		Booth:     field("MobileBooth"),
		Service:   field("Service"),
		Amount:    amount,
		Rate:      rate,
		Timestamp: date,
	}, nil
}
