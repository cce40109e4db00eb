package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boothmetrics/internal/core"
	"boothmetrics/internal/ledger/memory"
	applog "boothmetrics/internal/log"
)

// storeIngester validates and appends like the real ingestion path.
type storeIngester struct {
	store *memory.Store
	err   error
}

func (s *storeIngester) IngestTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if s.err != nil {
		return core.Transaction{}, s.err
	}
	if err := in.Validate(core.DefaultServiceLimits()); err != nil {
		return core.Transaction{}, err
	}
	return s.store.AppendTransaction(ctx, core.NewTransaction(in, time.Now()))
}

const sample = `MobileBooth,Service,TransactionAmount,RevenuePerKwacha,TransactionDate
Wina1,Airtel Money,1000,0.05,2025-01-02
Wina2,FNB,2000,0.04,2025-01-03
Wina3,Bitcoin,10,0.1,2025-01-03
Wina4,Zanaco,abc,0.1,2025-01-04
`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLoader(&storeIngester{store: store}, store, applog.Discard())

	res, err := l.Load(ctx, strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Loaded != 2 || res.Rejected != 2 {
		t.Errorf("result = %+v, want 2 loaded and 2 rejected", res)
	}

	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 2 {
		t.Fatalf("stored %d rows, want 2", len(txs))
	}
	if txs[0].Revenue != 1000*0.05 {
		t.Errorf("revenue = %v, want derived value", txs[0].Revenue)
	}
	if want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC); !txs[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", txs[0].Timestamp, want)
	}
}

func TestLoadMissingColumn(t *testing.T) {
	store := memory.New()
	l := NewLoader(&storeIngester{store: store}, store, applog.Discard())

	_, err := l.Load(context.Background(), strings.NewReader("MobileBooth,Service,TransactionAmount\nWina1,FNB,10\n"))
	if err == nil || !strings.Contains(err.Error(), "RevenuePerKwacha") {
		t.Errorf("err = %v, want missing column error", err)
	}
}

func TestLoadStopsOnStoreError(t *testing.T) {
	store := memory.New()
	l := NewLoader(&storeIngester{store: store, err: core.ErrStoreUnavailable}, store, applog.Discard())

	_, err := l.Load(context.Background(), strings.NewReader(sample))
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestLoadIfEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	store := memory.New()
	l := NewLoader(&storeIngester{store: store}, store, applog.Discard())

	res, err := l.LoadIfEmpty(ctx, path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if res.Skipped || res.Loaded != 2 {
		t.Errorf("first load = %+v", res)
	}

	res, err = l.LoadIfEmpty(ctx, path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !res.Skipped {
		t.Error("second load should be skipped")
	}
	n, _ := store.CountTransactions(ctx)
	if n != 2 {
		t.Errorf("ledger has %d rows, want 2", n)
	}

	if _, err := NewLoader(&storeIngester{store: memory.New()}, memory.New(), applog.Discard()).LoadIfEmpty(ctx, "/does/not/exist.csv"); err == nil {
		t.Error("missing file should fail")
	}
}
