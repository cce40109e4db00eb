package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boothmetrics/internal/cache"
	"boothmetrics/internal/core"
	"boothmetrics/internal/ledger/memory"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
	"boothmetrics/internal/monitor"
	"boothmetrics/internal/ratelimit"
	"boothmetrics/internal/services"
)

var testNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type flakyStore struct {
	*memory.Store
	down atomic.Bool
}

func (s *flakyStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if s.down.Load() {
		return nil, core.ErrStoreUnavailable
	}
	return s.Store.ListTransactions(ctx)
}

func (s *flakyStore) Ping(ctx context.Context) error {
	if s.down.Load() {
		return core.ErrStoreUnavailable
	}
	return nil
}

type testServer struct {
	handler http.Handler
	store   *flakyStore
}

func newTestServer(t *testing.T, perWindow int) *testServer {
	t.Helper()
	logger := applog.Discard()
	clock := func() time.Time { return testNow }
	store := &flakyStore{Store: memory.NewWithClock(clock)}
	limits := core.DefaultServiceLimits()

	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{Window: time.Minute})
	t.Cleanup(limiter.Stop)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	d := services.NewDashboard(services.Deps{
		Store:    store,
		Cache:    cache.NewLayer(cache.Config{DefaultTTL: time.Minute, MaxEntries: 16}, m, logger),
		Governor: ratelimit.NewGovernor(limiter, ratelimit.Config{RequestsPerWindow: perWindow}, m, logger),
		Monitor:  monitor.New(store, store, limits, monitor.WithLogger(logger), monitor.WithClock(clock), monitor.WithMetrics(m)),
		Limits:   limits,
		Metrics:  m,
		Logger:   logger,
		Now:      clock,
	})

	srv, err := NewServer(":0", d, Options{Logger: logger, Metrics: m, Gatherer: registry})
	require.NoError(t, err)
	return &testServer{handler: srv.Handler, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "203.0.113.10:40000"
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) ingest(t *testing.T, body string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/transactions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestRevenueByBoothKeepsFirstSeenOrder(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.ingest(t, `{"booth":"Wina2","service":"FNB","amount":2000,"rate":0.04}`)
	ts.ingest(t, `{"booth":"Wina1","service":"Airtel Money","amount":1000,"rate":"0,05"}`)

	rec := ts.do(t, http.MethodGet, "/api/revenue_by_booth", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"Wina2":80,"Wina1":50}`, strings.TrimSpace(rec.Body.String()))
}

func TestSummaryAndRankings(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.ingest(t, `{"booth":"Wina1","service":"Airtel Money","amount":1000,"rate":0.05}`)
	ts.ingest(t, `{"booth":"Wina2","service":"FNB","amount":2000,"rate":0.04}`)
	ts.ingest(t, `{"booth":"Wina2","service":"FNB","amount":500,"rate":0.04}`)

	rec := ts.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum core.Summary
	decodeBody(t, rec, &sum)
	assert.InDelta(t, 150, sum.TotalRevenue, 1e-9)
	assert.Equal(t, 3, sum.TotalTransactions)
	assert.Equal(t, 2, sum.UniqueBooths)
	assert.Equal(t, 2, sum.UniqueServices)

	rec = ts.do(t, http.MethodGet, "/api/top_services?n=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"FNB":2}`, strings.TrimSpace(rec.Body.String()))

	rec = ts.do(t, http.MethodGet, "/api/top_booths", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"Wina2":100,"Wina1":50}`, strings.TrimSpace(rec.Body.String()))
}

func TestBenchmarksOnEmptyLedger(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, http.MethodGet, "/api/benchmarks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	performer, ok := body["top_performer"].(map[string]any)
	require.True(t, ok, "top_performer should be an object")
	assert.Nil(t, performer["booth"])
	assert.Equal(t, float64(0), performer["revenue"])
}

func TestTrendsReturnsOnePointPerDay(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.ingest(t, `{"booth":"Wina1","service":"Zanaco","amount":100,"rate":0.1,"timestamp":"2025-06-29"}`)

	rec := ts.do(t, http.MethodGet, "/api/trends?days=3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []trendResponse
	decodeBody(t, rec, &points)
	require.NotEmpty(t, points)
	found := false
	for _, p := range points {
		if p.Date == "2025-06-29" {
			found = true
			assert.InDelta(t, 10, p.Revenue, 1e-9)
		}
	}
	assert.True(t, found, "expected a point for 2025-06-29 in %v", points)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t, 100)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"unknown service", http.MethodPost, "/api/transactions", `{"booth":"Wina1","service":"Bitcoin","amount":10,"rate":0.1}`},
		{"zero amount", http.MethodPost, "/api/transactions", `{"booth":"Wina1","service":"FNB","amount":0,"rate":0.1}`},
		{"missing rate", http.MethodPost, "/api/transactions", `{"booth":"Wina1","service":"FNB","amount":10}`},
		{"malformed body", http.MethodPost, "/api/transactions", `{"booth":`},
		{"bad timestamp", http.MethodPost, "/api/transactions", `{"booth":"Wina1","service":"FNB","amount":10,"rate":0.1,"timestamp":"yesterday"}`},
		{"negative n", http.MethodGet, "/api/top_services?n=-1", ""},
		{"non-numeric days", http.MethodGet, "/api/trends?days=week", ""},
		{"days beyond range", http.MethodGet, "/api/trends?days=200000", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var body map[string]string
			decodeBody(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRateLimitedRequestsGet429(t *testing.T) {
	ts := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodGet, "/api/summary", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/summary", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Limits are per operation.
	rec = ts.do(t, http.MethodGet, "/api/benchmarks", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStoreUnavailable(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.store.down.Store(true)

	rec := ts.do(t, http.MethodGet, "/api/revenue_by_booth", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Service temporarily unavailable")

	rec = ts.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ts.store.down.Store(false)
	rec = ts.do(t, http.MethodGet, "/api/revenue_by_booth", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAlertsFlow(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.ingest(t, `{"booth":"Wina1","service":"Zamtel Money","amount":635000,"rate":0.1}`)

	rec := ts.do(t, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []alertResponse
	decodeBody(t, rec, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, "service_limit", alerts[0].Type)
	assert.Equal(t, "warning", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "Zamtel Money")

	rec = ts.do(t, http.MethodGet, "/api/service_limits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []core.LimitStatus
	decodeBody(t, rec, &statuses)
	for _, st := range statuses {
		if st.Service == "Zamtel Money" {
			assert.True(t, st.IsLow)
			assert.InDelta(t, 6500, st.Remaining, 1e-9)
		}
	}

	path := "/api/alerts/" + jsonNumber(alerts[0].ID) + "/read"
	rec = ts.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alert marked as read")

	rec = ts.do(t, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = ts.do(t, http.MethodPost, "/api/alerts/999/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/alerts/abc/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = ts.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.do(t, http.MethodGet, "/api/summary", "")
	rec = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/summary")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = ts.do(t, http.MethodDelete, "/api/summary", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
