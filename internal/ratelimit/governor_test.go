package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boothmetrics/internal/core"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int) (Decision, error) {
	return Decision{Allowed: true}, errors.New("connection refused")
}

func TestGovernorRejectsAfterLimit(t *testing.T) {
	ctx := context.Background()
	rl, _ := newMemory(t)
	m := metrics.New(prometheus.NewRegistry())
	g := NewGovernor(rl, Config{RequestsPerWindow: 100}, m, applog.Discard())

	for i := 0; i < 100; i++ {
		require.NoError(t, g.Admit(ctx, "revenue_by_booth", "10.0.0.1"), "request %d", i+1)
	}

	err := g.Admit(ctx, "revenue_by_booth", "10.0.0.1")
	require.ErrorIs(t, err, core.ErrRateLimited)
	var limited *LimitedError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, "revenue_by_booth", limited.Operation)
	assert.Equal(t, time.Minute, limited.RetryAfter)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("revenue_by_booth")))

	assert.NoError(t, g.Admit(ctx, "revenue_by_booth", "10.0.0.2"), "other clients are unaffected")
	assert.NoError(t, g.Admit(ctx, "summary", "10.0.0.1"), "other operations are unaffected")
}

func TestGovernorPerOperationLimit(t *testing.T) {
	ctx := context.Background()
	rl, _ := newMemory(t)
	g := NewGovernor(rl, Config{RequestsPerWindow: 100, PerOperation: map[string]int{"trends": 2}}, nil, applog.Discard())

	assert.Equal(t, 2, g.Limit("trends"))
	assert.Equal(t, 100, g.Limit("summary"))
	require.NoError(t, g.Admit(ctx, "trends", "c"))
	require.NoError(t, g.Admit(ctx, "trends", "c"))
	assert.ErrorIs(t, g.Admit(ctx, "trends", "c"), core.ErrRateLimited)
}

func TestGovernorFailsOpen(t *testing.T) {
	g := NewGovernor(brokenLimiter{}, Config{}, nil, applog.Discard())
	assert.NoError(t, g.Admit(context.Background(), "summary", "c"))
	assert.Equal(t, 100, g.Limit("summary"), "default limit")
}
