package ratelimit

import (
	"context"
	"fmt"
	"time"

	"boothmetrics/internal/core"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
)

// LimitedError reports a rejection. It matches core.ErrRateLimited.
type LimitedError struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%s: %s (retry after %s)", e.Operation, core.ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *LimitedError) Unwrap() error { return core.ErrRateLimited }

// Config holds the admission limits.
type Config struct {
	// RequestsPerWindow applies to operations without an override.
	RequestsPerWindow int
	PerOperation      map[string]int
}

// Governor admits or rejects each (operation, client) pair.
type Governor struct {
	limiter Limiter
	config  Config
	metrics *metrics.Metrics
	logger  *applog.Logger
}

func NewGovernor(limiter Limiter, config Config, m *metrics.Metrics, logger *applog.Logger) *Governor {
	if config.RequestsPerWindow <= 0 {
		config.RequestsPerWindow = 100
	}
	return &Governor{
		limiter: limiter,
		config:  config,
		metrics: m,
		logger:  logger.WithComponent(applog.ComponentRateLimit),
	}
}

// Limit returns the number of requests per window allowed for op.
func (g *Governor) Limit(op string) int {
	if n, ok := g.config.PerOperation[op]; ok && n > 0 {
		return n
	}
	return g.config.RequestsPerWindow
}

// Admit returns nil when the request may proceed and a *LimitedError when it
// must be rejected. Limiter failures admit the request.
func (g *Governor) Admit(ctx context.Context, op, client string) error {
	d, err := g.limiter.Allow(ctx, op+":"+client, g.Limit(op))
	if err != nil {
		g.logger.WarnContext(ctx, "Rate limiter unavailable, admitting request",
			applog.FieldOperation, op,
			applog.FieldClient, client,
			applog.FieldError, err)
		return nil
	}
	if d.Allowed {
		return nil
	}

	g.metrics.RateLimited(op)
	g.logger.DebugContext(ctx, "Request rate limited",
		applog.FieldOperation, op,
		applog.FieldClient, client)
	return &LimitedError{Operation: op, RetryAfter: d.RetryAfter}
}
