// Package cache memoizes aggregation results per operation with
// single-flight loading.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	applog "boothmetrics/internal/log"
	"boothmetrics/internal/metrics"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Size returns the current number of items in the cache
	Size() int
}

// Config sets per-operation TTLs. Operations without an entry use DefaultTTL.
type Config struct {
	DefaultTTL     time.Duration
	TTLs           map[string]time.Duration
	MaxEntries     int
	ComputeTimeout time.Duration
}

// Layer holds one TTL cache per operation and collapses concurrent misses
// on the same key into a single computation.
type Layer struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *applog.Logger

	mu     sync.Mutex
	caches map[string]Cache[any]
	group  singleflight.Group
}

func NewLayer(cfg Config, m *metrics.Metrics, logger *applog.Logger) *Layer {
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = 5 * time.Second
	}
	return &Layer{
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent(applog.ComponentCache),
		caches:  make(map[string]Cache[any]),
	}
}

// TTL returns the expiry applied to entries of an operation.
func (l *Layer) TTL(op string) time.Duration {
	if ttl, ok := l.cfg.TTLs[op]; ok {
		return ttl
	}
	return l.cfg.DefaultTTL
}

// Get looks up a live entry.
func (l *Layer) Get(op, key string) (any, bool) {
	return l.cacheFor(op).Get(key)
}

// Set stores an entry under the operation's TTL.
func (l *Layer) Set(op, key string, v any) {
	l.cacheFor(op).Set(key, v)
}

// Size reports the live entries held for an operation.
func (l *Layer) Size(op string) int {
	return l.cacheFor(op).Size()
}

func (l *Layer) cacheFor(op string) Cache[any] {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.caches[op]
	if !ok {
		c = NewTTLCache[any](l.cfg.MaxEntries, l.TTL(op))
		l.caches[op] = c
	}
	return c
}

// Key canonicalizes an operation and its parameters.
func Key(op string, params ...any) string {
	if len(params) == 0 {
		return op
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, op)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, "|")
}

// Fetch returns the cached value for (op, params) or computes it. Concurrent
// misses on the same key share one call to compute. The computation runs on a
// context detached from the caller's cancellation and bounded by the layer's
// compute timeout, so one caller giving up does not fail the others.
// Errors are returned to every waiter and never cached.
func Fetch[T any](ctx context.Context, l *Layer, op string, params []any, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	key := Key(op, params...)

	if v, ok := l.Get(op, key); ok {
		if t, ok := v.(T); ok {
			l.metrics.CacheHit(op)
			return t, nil
		}
	}
	l.metrics.CacheMiss(op)

	ch := l.group.DoChan(key, func() (any, error) {
		// Another flight may have filled the entry since our lookup.
		if v, ok := l.Get(op, key); ok {
			return v, nil
		}

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ComputeTimeout)
		defer cancel()

		start := time.Now()
		v, err := compute(cctx)
		l.metrics.CacheComputation(op, err)
		if err != nil {
			return nil, err
		}
		l.Set(op, key, v)
		l.logger.DebugContext(ctx, "Cache filled",
			applog.FieldCacheKey, key,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			"ttl", l.TTL(op),
			"entries", l.Size(op))
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		t, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache entry %q has type %T", key, res.Val)
		}
		return t, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
