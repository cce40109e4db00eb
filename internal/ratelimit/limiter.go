// Package ratelimit bounds how often a client may call an operation.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// RetryAfter is the time until the current window closes.
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
}

// MemoryLimiter is a process-local fixed-window limiter.
type MemoryLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	window          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

// MemoryConfig holds in-memory limiter configuration
type MemoryConfig struct {
	Window          time.Duration
	CleanupInterval time.Duration
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// NewMemoryLimiter creates a limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewMemoryLimiter(config MemoryConfig) *MemoryLimiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	rl := &MemoryLimiter{
		clients:         make(map[string]*clientInfo),
		stopCleanup:     make(chan struct{}),
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
		now:             config.Now,
	}
	go rl.startCleanup()
	return rl
}

// Allow admits at most limit requests per key in each window.
func (rl *MemoryLimiter) Allow(_ context.Context, key string, limit int) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[key]
	if !exists || now.Sub(client.windowStart) >= rl.window {
		client = &clientInfo{windowStart: now}
		rl.clients[key] = client
	}

	client.requests++
	retry := client.windowStart.Add(rl.window).Sub(now)
	return Decision{Allowed: client.requests <= limit, RetryAfter: retry}, nil
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *MemoryLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops keys whose window has closed.
func (rl *MemoryLimiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, client := range rl.clients {
		if now.Sub(client.windowStart) >= rl.window {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked keys
func (rl *MemoryLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the cleanup goroutine
func (rl *MemoryLimiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
