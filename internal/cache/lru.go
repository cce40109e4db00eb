package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTLCache is an LRU cache whose entries expire a fixed time after they were set.
// Expired entries are never returned and are purged in the background.
type TTLCache[T any] struct {
	lru *expirable.LRU[string, T]
}

// NewTTLCache creates a cache holding at most maxSize entries (0 means unbounded).
func NewTTLCache[T any](maxSize int, ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		lru: expirable.NewLRU[string, T](maxSize, nil, ttl),
	}
}

// Get retrieves a value from the cache
func (c *TTLCache[T]) Get(key string) (T, bool) {
	return c.lru.Get(key)
}

// Set stores a value; it expires after the cache's TTL.
func (c *TTLCache[T]) Set(key string, data T) {
	c.lru.Add(key, data)
}

// Size returns the current number of items in the cache
func (c *TTLCache[T]) Size() int {
	return c.lru.Len()
}
