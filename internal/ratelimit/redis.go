package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter shares fixed windows across instances through Redis counters.
type RedisLimiter struct {
	redis  *redis.Client
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, window time.Duration, prefix string) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{redis: client, window: window, prefix: prefix}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Allow increments the key's counter and reads its expiry in one
// transaction. A counter without an expiry gets one, whether it is new or an
// earlier expiry write was lost, so the window never outlives rl.window and
// does not slide with traffic.
func (rl *RedisLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("redis incr: %w", err)
	}

	count := incr.Val()
	retry := pttl.Val()
	if retry <= 0 {
		if err := rl.redis.PExpire(ctx, redisKey, rl.window).Err(); err != nil {
			return Decision{Allowed: true}, fmt.Errorf("redis expire: %w", err)
		}
		retry = rl.window
	}
	return Decision{Allowed: count <= int64(limit), RetryAfter: retry}, nil
}
