package httpx

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "panem:ratelimit:"
	redisOpTimeout    = 250 * time.Millisecond
	redisPingDeadline = 2 * time.Second
)

type redisRateLimiter struct {
	client  redis.Cmdable
	closer  func() error
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedisRateLimiter constructs a Redis backed rate limiter shared by every
// panemd replica pointing at the same Redis.
func NewRedisRateLimiter(ctx context.Context, addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingDeadline)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return newRedisRateLimiter(client, client.Close, logger), nil
}

func newRedisRateLimiter(client redis.Cmdable, closer func() error, logger *slog.Logger) *redisRateLimiter {
	return &redisRateLimiter{
		client:  client,
		closer:  closer,
		logger:  logger,
		prefix:  redisKeyPrefix,
		timeout: redisOpTimeout,
	}
}

// Allow fails open: a Redis outage never blocks the API.
func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, window)
		ttl = pipe.TTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		rl.logRedisError("incr", err)
		return rateDecision{allowed: true}
	}
	counter := incr.Val()
	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = window
	}
	return rateDecision{
		allowed:   int(counter) <= limit,
		count:     int(counter),
		windowEnd: time.Now().Add(remaining),
	}
}

func (rl *redisRateLimiter) Close() {
	if rl.closer != nil {
		_ = rl.closer()
	}
}

func (rl *redisRateLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
