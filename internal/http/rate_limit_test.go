package httpx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorysh/panem/pkg/logger"
)

func TestMemoryRateLimiterWindow(t *testing.T) {
	rl := NewMemoryRateLimiter().(*memoryRateLimiter)
	defer rl.Close()

	first := rl.Allow("ip:a", 2, time.Minute)
	assert.True(t, first.allowed)
	assert.Equal(t, 1, first.count)
	assert.True(t, rl.Allow("ip:a", 2, time.Minute).allowed)
	blocked := rl.Allow("ip:a", 2, time.Minute)
	assert.False(t, blocked.allowed)
	assert.Equal(t, 2, blocked.count)

	assert.True(t, rl.Allow("ip:b", 2, time.Minute).allowed, "keys are independent")
	assert.True(t, rl.Allow("ip:a", 0, time.Minute).allowed, "zero limit disables")

	rl.cleanup(time.Now().Add(2 * time.Minute))
	assert.True(t, rl.Allow("ip:a", 2, time.Minute).allowed, "expired windows are swept")
}

func TestMemoryRateLimiterCloseIsIdempotent(t *testing.T) {
	rl := NewMemoryRateLimiter()
	rl.Close()
	rl.Close()
}

func TestRedisRateLimiterUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := NewRedisRateLimiter(ctx, "127.0.0.1:1", "", 0, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestRateMetricKey(t *testing.T) {
	assert.Equal(t, "ip", rateMetricKey("ip:10.0.0.1"))
	assert.Equal(t, "unknown", rateMetricKey("nokey"))
}
