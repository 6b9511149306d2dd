package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10})
	require.NotNil(t, rl)
	assert.NotNil(t, rl.limiter)
}

func TestNewRateLimiter_ZeroConfigUsesDefaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	require.NotNil(t, rl)
	assert.NotNil(t, rl.limiter)
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimit)

	err := rl.Wait(context.Background())

	assert.NoError(t, err)
}

func TestRateLimiter_Wait_ContextCancelled(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimit)
	rl.RecordRateLimitError(60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rl.Wait(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimit)

	// The burst allowance covers the first few requests.
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow(), "request %d should be allowed", i)
	}
}

func TestRateLimiter_RecordRateLimitError(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimit)

	rl.RecordRateLimitError(1)

	assert.False(t, rl.Allow())

	time.Sleep(1100 * time.Millisecond)

	assert.True(t, rl.Allow())
}

func TestRateLimiter_RecordRateLimitError_DefaultBackoff(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimit)

	rl.RecordRateLimitError(0)

	rl.mu.Lock()
	retryAt := rl.retryAt
	rl.mu.Unlock()

	expectedRetry := time.Now().Add(60 * time.Second)
	assert.WithinDuration(t, expectedRetry, retryAt, 2*time.Second)
}

func TestRateLimiter_RecordRateLimitError_NegativeBackoff(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimit)

	rl.RecordRateLimitError(-5)

	rl.mu.Lock()
	retryAt := rl.retryAt
	rl.mu.Unlock()

	expectedRetry := time.Now().Add(60 * time.Second)
	assert.WithinDuration(t, expectedRetry, retryAt, 2*time.Second)
}
