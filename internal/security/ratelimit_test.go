package security

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaguanLabs/mathgpt/internal/completion"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/mocks"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 1, Burst: 2})
	defer rl.Stop()

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)

	ok, wait := rl.Allow("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")
}

func TestRateLimiter_ZeroDisables(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		ok, _ := rl.Allow("local")
		require.True(t, ok)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 10, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	require.Equal(t, 2, rl.Len())

	rl.performCleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 1, Burst: 1})
	defer rl.Stop()

	require.NoError(t, rl.Wait(context.Background(), "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "a"))
}

func TestThrottle(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 1, Burst: 1})
	defer rl.Stop()

	next := mocks.NewMockCompleter()
	next.SetResponse("ok")
	c := Throttle(next, rl, "local")

	got, err := c.Complete(context.Background(), completion.Request{Message: "1+1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	_, err = c.Complete(context.Background(), completion.Request{Message: "2+2"})
	var apiErr *mgErrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status())
	mocks.AssertCompleterCallCount(t, next, 1)
}
