// Package security throttles calls to the completion service.
package security

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ZaguanLabs/mathgpt/internal/completion"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	PerMinute       int           // Requests allowed per minute; 0 disables limiting
	Burst           int           // Requests allowed back to back
	CleanupInterval time.Duration // How often idle keys are dropped
}

// DefaultRateLimitConfig returns default rate limiting configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerMinute:       20,
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	limit := rate.Inf
	if config.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(config.PerMinute))
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	idle := config.CleanupInterval
	if idle <= 0 {
		idle = 5 * time.Minute
	}

	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		idle:     idle,
		stop:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanupRoutine()

	return rl
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Allow reports whether a request for key may proceed now. When it may not,
// the returned duration is how long until it would.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	r := rl.get(key).Reserve()
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// Wait blocks until a request for key may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.get(key).Wait(ctx)
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.performCleanup(time.Now())
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) performCleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.visitors, key)
		}
	}
}

// Stop stops the cleanup routine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Throttled is a completion.Completer that refuses calls over the rate limit.
type Throttled struct {
	next    completion.Completer
	limiter *RateLimiter
	key     string
}

// Throttle wraps next so that calls are counted against key in limiter.
func Throttle(next completion.Completer, limiter *RateLimiter, key string) *Throttled {
	return &Throttled{next: next, limiter: limiter, key: key}
}

// Complete implements completion.Completer.
func (t *Throttled) Complete(ctx context.Context, req completion.Request) (string, error) {
	if ok, wait := t.limiter.Allow(t.key); !ok {
		return "", mgErrors.NewAPIError(http.StatusTooManyRequests,
			fmt.Sprintf("too many questions, try again in %s", wait.Round(time.Second)), "rate_limited", nil)
	}
	return t.next.Complete(ctx, req)
}
