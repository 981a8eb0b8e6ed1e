package infra

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// --- Rate limiter ---

// RateLimiter enforces a minimum spacing between consecutive requests.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewRateLimiter allows one request per interval with no bursting.
// A non-positive interval disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	rl := &RateLimiter{interval: interval}
	if interval > 0 {
		rl.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return rl
}

// Wait blocks until a request slot is available or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.limiter == nil {
		return ctx.Err()
	}
	return rl.limiter.Wait(ctx)
}

// Interval returns the configured spacing.
func (rl *RateLimiter) Interval() time.Duration {
	if rl == nil {
		return 0
	}
	return rl.interval
}
