// Package ratelimit throttles calls into instrument drivers.
// Serial devices drop or garble commands sent back to back, so every
// action and measurement waits for a token before it runs.
package ratelimit

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

type RateLimiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewRateLimiter allows perSecond calls per second. Zero disables limiting.
func NewRateLimiter(perSecond float64) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst(perSecond)),
	}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.RLock()
	limiter := r.limiter
	limit := limiter.Limit()
	r.mu.RUnlock()

	// If rate limit is 0, don't wait (no rate limiting)
	if limit == 0 {
		return nil
	}
	return limiter.Wait(ctx)
}

func (r *RateLimiter) SetRate(perSecond float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter.SetLimit(rate.Limit(perSecond))
	r.limiter.SetBurst(burst(perSecond))
}

// Rate returns the configured calls per second.
func (r *RateLimiter) Rate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return float64(r.limiter.Limit())
}

func burst(perSecond float64) int {
	if perSecond <= 1 {
		return 1
	}
	return int(math.Ceil(perSecond))
}
