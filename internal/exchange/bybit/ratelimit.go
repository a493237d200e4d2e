package bybit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond stays well below Bybit's public market data
// limit when several symbols download in parallel
const DefaultRequestsPerSecond = 10

// RateLimiter is a token bucket shared by every request of a client
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows bursts of burst requests and perSecond after that
func NewRateLimiter(burst, perSecond int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow takes a token if one is available
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// allowAt is Allow against an explicit clock
func (rl *RateLimiter) allowAt(now time.Time) bool {
	return rl.limiter.AllowN(now, 1)
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
