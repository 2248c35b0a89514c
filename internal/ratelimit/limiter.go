package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket used for the related-pages API, kept separate
// from the crawl Gate so lookups never delay page fetches.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter with the given rate and burst. A
// non-positive rate means unlimited.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow takes a token without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetRate updates the rate in place.
func (l *Limiter) SetRate(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(requestsPerSecond))
}

// Rate returns the current rate in requests per second.
func (l *Limiter) Rate() float64 {
	return float64(l.limiter.Limit())
}
