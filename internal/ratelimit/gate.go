// Package ratelimit paces outbound requests.
//
// Gate is the crawl-wide pacing point shared by every worker. Limiter is a
// token bucket for auxiliary API traffic that must not consume crawl budget.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate spaces request starts at least MinInterval apart across all callers.
//
// Only the start of each request is paced. The lock covers the timing
// decision and the wait, not the request itself, so requests may overlap in
// flight.
type Gate struct {
	mu               sync.Mutex
	minInterval      time.Duration
	lastRequestStart time.Time
	granted          uint64
	waited           time.Duration
}

// NewGate creates a gate allowing requestsPerSecond request starts per
// second. A non-positive rate disables pacing.
func NewGate(requestsPerSecond float64) *Gate {
	var interval time.Duration
	if requestsPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	return NewGateInterval(interval)
}

// NewGateInterval creates a gate with an explicit minimum interval.
func NewGateInterval(minInterval time.Duration) *Gate {
	return &Gate{minInterval: minInterval}
}

// MinInterval returns the configured spacing.
func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}

// Reserve blocks until the caller may start a request and returns the
// granted start time. Consecutive grants are at least MinInterval apart.
// If ctx ends while waiting, no grant is recorded and ctx.Err is returned.
func (g *Gate) Reserve(ctx context.Context) (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastRequestStart.IsZero() {
		elapsed := time.Since(g.lastRequestStart)
		if wait := g.minInterval - elapsed; wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return time.Time{}, ctx.Err()
			case <-timer.C:
			}
			g.waited += wait
		}
	}

	now := time.Now()
	g.lastRequestStart = now
	g.granted++
	return now, nil
}

// GateStats is a snapshot of gate activity.
type GateStats struct {
	Granted     uint64        `json:"granted"`
	TotalWait   time.Duration `json:"total_wait"`
	MinInterval time.Duration `json:"min_interval"`
}

// Stats returns counters for reporting.
func (g *Gate) Stats() GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateStats{Granted: g.granted, TotalWait: g.waited, MinInterval: g.minInterval}
}
