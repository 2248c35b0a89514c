// Package crawler runs a concurrent, depth-bounded Wikipedia crawl: a pool
// of workers drains a shared frontier through one global rate gate.
package crawler

import (
	"time"

	"github.com/PentesterFlow/WikiCrawler/internal/metrics"
)

// StopReason says why a crawl ended.
type StopReason string

// Stop reasons.
const (
	StopCompleted  StopReason = "completed"   // frontier drained
	StopInterrupt  StopReason = "interrupted" // Stop or signal
	StopMaxRuntime StopReason = "max_runtime"
	StopCanceled   StopReason = "canceled" // parent context ended
)

// CrawlResult summarizes a finished crawl.
type CrawlResult struct {
	Seed        string            `json:"seed"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Reason      StopReason        `json:"reason"`
	Stats       CrawlStats        `json:"stats"`
	Metrics     *metrics.Snapshot `json:"metrics"`
}

// Duration is the wall-clock time of the crawl.
func (r *CrawlResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Interrupted reports whether the crawl was stopped before the frontier
// drained.
func (r *CrawlResult) Interrupted() bool {
	return r.Reason != StopCompleted
}

// CrawlStats are the counters a running crawl exposes.
type CrawlStats struct {
	PagesCrawled int64 `json:"pages_crawled"`
	PagesFailed  int64 `json:"pages_failed"`
	// Claimed counts every URL that passed the visited check, including
	// depth-bounded ones that were never fetched.
	Claimed int64 `json:"claimed"`
	// Skipped counts tasks dropped for reaching MaxDepth.
	Skipped  int64 `json:"skipped"`
	Queued   int   `json:"queued"`
	InFlight int64 `json:"in_flight"`
}

// Processed is PagesCrawled + PagesFailed.
func (s CrawlStats) Processed() int64 {
	return s.PagesCrawled + s.PagesFailed
}
