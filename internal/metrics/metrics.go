// Package metrics collects crawl statistics.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates crawl metrics. Every method is safe for
// concurrent use; readers never block workers for longer than a map copy.
type Collector struct {
	// Counters
	pagesCrawled    atomic.Int64
	pagesFailed     atomic.Int64
	pagesDiscovered atomic.Int64
	requestsTotal   atomic.Int64
	errorsTotal     atomic.Int64
	retriesTotal    atomic.Int64
	bytesTotal      atomic.Int64

	// Rate tracking
	pagesInWindow atomic.Int64
	windowStart   atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// Gauges
	frontierDepth atomic.Int64
	activeWorkers atomic.Int64

	// Histograms (buckets for fetch times in ms)
	responseTimeBuckets [numBuckets]atomic.Int64

	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	labelCounts map[string]*atomic.Int64
	labelMu     sync.RWMutex

	startTime time.Time
	exporter  *Exporter
}

const numBuckets = 10

// bucketBounds are the upper bounds in ms; the last bucket is open-ended.
var bucketBounds = [numBuckets - 1]int64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// New creates a new metrics collector.
func New() *Collector {
	now := time.Now()
	c := &Collector{
		errorCounts: make(map[string]*atomic.Int64),
		labelCounts: make(map[string]*atomic.Int64),
		startTime:   now,
	}
	c.windowStart.Store(now.UnixNano())
	return c
}

// AttachExporter mirrors every subsequent update into e. Call it before the
// crawl starts.
func (c *Collector) AttachExporter(e *Exporter) {
	c.exporter = e
}

// Exporter returns the attached exporter, if any.
func (c *Collector) Exporter() *Exporter {
	return c.exporter
}

// RecordPageCrawled counts a page that was fetched and persisted.
func (c *Collector) RecordPageCrawled(label string) {
	c.pagesCrawled.Add(1)
	c.pagesInWindow.Add(1)
	if label != "" {
		incr(&c.labelMu, c.labelCounts, label)
	}
	if c.exporter != nil {
		c.exporter.pagesCrawled.Inc()
	}
}

// RecordPageFailed counts a page that could not be fetched or persisted.
// stage is "fetch", "persist" or "publish".
func (c *Collector) RecordPageFailed(stage string) {
	c.pagesFailed.Add(1)
	if c.exporter != nil {
		c.exporter.pagesFailed.WithLabelValues(stage).Inc()
	}
}

// RecordDiscovered counts links claimed and queued.
func (c *Collector) RecordDiscovered(n int) {
	c.pagesDiscovered.Add(int64(n))
}

// RecordFetch records one completed fetch: its attempts, duration and size.
func (c *Collector) RecordFetch(attempts int, d time.Duration, bytes int) {
	if attempts < 1 {
		attempts = 1
	}
	c.requestsTotal.Add(int64(attempts))
	c.bytesTotal.Add(int64(bytes))
	if attempts > 1 {
		c.retriesTotal.Add(int64(attempts - 1))
	}

	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucket(ms)].Add(1)

	if c.exporter != nil {
		c.exporter.fetchDuration.Observe(d.Seconds())
		if attempts > 1 {
			c.exporter.retries.Add(float64(attempts - 1))
		}
	}
}

// RecordError counts a fetch error by class.
func (c *Collector) RecordError(class string) {
	c.errorsTotal.Add(1)
	incr(&c.errorMu, c.errorCounts, class)
	if c.exporter != nil {
		c.exporter.fetchErrors.WithLabelValues(class).Inc()
	}
}

// SetFrontierDepth sets the number of queued tasks.
func (c *Collector) SetFrontierDepth(n int) {
	c.frontierDepth.Store(int64(n))
	if c.exporter != nil {
		c.exporter.frontierDepth.Set(float64(n))
	}
}

// AddActiveWorkers adjusts the number of workers currently running a task.
func (c *Collector) AddActiveWorkers(delta int64) {
	n := c.activeWorkers.Add(delta)
	if c.exporter != nil {
		c.exporter.activeWorkers.Set(float64(n))
	}
}

// PagesCrawled returns the crawled counter.
func (c *Collector) PagesCrawled() int64 { return c.pagesCrawled.Load() }

// PagesFailed returns the failed counter.
func (c *Collector) PagesFailed() int64 { return c.pagesFailed.Load() }

func bucket(ms int64) int {
	for i, bound := range bucketBounds {
		if ms < bound {
			return i
		}
	}
	return numBuckets - 1
}

func incr(mu *sync.RWMutex, m map[string]*atomic.Int64, key string) {
	mu.RLock()
	counter := m[key]
	mu.RUnlock()
	if counter == nil {
		mu.Lock()
		if counter = m[key]; counter == nil {
			counter = &atomic.Int64{}
			m[key] = counter
		}
		mu.Unlock()
	}
	counter.Add(1)
}

func copyCounts(mu *sync.RWMutex, m map[string]*atomic.Int64) map[string]int64 {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v.Load()
	}
	return out
}

// PagesPerSecond returns the crawl rate over the current 10s window.
func (c *Collector) PagesPerSecond() float64 {
	const window = 10 * time.Second
	now := time.Now().UnixNano()
	start := c.windowStart.Load()

	elapsed := time.Duration(now - start)
	if elapsed >= window {
		if c.windowStart.CompareAndSwap(start, now) {
			count := c.pagesInWindow.Swap(0)
			return float64(count) / elapsed.Seconds()
		}
		return 0
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(c.pagesInWindow.Load()) / elapsed.Seconds()
}

// AverageFetchTime returns the mean fetch duration.
func (c *Collector) AverageFetchTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:        time.Now(),
		Uptime:           time.Since(c.startTime),
		PagesCrawled:     c.pagesCrawled.Load(),
		PagesFailed:      c.pagesFailed.Load(),
		PagesDiscovered:  c.pagesDiscovered.Load(),
		RequestsTotal:    c.requestsTotal.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
		RetriesTotal:     c.retriesTotal.Load(),
		BytesTotal:       c.bytesTotal.Load(),
		FrontierDepth:    c.frontierDepth.Load(),
		ActiveWorkers:    c.activeWorkers.Load(),
		PagesPerSecond:   c.PagesPerSecond(),
		AverageFetchTime: c.AverageFetchTime(),
		ErrorCounts:      copyCounts(&c.errorMu, c.errorCounts),
		LabelCounts:      copyCounts(&c.labelMu, c.labelCounts),
		FetchTimeHist:    make([]int64, numBuckets),
	}
	for i := range s.FetchTimeHist {
		s.FetchTimeHist[i] = c.responseTimeBuckets[i].Load()
	}
	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp        time.Time        `json:"timestamp"`
	Uptime           time.Duration    `json:"uptime"`
	PagesCrawled     int64            `json:"pages_crawled"`
	PagesFailed      int64            `json:"pages_failed"`
	PagesDiscovered  int64            `json:"pages_discovered"`
	RequestsTotal    int64            `json:"requests_total"`
	ErrorsTotal      int64            `json:"errors_total"`
	RetriesTotal     int64            `json:"retries_total"`
	BytesTotal       int64            `json:"bytes_total"`
	FrontierDepth    int64            `json:"frontier_depth"`
	ActiveWorkers    int64            `json:"active_workers"`
	PagesPerSecond   float64          `json:"pages_per_second"`
	AverageFetchTime time.Duration    `json:"average_fetch_time"`
	ErrorCounts      map[string]int64 `json:"error_counts"`
	LabelCounts      map[string]int64 `json:"label_counts"`
	FetchTimeHist    []int64          `json:"fetch_time_histogram"`
}

// SuccessRate returns crawled / (crawled + failed).
func (s *Snapshot) SuccessRate() float64 {
	total := s.PagesCrawled + s.PagesFailed
	if total == 0 {
		return 0
	}
	return float64(s.PagesCrawled) / float64(total)
}

// Labels returns the category labels sorted by descending count, then name.
func (s *Snapshot) Labels() []string {
	labels := make([]string, 0, len(s.LabelCounts))
	for label := range s.LabelCounts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		a, b := s.LabelCounts[labels[i]], s.LabelCounts[labels[j]]
		if a != b {
			return a > b
		}
		return labels[i] < labels[j]
	})
	return labels
}

// Summary returns the fields used for the periodic status line.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":            s.Uptime.Round(time.Second).String(),
		"pages_crawled":     s.PagesCrawled,
		"pages_failed":      s.PagesFailed,
		"frontier":          s.FrontierDepth,
		"active_workers":    s.ActiveWorkers,
		"retries":           s.RetriesTotal,
		"pages_per_second":  s.PagesPerSecond,
		"avg_fetch_time_ms": s.AverageFetchTime.Milliseconds(),
	}
}
