// Package progress reports crawl status while a crawl runs and prints the
// final summary.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PentesterFlow/WikiCrawler/internal/logger"
	"github.com/PentesterFlow/WikiCrawler/internal/metrics"
)

// DefaultInterval is how often the status line is emitted.
const DefaultInterval = 10 * time.Second

// QueueLen reports the number of queued tasks.
type QueueLen func() int

// Reporter periodically snapshots crawl statistics. It only reads atomic
// counters, so it never delays workers.
type Reporter struct {
	stats    *metrics.Collector
	queue    QueueLen
	log      *logger.Logger
	interval time.Duration

	mu       sync.Mutex
	out      io.Writer
	lastLine string
	ticks    int
}

// New creates a reporter. queue may be nil.
func New(stats *metrics.Collector, queue QueueLen, log *logger.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reporter{
		stats:    stats,
		queue:    queue,
		log:      log.WithComponent("progress"),
		interval: interval,
	}
}

// SetOutput also writes a single updating status line to w, for terminals.
func (r *Reporter) SetOutput(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = w
}

// Run reports every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finishLine()
			return nil
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report emits one status update immediately.
func (r *Reporter) Report() *metrics.Snapshot {
	if r.queue != nil {
		r.stats.SetFrontierDepth(r.queue())
	}
	snap := r.stats.Snapshot()
	r.log.StatsEvent(snap.Summary())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
	if r.out != nil {
		line := StatusLine(snap)
		if len(line) < len(r.lastLine) {
			fmt.Fprint(r.out, "\r"+strings.Repeat(" ", len(r.lastLine)))
		}
		fmt.Fprint(r.out, "\r"+line)
		r.lastLine = line
	}
	return snap
}

// Ticks returns how many reports have been emitted.
func (r *Reporter) Ticks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func (r *Reporter) finishLine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out != nil && r.lastLine != "" {
		fmt.Fprintln(r.out)
		r.lastLine = ""
	}
}

// StatusLine formats a snapshot as a one-line status.
func StatusLine(s *metrics.Snapshot) string {
	return fmt.Sprintf("Crawled: %d | Failed: %d | Queue: %d | Workers: %d | %.1f p/s | %s",
		s.PagesCrawled, s.PagesFailed, s.FrontierDepth, s.ActiveWorkers, s.PagesPerSecond, FormatDuration(s.Uptime))
}

// PrintSummary prints the end-of-crawl summary.
func PrintSummary(w io.Writer, seed string, s *metrics.Snapshot, elapsed time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                       Crawl Complete                         ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Seed:                %s\n", truncate(seed, 50))
	fmt.Fprintf(w, "  Duration:            %s\n", FormatDuration(elapsed))
	fmt.Fprintf(w, "  Pages Crawled:       %d\n", s.PagesCrawled)
	fmt.Fprintf(w, "  Pages Failed:        %d\n", s.PagesFailed)
	fmt.Fprintf(w, "  Links Queued:        %d\n", s.PagesDiscovered)
	fmt.Fprintf(w, "  Requests:            %d (%d retries)\n", s.RequestsTotal, s.RetriesTotal)

	if elapsed.Seconds() > 0 {
		fmt.Fprintf(w, "  Average Speed:       %.1f pages/sec\n", float64(s.PagesCrawled)/elapsed.Seconds())
	}

	if labels := s.Labels(); len(labels) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Topics:")
		for i, label := range labels {
			if i == 10 {
				fmt.Fprintf(w, "    ... and %d more\n", len(labels)-i)
				break
			}
			fmt.Fprintf(w, "    %-24s %d\n", truncate(label, 24), s.LabelCounts[label])
		}
	}
	fmt.Fprintln(w)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// FormatDuration formats a duration as 1h02m03s, 2m03s or 3s.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
