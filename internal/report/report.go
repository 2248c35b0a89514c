// Package report renders end-of-crawl reports as JSON and Markdown.
package report

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
	"github.com/PentesterFlow/WikiCrawler/internal/metrics"
	"github.com/PentesterFlow/WikiCrawler/internal/store"
)

// File names written by WriteFiles.
const (
	JSONFile     = "report.json"
	MarkdownFile = "report.md"
)

// Report summarizes one crawl, or the pages currently in a store.
type Report struct {
	Seed        string        `json:"seed,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration,omitempty"`
	Interrupted bool          `json:"interrupted"`

	PagesCrawled  int64 `json:"pages_crawled"`
	PagesFailed   int64 `json:"pages_failed"`
	LinksQueued   int64 `json:"links_queued"`
	RequestsTotal int64 `json:"requests_total"`
	RetriesTotal  int64 `json:"retries_total"`

	Topics      []TopicCount     `json:"topics"`
	Depths      []DepthCount     `json:"depths,omitempty"`
	ErrorCounts map[string]int64 `json:"error_counts,omitempty"`
}

// TopicCount is the number of pages with a category label.
type TopicCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// DepthCount is the number of pages found at a crawl depth.
type DepthCount struct {
	Depth int   `json:"depth"`
	Count int64 `json:"count"`
}

// FromSnapshot builds a report from live crawl statistics.
func FromSnapshot(seed string, started time.Time, snap *metrics.Snapshot, interrupted bool) *Report {
	r := &Report{
		Seed:          seed,
		StartedAt:     started,
		FinishedAt:    snap.Timestamp,
		Duration:      snap.Timestamp.Sub(started),
		Interrupted:   interrupted,
		PagesCrawled:  snap.PagesCrawled,
		PagesFailed:   snap.PagesFailed,
		LinksQueued:   snap.PagesDiscovered,
		RequestsTotal: snap.RequestsTotal,
		RetriesTotal:  snap.RetriesTotal,
		ErrorCounts:   snap.ErrorCounts,
	}
	for _, label := range snap.Labels() {
		r.Topics = append(r.Topics, TopicCount{Label: label, Count: snap.LabelCounts[label]})
	}
	return r
}

// FromRecords builds a report from stored page records.
func FromRecords(records []*store.PageRecord) *Report {
	r := &Report{FinishedAt: time.Now()}

	labels := make(map[string]int64)
	depths := make(map[int]int64)
	for _, rec := range records {
		r.PagesCrawled++
		labels[rec.Category.Label]++
		depths[rec.Depth]++
		r.LinksQueued += int64(len(rec.Links))
	}

	for label, n := range labels {
		r.Topics = append(r.Topics, TopicCount{Label: label, Count: n})
	}
	sort.Slice(r.Topics, func(i, j int) bool {
		if r.Topics[i].Count != r.Topics[j].Count {
			return r.Topics[i].Count > r.Topics[j].Count
		}
		return r.Topics[i].Label < r.Topics[j].Label
	})

	for depth, n := range depths {
		r.Depths = append(r.Depths, DepthCount{Depth: depth, Count: n})
	}
	sort.Slice(r.Depths, func(i, j int) bool { return r.Depths[i].Depth < r.Depths[j].Depth })

	return r
}

// WriteFiles writes report.json and report.md into dir.
func WriteFiles(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return crawlerrors.NewPersistenceError(dir, "mkdir", err)
	}

	targets := []struct {
		name   string
		format Format
	}{
		{JSONFile, FormatJSON},
		{MarkdownFile, FormatMarkdown},
	}

	for _, target := range targets {
		path := filepath.Join(dir, target.name)
		f, err := os.Create(path)
		if err != nil {
			return crawlerrors.NewPersistenceError(path, "create", err)
		}
		werr := NewWriter(f, target.format).Write(r)
		cerr := f.Close()
		if werr != nil {
			return crawlerrors.NewPersistenceError(path, "write", werr)
		}
		if cerr != nil {
			return crawlerrors.NewPersistenceError(path, "close", cerr)
		}
	}
	return nil
}
