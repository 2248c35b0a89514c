package crawler

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCrawlResult_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &CrawlResult{StartedAt: start, CompletedAt: start.Add(90 * time.Second)}

	if r.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", r.Duration())
	}
}

func TestCrawlResult_Interrupted(t *testing.T) {
	tests := []struct {
		reason StopReason
		want   bool
	}{
		{StopCompleted, false},
		{StopInterrupt, true},
		{StopMaxRuntime, true},
		{StopCanceled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			r := &CrawlResult{Reason: tt.reason}
			if got := r.Interrupted(); got != tt.want {
				t.Errorf("Interrupted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrawlStats_Processed(t *testing.T) {
	s := CrawlStats{PagesCrawled: 7, PagesFailed: 2, Skipped: 5}
	if s.Processed() != 9 {
		t.Errorf("Processed() = %d, want 9", s.Processed())
	}
}

func TestCrawlResult_JSON(t *testing.T) {
	r := &CrawlResult{
		Seed:   "http://en.wikipedia.org/wiki/Mario",
		Reason: StopMaxRuntime,
		Stats:  CrawlStats{PagesCrawled: 3, Queued: 12},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, want := range []string{`"reason":"max_runtime"`, `"pages_crawled":3`, `"queued":12`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON missing %s: %s", want, data)
		}
	}
}
