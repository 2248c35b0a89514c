package frontier

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// VisitedSet records every URL claimed during one crawl session.
//
// The bloom filter answers most "never seen" checks without touching the
// map; the map settles bloom false positives. Both live under one mutex so
// that test-and-insert is a single step.
type VisitedSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

// NewVisitedSet sizes the bloom filter for estimatedURLs at a 0.1% false
// positive rate.
func NewVisitedSet(estimatedURLs int) *VisitedSet {
	if estimatedURLs < 1000 {
		estimatedURLs = 1000
	}
	return &VisitedSet{
		filter: bloom.NewWithEstimates(uint(estimatedURLs), 0.001),
		exact:  make(map[string]struct{}, estimatedURLs/4),
	}
}

// TryClaim inserts url and returns true if it was absent. It returns false
// if url was already claimed. Exactly one caller ever wins for a given url.
func (v *VisitedSet) TryClaim(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.filter.TestString(url) {
		if _, ok := v.exact[url]; ok {
			return false
		}
	}
	v.filter.AddString(url)
	v.exact[url] = struct{}{}
	return true
}

// Contains reports whether url has been claimed.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.filter.TestString(url) {
		return false
	}
	_, ok := v.exact[url]
	return ok
}

// Len returns the number of claimed URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.exact)
}

// URLs returns a copy of all claimed URLs in no particular order.
func (v *VisitedSet) URLs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	urls := make([]string, 0, len(v.exact))
	for u := range v.exact {
		urls = append(urls, u)
	}
	return urls
}
