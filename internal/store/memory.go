package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore keeps records in a map. Records are copied on the way in and
// out so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]PageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]PageRecord)}
}

func (s *MemoryStore) Save(ctx context.Context, title string, record *PageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[title] = copyRecord(record)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, title string) (*PageRecord, error) {
	s.mu.RLock()
	r, ok := s.records[title]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(title)
	}
	out := copyRecord(&r)
	return &out, nil
}

// List returns records sorted by title.
func (s *MemoryStore) List(ctx context.Context) ([]*PageRecord, error) {
	s.mu.RLock()
	titles := make([]string, 0, len(s.records))
	for t := range s.records {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	records := make([]*PageRecord, 0, len(titles))
	for _, t := range titles {
		rec := s.records[t]
		r := copyRecord(&rec)
		records = append(records, &r)
	}
	s.mu.RUnlock()
	return records, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyRecord(r *PageRecord) PageRecord {
	out := *r
	out.Links = slices.Clone(r.Links)
	out.Category.Topics = slices.Clone(r.Category.Topics)
	out.Category.Categories = slices.Clone(r.Category.Categories)
	return out
}
