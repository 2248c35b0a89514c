// Package frontier holds the pending crawl work for one session: a FIFO of
// tasks plus the visited set that decides which URLs may enter it.
package frontier

import (
	"errors"
	"sync"
	"time"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
)

// Task is one unit of crawl work. It is never mutated after creation.
type Task struct {
	URL        string    `json:"url"`
	Depth      int       `json:"depth"`
	ParentURL  string    `json:"parent_url,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ErrUnclaimed is returned by Push for a URL that never went through TryClaim.
var ErrUnclaimed = errors.New("frontier: task url was not claimed")

// Frontier is a FIFO of claimed tasks shared by all workers.
type Frontier struct {
	visited *VisitedSet

	mu     sync.Mutex
	items  []Task
	head   int
	wake   chan struct{}
	closed bool

	pushed uint64
	popped uint64
}

// New creates an empty frontier backed by visited. A nil visited set gets
// a default-sized one.
func New(visited *VisitedSet) *Frontier {
	if visited == nil {
		visited = NewVisitedSet(0)
	}
	return &Frontier{
		visited: visited,
		wake:    make(chan struct{}),
	}
}

// Visited exposes the underlying visited set.
func (f *Frontier) Visited() *VisitedSet {
	return f.visited
}

// TryClaim atomically marks url visited. Only the caller that gets true may
// Push a task for it.
func (f *Frontier) TryClaim(url string) bool {
	return f.visited.TryClaim(url)
}

// Push appends a claimed task and wakes one waiting Pop.
func (f *Frontier) Push(task Task) error {
	if !f.visited.Contains(task.URL) {
		return ErrUnclaimed
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return crawlerrors.ErrFrontierClosed
	}
	f.items = append(f.items, task)
	f.pushed++
	f.broadcast()
	return nil
}

// ClaimAndPush claims task.URL and pushes the task when the claim is won.
// It returns false when the URL was already visited.
func (f *Frontier) ClaimAndPush(task Task) (bool, error) {
	if !f.TryClaim(task.URL) {
		return false, nil
	}
	if err := f.Push(task); err != nil {
		return true, err
	}
	return true, nil
}

// broadcast must be called with mu held.
func (f *Frontier) broadcast() {
	close(f.wake)
	f.wake = make(chan struct{})
}

// Pop removes the oldest task, waiting up to timeout for one to arrive. The
// second result is false when the wait expired or the frontier was closed
// and drained.
func (f *Frontier) Pop(timeout time.Duration) (Task, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		f.mu.Lock()
		if task, ok := f.takeLocked(); ok {
			f.mu.Unlock()
			return task, true
		}
		if f.closed {
			f.mu.Unlock()
			return Task{}, false
		}
		wake := f.wake
		f.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return Task{}, false
		}
	}
}

// TryPop removes the oldest task without waiting.
func (f *Frontier) TryPop() (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takeLocked()
}

func (f *Frontier) takeLocked() (Task, bool) {
	if f.head >= len(f.items) {
		return Task{}, false
	}
	task := f.items[f.head]
	f.items[f.head] = Task{}
	f.head++
	f.popped++

	// Compact once the consumed prefix dominates the backing array.
	if f.head > 1024 && f.head*2 >= len(f.items) {
		n := copy(f.items, f.items[f.head:])
		f.items = f.items[:n]
		f.head = 0
	}
	return task, true
}

// Len returns the number of pending tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) - f.head
}

// IsEmpty reports whether no tasks are pending.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// Close stops further pushes and releases waiting Pops once drained.
func (f *Frontier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.broadcast()
	return nil
}

// Stats is a snapshot of frontier counters.
type Stats struct {
	Pending int    `json:"pending"`
	Pushed  uint64 `json:"pushed"`
	Popped  uint64 `json:"popped"`
	Visited int    `json:"visited"`
}

// Stats returns current counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	s := Stats{Pending: len(f.items) - f.head, Pushed: f.pushed, Popped: f.popped}
	f.mu.Unlock()
	s.Visited = f.visited.Len()
	return s
}
