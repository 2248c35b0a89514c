package shutdown

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	h := New(DefaultConfig())
	if h == nil {
		t.Fatal("New() returned nil")
	}
	t.Cleanup(func() { _ = h.Shutdown() })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Errorf("Signals length = %d, want 2", len(cfg.Signals))
	}
}

// =============================================================================
// Signal Tests
// =============================================================================

func TestHandler_TriggerCancelsContext(t *testing.T) {
	var got atomic.Value
	h := New(Config{OnSignal: func(sig os.Signal) { got.Store(sig) }})
	t.Cleanup(func() { _ = h.Shutdown() })

	select {
	case <-h.Context().Done():
		t.Fatal("Context should not be done initially")
	default:
	}

	h.Trigger()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("Context should be done after Trigger")
	}
	if !h.Interrupted() {
		t.Error("Interrupted() = false after Trigger")
	}
	if got.Load() != os.Interrupt {
		t.Errorf("OnSignal got %v, want interrupt", got.Load())
	}
	if h.IsShuttingDown() {
		t.Error("Trigger alone should not run cleanup")
	}
}

func TestHandler_OnSignalRunsOnce(t *testing.T) {
	var calls atomic.Int32
	h := New(Config{OnSignal: func(os.Signal) { calls.Add(1) }})
	t.Cleanup(func() { _ = h.Shutdown() })

	h.Trigger()
	h.Trigger()

	if calls.Load() != 1 {
		t.Errorf("OnSignal calls = %d, want 1", calls.Load())
	}
}

func TestHandler_ParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewWithContext(parent, DefaultConfig())
	t.Cleanup(func() { _ = h.Shutdown() })

	cancel()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("Context should follow parent cancellation")
	}
	if h.Interrupted() {
		t.Error("parent cancellation is not an interrupt")
	}
}

// =============================================================================
// Shutdown Tests
// =============================================================================

func TestHandler_Shutdown_LIFO(t *testing.T) {
	h := NewDefault()
	order := make([]int, 0, 3)

	h.Register("first", func(ctx context.Context) error {
		order = append(order, 1)
		return nil
	})
	h.RegisterFunc("second", func() {
		order = append(order, 2)
	})
	h.Register("third", func(ctx context.Context) error {
		order = append(order, 3)
		return nil
	})

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if !h.IsShuttingDown() {
		t.Error("IsShuttingDown() = false after Shutdown")
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done should be closed after Shutdown")
	}
	select {
	case <-h.Context().Done():
	default:
		t.Error("Context should be canceled after Shutdown")
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestHandler_Shutdown_Errors(t *testing.T) {
	var onDoneErr error
	h := New(Config{OnDone: func(_ time.Duration, err error) { onDoneErr = err }})
	boom := errors.New("boom")

	h.RegisterCloser("store", closerFunc(func() error { return boom }))
	h.RegisterFunc("ok", func() {})

	err := h.Shutdown()
	if !errors.Is(err, boom) {
		t.Fatalf("Shutdown error = %v, want wrapped boom", err)
	}
	var cbErr *CallbackError
	if !errors.As(err, &cbErr) || cbErr.Name != "store" {
		t.Errorf("expected CallbackError for store, got %v", err)
	}
	if onDoneErr == nil {
		t.Error("OnDone should receive the error")
	}
}

func TestHandler_Shutdown_Idempotent(t *testing.T) {
	h := NewDefault()
	var calls atomic.Int64
	h.RegisterFunc("count", func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		go func() { _ = h.Shutdown() }()
	}
	_ = h.Shutdown()
	<-h.Done()

	if calls.Load() != 1 {
		t.Errorf("callback calls = %d, want 1", calls.Load())
	}
}

func TestHandler_Timeout(t *testing.T) {
	h := New(Config{Timeout: 50 * time.Millisecond})

	h.Register("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	start := time.Now()
	err := h.Shutdown()
	elapsed := time.Since(start)

	if err == nil {
		t.Error("expected a timeout error")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Shutdown took %v, should time out faster", elapsed)
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{CallbackName: "test"}
	if err.Error() != "shutdown callback timed out: test" {
		t.Errorf("Error() = %s", err.Error())
	}
}
