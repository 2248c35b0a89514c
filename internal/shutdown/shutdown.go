// Package shutdown turns interrupt signals into a graceful crawl stop and
// runs cleanup callbacks once the crawl has drained.
package shutdown

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Callback is a cleanup step run during Shutdown.
type Callback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds each cleanup callback.
	Timeout time.Duration
	Signals []os.Signal
	// OnSignal runs once, on the first signal, before the context is
	// canceled.
	OnSignal func(sig os.Signal)
	// OnDone receives the elapsed cleanup time and any callback errors.
	OnDone func(elapsed time.Duration, err error)
}

// DefaultConfig handles SIGINT and SIGTERM with a 30s callback timeout.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

type namedCallback struct {
	name string
	fn   Callback
}

// Handler manages graceful shutdown. A signal cancels Context so the crawl
// can stop taking work; Shutdown then runs the registered callbacks in
// reverse order of registration.
type Handler struct {
	mu        sync.Mutex
	callbacks []namedCallback

	interrupted  atomic.Bool
	shuttingDown atomic.Bool
	done         chan struct{}
	timeout      time.Duration
	err          error

	ctx    context.Context
	cancel context.CancelFunc

	sigChan  chan os.Signal
	stopOnce sync.Once
	onSignal func(sig os.Signal)
	onDone   func(elapsed time.Duration, err error)
}

// New creates a handler and starts listening for cfg.Signals.
func New(cfg Config) *Handler {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext is New with a parent context; canceling parent has the
// same effect as a signal.
func NewWithContext(parent context.Context, cfg Config) *Handler {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = defaults.Signals
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		done:     make(chan struct{}),
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		sigChan:  make(chan os.Signal, 1),
		onSignal: cfg.OnSignal,
		onDone:   cfg.OnDone,
	}

	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()
	return h
}

// NewDefault creates a handler with default configuration.
func NewDefault() *Handler {
	return New(DefaultConfig())
}

func (h *Handler) listen() {
	select {
	case sig := <-h.sigChan:
		h.interrupt(sig)
	case <-h.ctx.Done():
	case <-h.done:
	}
}

func (h *Handler) interrupt(sig os.Signal) {
	if !h.interrupted.CompareAndSwap(false, true) {
		return
	}
	if h.onSignal != nil {
		h.onSignal(sig)
	}
	h.cancel()
}

// Register adds a cleanup callback.
func (h *Handler) Register(name string, callback Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, namedCallback{name: name, fn: callback})
}

// RegisterFunc registers a cleanup function that cannot fail.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// RegisterCloser registers c.Close.
func (h *Handler) RegisterCloser(name string, c io.Closer) {
	h.Register(name, func(context.Context) error {
		return c.Close()
	})
}

// Context is canceled on the first signal, on Trigger, or when Shutdown
// starts.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether a signal (or Trigger) was received.
func (h *Handler) Interrupted() bool {
	return h.interrupted.Load()
}

// IsShuttingDown returns whether Shutdown has started.
func (h *Handler) IsShuttingDown() bool {
	return h.shuttingDown.Load()
}

// Done is closed when Shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Trigger behaves like receiving SIGINT.
func (h *Handler) Trigger() {
	h.interrupt(os.Interrupt)
}

// Shutdown cancels Context, runs the callbacks in LIFO order and returns
// their joined errors. Later calls wait for the first and return its result.
func (h *Handler) Shutdown() error {
	if !h.shuttingDown.CompareAndSwap(false, true) {
		<-h.done
		return h.err
	}

	start := time.Now()
	h.stopSignals()
	h.cancel()

	h.mu.Lock()
	callbacks := make([]namedCallback, len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	var errs []error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := h.executeCallback(callbacks[i]); err != nil {
			errs = append(errs, err)
		}
	}
	h.err = errors.Join(errs...)

	if h.onDone != nil {
		h.onDone(time.Since(start), h.err)
	}
	close(h.done)
	return h.err
}

func (h *Handler) stopSignals() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
	})
}

// executeCallback runs one callback under its own timeout.
func (h *Handler) executeCallback(cb namedCallback) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cb.fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &CallbackError{Name: cb.name, Err: err}
		}
		return nil
	case <-ctx.Done():
		return &TimeoutError{CallbackName: cb.name}
	}
}

// TimeoutError is returned when a callback times out.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}

// CallbackError wraps a failed callback with its name.
type CallbackError struct {
	Name string
	Err  error
}

func (e *CallbackError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
