package errors

import (
	"context"
	"time"
)

// RetryConfig configures the fetch retry policy.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first
	Delay       time.Duration // base delay; the wait after attempt i is Delay*i
	MaxDelay    time.Duration // 0 means uncapped
}

// DefaultRetryConfig returns 3 attempts with a 1s linear step.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Second,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier runs an operation with linear backoff between attempts.
type Retrier struct {
	config RetryConfig
	sleep  SleepFunc
}

// NewRetrier creates a retrier. MaxAttempts below 1 is treated as 1.
func NewRetrier(config RetryConfig) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Retrier{config: config, sleep: sleepContext}
}

// NewDefaultRetrier creates a retrier with DefaultRetryConfig.
func NewDefaultRetrier() *Retrier {
	return NewRetrier(DefaultRetryConfig())
}

// WithSleep replaces the sleep function. Used by tests to observe backoff.
func (r *Retrier) WithSleep(fn SleepFunc) *Retrier {
	r.sleep = fn
	return r
}

// Config returns the retry configuration.
func (r *Retrier) Config() RetryConfig {
	return r.config
}

// RetryFunc is one attempt. attempt starts at 1.
type RetryFunc func(ctx context.Context, attempt int) error

// RetryResult describes how an operation finished.
type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
	Success   bool
	Delays    []time.Duration // waits actually performed, in order
}

// Backoff returns the wait after the given 1-based attempt.
func (r *Retrier) Backoff(attempt int) time.Duration {
	d := r.config.Delay * time.Duration(attempt)
	if r.config.MaxDelay > 0 && d > r.config.MaxDelay {
		return r.config.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached. No wait follows the final attempt.
func (r *Retrier) Do(ctx context.Context, operation, url string, fn RetryFunc) *RetryResult {
	result := &RetryResult{}
	start := time.Now()

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			result.LastError = NewCanceledError(url, operation)
			break
		}

		result.Attempts = attempt
		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			break
		}
		result.LastError = err

		if attempt == r.config.MaxAttempts || !IsRetryable(err) {
			break
		}

		wait := r.Backoff(attempt)
		if err := r.sleep(ctx, wait); err != nil {
			result.LastError = NewCanceledError(url, operation)
			break
		}
		result.Delays = append(result.Delays, wait)
	}

	result.Duration = time.Since(start)
	return result
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, r *Retrier, operation, url string, fn func(ctx context.Context, attempt int) (T, error)) (T, *RetryResult) {
	var value T
	res := r.Do(ctx, operation, url, func(ctx context.Context, attempt int) error {
		v, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	return value, res
}
