// Package errors defines the crawl error taxonomy and the retry policy used
// by the fetcher.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Timeout is a fetch attempt that exceeded its deadline.
	Timeout
	// Transport covers DNS, dial, TLS and connection-reset failures.
	Transport
	// HTTPStatus is a response with a 4xx or 5xx status.
	HTTPStatus
	// Persistence is a failed store or sink write.
	Persistence
	// Classification is a classifier failure. Pages degrade to "unclassified".
	Classification
	// Parse is an HTML or JSON decoding failure.
	Parse
	// Config is an invalid startup configuration.
	Config
	// Canceled is a context cancellation.
	Canceled
)

func (t ErrorType) String() string {
	switch t {
	case Timeout:
		return "timeout"
	case Transport:
		return "transport"
	case HTTPStatus:
		return "http_status"
	case Persistence:
		return "persistence"
	case Classification:
		return "classification"
	case Parse:
		return "parse"
	case Config:
		return "config"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsRetryable reports whether the fetcher retries errors of this type.
// Every fetch failure class is retried, including HTTP status errors.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case Timeout, Transport, HTTPStatus:
		return true
	default:
		return false
	}
}

// Sentinel errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrFrontierClosed = errors.New("frontier closed")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrCircuitOpen    = errors.New("circuit breaker is open")
)

// CrawlError is a categorized error tied to a URL and the operation that
// produced it.
type CrawlError struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
	Retryable  bool
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s: %v",
			e.Type, e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type, e.Operation, e.URL, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// Is matches another *CrawlError of the same type.
func (e *CrawlError) Is(target error) bool {
	t, ok := target.(*CrawlError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewCrawlError creates a CrawlError with Retryable derived from errType.
func NewCrawlError(errType ErrorType, url, operation, message string, cause error) *CrawlError {
	return &CrawlError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType.IsRetryable(),
	}
}

func NewTimeoutError(url string, cause error) *CrawlError {
	return NewCrawlError(Timeout, url, "fetch", "request timed out", cause)
}

func NewTransportError(url string, cause error) *CrawlError {
	return NewCrawlError(Transport, url, "fetch", "transport failure", cause)
}

// NewHTTPError creates an error for a non-2xx response.
func NewHTTPError(url string, statusCode int) *CrawlError {
	err := NewCrawlError(HTTPStatus, url, "fetch", fmt.Sprintf("server returned %d", statusCode), nil)
	err.StatusCode = statusCode
	return err
}

func NewPersistenceError(url, operation string, cause error) *CrawlError {
	return NewCrawlError(Persistence, url, operation, "write failed", cause)
}

func NewClassificationError(url string, cause error) *CrawlError {
	return NewCrawlError(Classification, url, "classify", "classification failed", cause)
}

func NewParseError(url, operation string, cause error) *CrawlError {
	return NewCrawlError(Parse, url, operation, "parsing failed", cause)
}

// NewConfigError wraps ErrInvalidConfig with the offending field.
func NewConfigError(field, message string) *CrawlError {
	return NewCrawlError(Config, "", "validate", field+": "+message, ErrInvalidConfig)
}

func NewCanceledError(url, operation string) *CrawlError {
	return NewCrawlError(Canceled, url, operation, "operation canceled", context.Canceled)
}

// Categorize maps a raw error from the HTTP stack onto the taxonomy.
func Categorize(err error, url string) *CrawlError {
	if err == nil {
		return nil
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCanceledError(url, "fetch")
	}
	if isTimeout(err) {
		return NewTimeoutError(url, err)
	}
	if isTransport(err) {
		return NewTransportError(url, err)
	}

	return NewCrawlError(Unknown, url, "fetch", err.Error(), err)
}

// CategorizeHTTPStatus returns nil for 1xx-3xx and an HTTPStatus error otherwise.
func CategorizeHTTPStatus(statusCode int, url string) *CrawlError {
	if statusCode < 400 {
		return nil
	}
	return NewHTTPError(url, statusCode)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

func isTransport(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// Anything the client returns wrapped in *url.Error that is not a
	// timeout is a transport-level failure (bad scheme, EOF, TLS).
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsRetryable reports whether err should be retried by the fetcher.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Retryable
	}

	return isTimeout(err) || isTransport(err)
}

// GetStatusCode extracts the HTTP status code from err, or 0.
func GetStatusCode(err error) int {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.StatusCode
	}
	return 0
}

// GetErrorType extracts the ErrorType from err, or Unknown.
func GetErrorType(err error) ErrorType {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type
	}
	return Unknown
}
