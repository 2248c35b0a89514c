// Package fetch provides the page fetcher used by crawl workers.
package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
	"github.com/PentesterFlow/WikiCrawler/internal/logger"
)

// DefaultUserAgent identifies the crawler to Wikipedia.
const DefaultUserAgent = "WikiCrawler/1.0 (+https://github.com/PentesterFlow/WikiCrawler)"

// Config holds configuration for the fetcher.
type Config struct {
	Timeout             time.Duration     `yaml:"timeout" json:"timeout"` // per attempt
	Retries             int               `yaml:"retries" json:"retries"`
	RetryDelay          time.Duration     `yaml:"retry_delay" json:"retry_delay"`
	MaxBodySize         int64             `yaml:"max_body_size" json:"max_body_size"`
	UserAgent           string            `yaml:"user_agent" json:"user_agent"`
	Headers             map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	ProxyURL            string            `yaml:"proxy_url,omitempty" json:"proxy_url,omitempty"`
	MaxIdleConns        int               `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int               `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	MaxConnsPerHost     int               `yaml:"max_conns_per_host" json:"max_conns_per_host"`
	SkipTLSVerify       bool              `yaml:"skip_tls_verify" json:"skip_tls_verify"`
}

// DefaultConfig returns 3 attempts of 10s each with a 1s linear backoff step.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		Retries:             3,
		RetryDelay:          time.Second,
		MaxBodySize:         5 * 1024 * 1024,
		UserAgent:           DefaultUserAgent,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     20,
	}
}

// Result is the outcome of a fetch. Err is nil on success.
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
	Duration    time.Duration
	Err         error
}

// OK reports whether the fetch produced a body.
func (r *Result) OK() bool {
	return r != nil && r.Err == nil
}

// Fetcher performs GET requests with bounded retries. It never panics on
// network failure: every failure is reported through Result.Err.
type Fetcher struct {
	client  *http.Client
	config  Config
	retrier *crawlerrors.Retrier
	log     *logger.Logger
	mu      sync.RWMutex
	headers map[string]string
}

// New creates a fetcher. It fails only when ProxyURL cannot be used.
func New(config Config) (*Fetcher, error) {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Retries < 1 {
		config.Retries = defaults.Retries
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaults.MaxBodySize
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	transport, err := newTransport(config)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		config: config,
		retrier: crawlerrors.NewRetrier(crawlerrors.RetryConfig{
			MaxAttempts: config.Retries,
			Delay:       config.RetryDelay,
		}),
		log:     logger.Nop(),
		headers: config.Headers,
	}, nil
}

func newTransport(config Config) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	if config.ProxyURL == "" {
		return transport, nil
	}

	proxyURL, err := url.Parse(config.ProxyURL)
	if err != nil {
		return nil, crawlerrors.NewConfigError("proxy_url", err.Error())
	}

	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(proxyURL, dialer)
		if err != nil {
			return nil, crawlerrors.NewConfigError("proxy_url", err.Error())
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, crawlerrors.NewConfigError("proxy_url", "dialer does not support contexts")
		}
		transport.Proxy = nil
		transport.DialContext = cd.DialContext
	default:
		return nil, crawlerrors.NewConfigError("proxy_url", fmt.Sprintf("unsupported scheme %q", proxyURL.Scheme))
	}

	return transport, nil
}

// SetLogger sets the logger used for retry diagnostics.
func (f *Fetcher) SetLogger(log *logger.Logger) {
	if log != nil {
		f.log = log.WithComponent("fetch")
	}
}

// SetRetrier replaces the retry policy.
func (f *Fetcher) SetRetrier(r *crawlerrors.Retrier) {
	f.retrier = r
}

// SetHeaders sets extra headers sent with every request.
func (f *Fetcher) SetHeaders(headers map[string]string) {
	f.mu.Lock()
	f.headers = headers
	f.mu.Unlock()
}

// Config returns the effective configuration.
func (f *Fetcher) Config() Config {
	return f.config
}

// Fetch downloads targetURL, retrying every failure class with a linear
// backoff. Each attempt gets its own timeout.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) *Result {
	start := time.Now()
	result := &Result{URL: targetURL}

	retry := f.retrier.Do(ctx, "fetch", targetURL, func(ctx context.Context, attempt int) error {
		err := f.attempt(ctx, targetURL, result)
		if err != nil && attempt < f.retrier.Config().MaxAttempts && crawlerrors.IsRetryable(err) {
			f.log.Event(logger.DebugLevel).
				Str("url", targetURL).
				Int("attempt", attempt).
				Str("error_type", crawlerrors.GetErrorType(err).String()).
				Dur("backoff", f.retrier.Backoff(attempt)).
				Msg("Retrying fetch")
		}
		return err
	})

	result.Attempts = retry.Attempts
	result.Duration = time.Since(start)
	if !retry.Success {
		result.Body = nil
		result.Err = retry.LastError
	}
	return result
}

// attempt performs a single GET bounded by the per-attempt timeout.
func (f *Fetcher) attempt(ctx context.Context, targetURL string, result *Result) error {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return crawlerrors.NewCrawlError(crawlerrors.Parse, targetURL, "request_creation", "failed to create request", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	f.mu.RLock()
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	f.mu.RUnlock()

	resp, err := f.client.Do(req)
	if err != nil {
		return crawlerrors.Categorize(err, targetURL)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.FinalURL = resp.Request.URL.String()
	result.ContentType = resp.Header.Get("Content-Type")

	if httpErr := crawlerrors.CategorizeHTTPStatus(resp.StatusCode, targetURL); httpErr != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return httpErr
	}

	body, err := readBody(resp.Body, result.ContentType, f.config.MaxBodySize)
	if err != nil {
		categorized := crawlerrors.Categorize(err, targetURL)
		if categorized.Type == crawlerrors.Unknown {
			return crawlerrors.NewCrawlError(crawlerrors.Transport, targetURL, "body_read", "failed to read body", err)
		}
		return categorized
	}
	result.Body = body
	return nil
}

// readBody reads at most limit bytes. Bodies that are not valid UTF-8 are
// decoded using the Content-Type header or a <meta charset> sniff.
func readBody(r io.Reader, contentType string, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, err
	}
	if utf8.Valid(raw) {
		return raw, nil
	}

	decoded, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return raw, nil
	}
	out, err := io.ReadAll(decoded)
	if err != nil {
		return raw, nil
	}
	return out, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}
