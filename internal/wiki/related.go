// Package wiki is a small client for the Wikipedia REST API.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
	"github.com/PentesterFlow/WikiCrawler/internal/fetch"
	"github.com/PentesterFlow/WikiCrawler/internal/parser"
	"github.com/PentesterFlow/WikiCrawler/internal/ratelimit"
)

// DefaultRelatedEndpoint serves /{title} related-page lookups.
const DefaultRelatedEndpoint = "https://en.wikipedia.org/api/rest_v1/page/related"

// Config configures the client.
type Config struct {
	Endpoint          string        `yaml:"endpoint" json:"endpoint"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
}

// DefaultConfig uses a 5s timeout and at most 5 requests per second.
func DefaultConfig() Config {
	return Config{
		Endpoint:          DefaultRelatedEndpoint,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 5,
		Burst:             1,
		UserAgent:         fetch.DefaultUserAgent,
	}
}

type relatedResponse struct {
	Pages []struct {
		Title string `json:"title"`
	} `json:"pages"`
}

// Client looks up related pages. Concurrent lookups of the same title share
// one request, and a run of failures opens a circuit breaker.
type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
	limiter   *ratelimit.Limiter
	breaker   *crawlerrors.Breaker
	group     singleflight.Group
}

// NewClient creates a client, filling zero fields from DefaultConfig.
func NewClient(cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Burst < 1 {
		cfg.Burst = defaults.Burst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		userAgent: cfg.UserAgent,
		limiter:   ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		breaker:   crawlerrors.NewBreaker(crawlerrors.DefaultBreakerConfig()),
	}
}

// Related returns the titles of pages related to title. On failure it
// returns an empty slice and the error.
func (c *Client) Related(ctx context.Context, title string) ([]string, error) {
	key := parser.TitleToPath(title)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		var titles []string
		err := c.breaker.Execute(func() error {
			var err error
			titles, err = c.fetch(ctx, key)
			return err
		})
		return titles, err
	})
	if err != nil {
		return []string{}, err
	}
	return v.([]string), nil
}

func (c *Client) fetch(ctx context.Context, key string) ([]string, error) {
	target := c.endpoint + "/" + url.PathEscape(key)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, crawlerrors.NewCanceledError(target, "related")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, crawlerrors.NewCrawlError(crawlerrors.Parse, target, "request_creation", "failed to create request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, crawlerrors.Categorize(err, target)
	}
	defer resp.Body.Close()

	if httpErr := crawlerrors.CategorizeHTTPStatus(resp.StatusCode, target); httpErr != nil {
		return nil, httpErr
	}

	var body relatedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, crawlerrors.NewParseError(target, "decode_related", err)
	}

	titles := make([]string, 0, len(body.Pages))
	for _, p := range body.Pages {
		if p.Title != "" {
			titles = append(titles, p.Title)
		}
	}
	return titles, nil
}

// BreakerState reports the circuit state, for diagnostics.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// String describes the client for log lines.
func (c *Client) String() string {
	return fmt.Sprintf("wiki.Client(%s)", c.endpoint)
}
