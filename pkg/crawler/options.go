package crawler

import (
	"context"
	"io"
	"time"

	"github.com/PentesterFlow/WikiCrawler/internal/classify"
	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
	"github.com/PentesterFlow/WikiCrawler/internal/fetch"
	"github.com/PentesterFlow/WikiCrawler/internal/logger"
	"github.com/PentesterFlow/WikiCrawler/internal/metrics"
	"github.com/PentesterFlow/WikiCrawler/internal/sink"
	"github.com/PentesterFlow/WikiCrawler/internal/store"
)

// PageFetcher downloads a page. Failures are reported in the Result, never
// by panicking.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) *fetch.Result
}

// LinkExtractor returns the absolute article URLs found in a page.
type LinkExtractor interface {
	ExtractLinks(content []byte) []string
}

// PageClassifier labels a page. On error the returned category is still
// used, so implementations should return an unclassified one.
type PageClassifier interface {
	Classify(content []byte, title string) (classify.Category, error)
}

// Option is a functional option for configuring the Crawler.
type Option func(*Crawler) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) Option {
	return func(c *Crawler) error {
		if cfg == nil {
			return crawlerrors.NewConfigError("config", "nil config")
		}
		c.config = cfg.Clone()
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Crawler) error {
		c.log = log
		return nil
	}
}

// WithStore sets the page store. The caller keeps ownership and closes it.
func WithStore(s store.Store) Option {
	return func(c *Crawler) error {
		c.store = s
		return nil
	}
}

// WithSinks adds post-persist publishers. The caller closes them.
func WithSinks(sinks ...sink.Sink) Option {
	return func(c *Crawler) error {
		c.sinks = append(c.sinks, sinks...)
		return nil
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f PageFetcher) Option {
	return func(c *Crawler) error {
		c.fetcher = f
		return nil
	}
}

// WithClassifier replaces the page classifier.
func WithClassifier(cl PageClassifier) Option {
	return func(c *Crawler) error {
		c.classifier = cl
		return nil
	}
}

// WithExtractor replaces the link extractor.
func WithExtractor(e LinkExtractor) Option {
	return func(c *Crawler) error {
		c.extractor = e
		return nil
	}
}

// WithMetrics shares a metrics collector, for example one with an
// exporter attached.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crawler) error {
		c.metrics = m
		return nil
	}
}

// WithSeed sets the seed title or URL.
func WithSeed(seed string) Option {
	return func(c *Crawler) error {
		c.config.Seed = seed
		return nil
	}
}

// WithPreset applies a named rate/worker preset.
func WithPreset(name string) Option {
	return func(c *Crawler) error {
		return c.config.ApplyPreset(name)
	}
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(c *Crawler) error {
		c.config.Workers = n
		return nil
	}
}

// WithRateLimit sets the global request-start rate.
func WithRateLimit(rps float64) Option {
	return func(c *Crawler) error {
		c.config.RequestsPerSecond = rps
		return nil
	}
}

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) error {
		c.config.MaxDepth = depth
		return nil
	}
}

// WithMaxLinksPerPage caps how many new links one page may enqueue.
func WithMaxLinksPerPage(n int) Option {
	return func(c *Crawler) error {
		c.config.MaxLinksPerPage = n
		return nil
	}
}

// WithPollInterval sets the frontier wait used for idle detection.
func WithPollInterval(d time.Duration) Option {
	return func(c *Crawler) error {
		c.config.PollInterval = d
		return nil
	}
}

// WithMaxRuntime stops the crawl gracefully after d.
func WithMaxRuntime(d time.Duration) Option {
	return func(c *Crawler) error {
		c.config.MaxRuntime = d
		return nil
	}
}

// WithDataDir sets the storage directory.
func WithDataDir(dir string) Option {
	return func(c *Crawler) error {
		c.config.SetDataDir(dir)
		return nil
	}
}

// WithProgressOutput also draws the status line on w.
func WithProgressOutput(w io.Writer) Option {
	return func(c *Crawler) error {
		c.progressOut = w
		return nil
	}
}

// WithVerbose enables info-level logging.
func WithVerbose(verbose bool) Option {
	return func(c *Crawler) error {
		c.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(c *Crawler) error {
		c.config.Debug = debug
		return nil
	}
}
