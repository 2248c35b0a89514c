package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/WikiCrawler/internal/classify"
	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
	"github.com/PentesterFlow/WikiCrawler/internal/fetch"
	"github.com/PentesterFlow/WikiCrawler/internal/frontier"
	"github.com/PentesterFlow/WikiCrawler/internal/logger"
	"github.com/PentesterFlow/WikiCrawler/internal/metrics"
	"github.com/PentesterFlow/WikiCrawler/internal/parser"
	"github.com/PentesterFlow/WikiCrawler/internal/progress"
	"github.com/PentesterFlow/WikiCrawler/internal/ratelimit"
	"github.com/PentesterFlow/WikiCrawler/internal/report"
	"github.com/PentesterFlow/WikiCrawler/internal/scope"
	"github.com/PentesterFlow/WikiCrawler/internal/sink"
	"github.com/PentesterFlow/WikiCrawler/internal/store"
)

// Crawler is the crawl coordinator. It owns the frontier, the rate gate and
// the worker pool; a Crawler runs once.
type Crawler struct {
	config *Config
	log    *logger.Logger

	fetcher    PageFetcher
	extractor  LinkExtractor
	classifier PageClassifier
	store      store.Store
	sinks      []sink.Sink
	metrics    *metrics.Collector

	frontier *frontier.Frontier
	gate     *ratelimit.Gate

	progressOut io.Writer

	// closers are resources the crawler opened itself, released LIFO
	// after the pool has drained.
	closers []namedCloser

	started   atomic.Bool
	running   atomic.Bool
	startTime time.Time

	// pending counts tasks that are queued or being processed. It reaches
	// zero only when no worker can produce more work.
	pending  atomic.Int64
	inFlight atomic.Int64
	claimed  atomic.Int64
	skipped  atomic.Int64

	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	reason   StopReason
}

type namedCloser struct {
	name  string
	close func() error
}

// New creates a crawler with the given options.
func New(opts ...Option) (*Crawler, error) {
	c := &Crawler{
		config: DefaultConfig(),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.log == nil {
		logLevel := logger.InfoLevel
		if c.config.Debug {
			logLevel = logger.DebugLevel
		} else if !c.config.Verbose {
			logLevel = logger.WarnLevel
		}
		cfg := logger.DefaultConfig()
		cfg.Level = logLevel
		cfg.Component = "coordinator"
		c.log = logger.New(cfg)
	}

	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	if c.config.MetricsAddr != "" && c.metrics.Exporter() == nil {
		c.metrics.AttachExporter(metrics.NewExporter())
	}

	c.frontier = frontier.New(frontier.NewVisitedSet(estimateURLs(c.config)))
	c.gate = ratelimit.NewGate(c.config.RequestsPerSecond)

	return c, nil
}

// estimateURLs sizes the visited set for a full crawl, capped so deep
// configurations do not allocate a huge filter up front.
func estimateURLs(cfg *Config) int {
	const maxEstimate = 1_000_000
	n := 1
	for i := 0; i < cfg.MaxDepth; i++ {
		n *= cfg.MaxLinksPerPage
		if n >= maxEstimate {
			return maxEstimate
		}
	}
	return n
}

// initialize builds every collaborator that was not injected.
func (c *Crawler) initialize(ctx context.Context) error {
	var extractor *parser.LinkExtractor
	if c.extractor == nil || c.classifier == nil {
		policy, err := scope.NewPolicy(c.config.Scope)
		if err != nil {
			return err
		}
		extractor = parser.NewLinkExtractor(c.config.BaseURL, policy)
	}
	if c.extractor == nil {
		c.extractor = extractor
	}

	if c.classifier == nil {
		var tree classify.Tree
		if c.config.CategoryTree != "" {
			t, err := classify.LoadTree(c.config.CategoryTree)
			if err != nil {
				return err
			}
			tree = t
		}
		resolver, err := classify.NewResolver(tree)
		if err != nil {
			return err
		}
		c.own("category-resolver", resolver.Close)
		c.classifier = classify.New(parser.NewArticleParser(extractor), resolver)
	}

	if c.fetcher == nil {
		f, err := fetch.New(c.config.Fetch)
		if err != nil {
			return crawlerrors.NewConfigError("fetch", err.Error())
		}
		f.SetLogger(c.log.WithComponent("fetcher"))
		c.own("fetcher", func() error {
			f.Close()
			return nil
		})
		c.fetcher = f
	}

	if c.store == nil {
		cfg := c.config.Store
		cfg.Dir = c.config.DataDir()
		s, err := store.Open(ctx, cfg)
		if err != nil {
			return err
		}
		c.own("store", s.Close)
		c.store = s
	}

	if len(c.sinks) == 0 {
		sinks, err := sink.Open(c.config.Sinks)
		if err != nil {
			return err
		}
		if len(sinks) > 0 {
			c.own("sinks", func() error { return sink.CloseAll(sinks) })
		}
		c.sinks = sinks
	}

	return nil
}

func (c *Crawler) own(name string, fn func() error) {
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

// Run crawls from the seed until the frontier drains, Stop is called,
// MaxRuntime elapses or ctx is canceled. Per-page failures never make Run
// fail; the error is reserved for setup problems.
func (c *Crawler) Run(ctx context.Context) (*CrawlResult, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("crawler has already been started")
	}

	if err := c.initialize(ctx); err != nil {
		c.cleanup()
		return nil, err
	}
	defer c.cleanup()

	c.running.Store(true)
	defer c.running.Store(false)

	c.startTime = time.Now()
	seedURL := c.config.SeedURL()

	c.log.Event(logger.InfoLevel).
		Str("seed", seedURL).
		Int("workers", c.config.Workers).
		Float64("rps", c.config.RequestsPerSecond).
		Int("max_depth", c.config.MaxDepth).
		Msg("Crawl started")

	c.frontier.TryClaim(seedURL)
	c.claimed.Add(1)
	c.pending.Add(1)
	if err := c.frontier.Push(frontier.Task{URL: seedURL, EnqueuedAt: time.Now()}); err != nil {
		c.pending.Add(-1)
		if !c.stopped() {
			return nil, fmt.Errorf("failed to enqueue seed: %w", err)
		}
	}

	reporter := progress.New(c.metrics, c.frontier.Len, c.log.WithComponent("progress"), c.config.ReportInterval)
	if c.progressOut != nil {
		reporter.SetOutput(c.progressOut)
	}

	auxCtx, stopAux := context.WithCancel(context.Background())
	var aux errgroup.Group
	aux.Go(func() error { return reporter.Run(auxCtx) })
	aux.Go(func() error {
		c.watch(ctx)
		return nil
	})
	if exp := c.metrics.Exporter(); exp != nil && c.config.MetricsAddr != "" {
		aux.Go(func() error {
			if err := exp.Serve(auxCtx, c.config.MetricsAddr); err != nil {
				c.log.Event(logger.WarnLevel).Err(err).Str("addr", c.config.MetricsAddr).Msg("Metrics endpoint stopped")
			}
			return nil
		})
	}

	var workers errgroup.Group
	for i := 0; i < c.config.Workers; i++ {
		id := i
		workers.Go(func() error {
			c.worker(ctx, id)
			return nil
		})
	}
	_ = workers.Wait()

	c.finish(StopCompleted)
	stopAux()
	_ = aux.Wait()

	result := c.result(seedURL)
	c.log.Event(logger.InfoLevel).
		Str("reason", string(result.Reason)).
		Int64("pages_crawled", result.Stats.PagesCrawled).
		Int64("pages_failed", result.Stats.PagesFailed).
		Dur("duration", result.Duration()).
		Msg("Crawl finished")

	if c.config.Report {
		r := report.FromSnapshot(seedURL, result.StartedAt, result.Metrics, result.Interrupted())
		if err := report.WriteFiles(c.config.DataDir(), r); err != nil {
			c.log.Event(logger.WarnLevel).Err(err).Msg("Failed to write crawl report")
		}
	}

	return result, nil
}

// watch turns a canceled parent context or an elapsed MaxRuntime into a
// graceful stop.
func (c *Crawler) watch(ctx context.Context) {
	var deadline <-chan time.Time
	if c.config.MaxRuntime > 0 {
		timer := time.NewTimer(c.config.MaxRuntime)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-ctx.Done():
		c.stop(StopCanceled)
	case <-deadline:
		c.log.Event(logger.InfoLevel).Dur("max_runtime", c.config.MaxRuntime).Msg("Maximum runtime reached")
		c.stop(StopMaxRuntime)
	case <-c.done:
	}
}

func (c *Crawler) result(seedURL string) *CrawlResult {
	c.mu.Lock()
	reason := c.reason
	c.mu.Unlock()

	snap := c.metrics.Snapshot()
	snap.FrontierDepth = int64(c.frontier.Len())
	return &CrawlResult{
		Seed:        seedURL,
		StartedAt:   c.startTime,
		CompletedAt: time.Now(),
		Reason:      reason,
		Stats:       c.Stats(),
		Metrics:     snap,
	}
}

// worker pops tasks until the crawl stops or the pool goes idle.
func (c *Crawler) worker(ctx context.Context, id int) {
	log := c.log.WithWorker(id)
	log.Debug("Worker started")
	defer log.Debug("Worker stopped")

	for {
		if c.stopped() {
			return
		}

		task, ok := c.frontier.Pop(c.config.PollInterval)
		if !ok {
			// Nothing arrived for a full poll. With nothing pending no
			// worker can push more, so the crawl is done.
			if c.pending.Load() == 0 && c.frontier.IsEmpty() {
				c.finish(StopCompleted)
				return
			}
			continue
		}

		c.process(ctx, log, task)
	}
}

// process runs one task through gate, fetch, classify, persist, publish and
// link expansion. Failures are recorded and never stop the worker.
func (c *Crawler) process(ctx context.Context, log *logger.Logger, task frontier.Task) {
	defer c.pending.Add(-1)
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	if task.Depth >= c.config.MaxDepth {
		c.skipped.Add(1)
		log.Event(logger.DebugLevel).Str("url", task.URL).Int("depth", task.Depth).Msg("Depth limit reached, skipping")
		return
	}

	c.metrics.AddActiveWorkers(1)
	defer c.metrics.AddActiveWorkers(-1)

	start := time.Now()

	if _, err := c.gate.Reserve(ctx); err != nil {
		c.fail(log, task, "fetch", crawlerrors.Categorize(err, task.URL))
		return
	}

	res := c.fetcher.Fetch(ctx, task.URL)
	if res == nil {
		res = &fetch.Result{URL: task.URL, Err: crawlerrors.Categorize(errors.New("fetcher returned no result"), task.URL)}
	}
	c.metrics.RecordFetch(res.Attempts, res.Duration, len(res.Body))
	if !res.OK() {
		c.metrics.RecordError(crawlerrors.GetErrorType(res.Err).String())
		c.fail(log, task, "fetch", res.Err)
		return
	}

	title := parser.TitleFromURL(task.URL)
	links := c.extractor.ExtractLinks(res.Body)

	category, err := c.classifier.Classify(res.Body, title)
	if err != nil {
		log.Event(logger.WarnLevel).Err(err).Str("url", task.URL).Msg("Classification failed")
	}
	if category.Label == "" {
		category = classify.UnclassifiedCategory()
	}

	record := store.NewPageRecord(task.URL, title, task.Depth, links, category, res.Body)
	if err := c.store.Save(ctx, title, record); err != nil {
		c.fail(log, task, "persist", err)
		return
	}
	if err := sink.PublishAll(ctx, c.sinks, record); err != nil {
		c.fail(log, task, "publish", err)
		return
	}

	queued := c.enqueue(log, task, links)

	c.metrics.RecordPageCrawled(category.Label)
	log.PageEvent(task.URL, task.Depth, queued, time.Since(start))
}

// enqueue claims up to MaxLinksPerPage unseen links and pushes them one
// level deeper. Already-claimed links do not count against the cap.
func (c *Crawler) enqueue(log *logger.Logger, parent frontier.Task, links []string) int {
	queued := 0
	for _, link := range links {
		if queued >= c.config.MaxLinksPerPage {
			break
		}
		if !c.frontier.TryClaim(link) {
			continue
		}
		c.claimed.Add(1)

		c.pending.Add(1)
		err := c.frontier.Push(frontier.Task{
			URL:        link,
			Depth:      parent.Depth + 1,
			ParentURL:  parent.URL,
			EnqueuedAt: time.Now(),
		})
		if err != nil {
			c.pending.Add(-1)
			log.Event(logger.DebugLevel).Err(err).Str("url", link).Msg("Frontier closed, dropping remaining links")
			break
		}
		queued++
	}
	c.metrics.RecordDiscovered(queued)
	return queued
}

func (c *Crawler) fail(log *logger.Logger, task frontier.Task, stage string, err error) {
	c.metrics.RecordPageFailed(stage)
	log.FailureEvent(err, task.URL, stage)
}

func (c *Crawler) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// stop records reason and signals workers. Only the first call wins.
func (c *Crawler) stop(reason StopReason) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
		// Wakes idle pollers. Tasks still queued stay queued; workers see
		// done before popping again.
		c.frontier.Close()
	})
}

func (c *Crawler) finish(reason StopReason) {
	c.stop(reason)
}

// cleanup closes owned resources in reverse order.
func (c *Crawler) cleanup() {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		c.log.Event(logger.DebugLevel).Str("resource", cl.name).Msg("Closing")
		if err := cl.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cl.name, err))
		}
	}
	c.closers = nil
	if err := errors.Join(errs...); err != nil {
		c.log.Event(logger.WarnLevel).Err(err).Msg("Cleanup failed")
	}
}

// Stop asks the crawl to finish. In-flight pages complete; no new task is
// started. It is safe to call from a signal handler and more than once.
func (c *Crawler) Stop() {
	if !c.stopped() {
		c.log.Info("Stop requested, waiting for in-flight pages")
	}
	c.stop(StopInterrupt)
}

// Done is closed once the crawl has stopped taking work.
func (c *Crawler) Done() <-chan struct{} {
	return c.done
}

// Stats returns the current counters.
func (c *Crawler) Stats() CrawlStats {
	return CrawlStats{
		PagesCrawled: c.metrics.PagesCrawled(),
		PagesFailed:  c.metrics.PagesFailed(),
		Claimed:      c.claimed.Load(),
		Skipped:      c.skipped.Load(),
		Queued:       c.frontier.Len(),
		InFlight:     c.inFlight.Load(),
	}
}

// Metrics returns the metrics collector.
func (c *Crawler) Metrics() *metrics.Collector {
	return c.metrics
}

// Config returns a copy of the configuration in use.
func (c *Crawler) Config() *Config {
	return c.config.Clone()
}

// Visited reports whether url has been claimed.
func (c *Crawler) Visited(url string) bool {
	return c.frontier.Visited().Contains(url)
}

// IsRunning reports whether Run is in progress.
func (c *Crawler) IsRunning() bool {
	return c.running.Load()
}
