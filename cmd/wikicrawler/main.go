package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/WikiCrawler/internal/logger"
	"github.com/PentesterFlow/WikiCrawler/internal/parser"
	"github.com/PentesterFlow/WikiCrawler/internal/progress"
	"github.com/PentesterFlow/WikiCrawler/internal/shutdown"
	"github.com/PentesterFlow/WikiCrawler/internal/store"
	"github.com/PentesterFlow/WikiCrawler/internal/wiki"
	"github.com/PentesterFlow/WikiCrawler/pkg/crawler"
)

var version = "1.0.0"

// Flags shared by every command.
type globalFlags struct {
	configFile string
	dataDir    string
	local      bool
	backend    string
	verbose    bool
	debug      bool
	pretty     bool
}

type crawlFlags struct {
	seed        string
	preset      string
	workers     int
	rateLimit   float64
	maxDepth    int
	maxLinks    int
	maxRuntime  time.Duration
	metricsAddr string
	report      bool
	noPrompt    bool
	noRelated   bool
}

const relatedShown = 5

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "wikicrawler",
		Short: "WikiCrawler - concurrent Wikipedia crawler",
		Long: heredoc.Doc(`
			WikiCrawler crawls Wikipedia articles breadth-first from a seed page,
			classifies each page into topics and stores one record per article.

			All workers share one request rate, so the preset you choose bounds
			the load put on Wikipedia regardless of the worker count.
		`),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Directory for crawled pages (default: XDG data dir)")
	rootCmd.PersistentFlags().BoolVar(&g.local, "local", false, "Store pages in ./crawled_data")
	rootCmd.PersistentFlags().StringVar(&g.backend, "store", "", "Storage backend (file, bolt, sqlite, redis, s3, memory)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log every crawled page")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&g.pretty, "pretty", false, "Human-readable log output even when not on a terminal")

	rootCmd.AddCommand(newCrawlCmd(g))
	rootCmd.AddCommand(newShowCmd(g))
	rootCmd.AddCommand(newRelatedCmd(g))
	rootCmd.AddCommand(newReportCmd(g))

	return rootCmd
}

// loadConfig reads --config, or the default config file when it exists,
// and applies the storage flags.
func loadConfig(g *globalFlags) (*crawler.Config, error) {
	var (
		cfg *crawler.Config
		err error
	)
	switch {
	case g.configFile != "":
		cfg, err = crawler.LoadFromFile(g.configFile)
	case fileExists(crawler.DefaultConfigPath()):
		cfg, err = crawler.LoadFromFile(crawler.DefaultConfigPath())
	default:
		cfg = crawler.DefaultConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	switch {
	case g.dataDir != "":
		cfg.SetDataDir(g.dataDir)
	case g.local:
		cfg.SetDataDir("crawled_data")
	}
	if g.backend != "" {
		cfg.Store.Backend = g.backend
	}
	if g.verbose {
		cfg.Verbose = true
	}
	if g.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func newLogger(g *globalFlags, cfg *crawler.Config) *logger.Logger {
	lc := logger.DefaultConfig()
	lc.Pretty = lc.Pretty || g.pretty
	lc.Component = "wikicrawler"
	switch {
	case cfg.Debug:
		lc.Level = logger.DebugLevel
	case cfg.Verbose:
		lc.Level = logger.InfoLevel
	default:
		lc.Level = logger.WarnLevel
	}
	return logger.New(lc)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newCrawlCmd(g *globalFlags) *cobra.Command {
	f := &crawlFlags{}

	cmd := &cobra.Command{
		Use:   "crawl [title]",
		Short: "Crawl Wikipedia from a seed article",
		Long: heredoc.Doc(`
			Crawl Wikipedia from a seed article. Without a title or --preset the
			command asks for the seed and a preset interactively.

			Ctrl-C stops the crawl gracefully: pages already being fetched are
			finished and stored before the command exits.
		`),
		Example: heredoc.Doc(`
			$ wikicrawler crawl
			$ wikicrawler crawl "Super Mario Bros." --preset conservative
			$ wikicrawler crawl Mario --workers 4 --rps 2 --max-depth 2 --report
			$ wikicrawler crawl Mario --store sqlite --metrics-addr :9190
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.seed = args[0]
			}
			return runCrawl(cmd, g, f)
		},
	}

	cmd.Flags().StringVar(&f.seed, "seed", "", "Seed article title or URL")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Rate preset: conservative, moderate, aggressive")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Number of concurrent workers")
	cmd.Flags().Float64VarP(&f.rateLimit, "rps", "r", 0, "Requests per second across all workers")
	cmd.Flags().IntVarP(&f.maxDepth, "max-depth", "d", 0, "Maximum crawl depth")
	cmd.Flags().IntVar(&f.maxLinks, "max-links", 0, "Maximum new links queued per page")
	cmd.Flags().DurationVar(&f.maxRuntime, "max-runtime", 0, "Stop gracefully after this long (e.g. 10m)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&f.report, "report", false, "Write report.json and report.md to the data directory")
	cmd.Flags().BoolVar(&f.noPrompt, "no-prompt", false, "Never prompt; use defaults for anything not given")
	cmd.Flags().BoolVar(&f.noRelated, "no-related", false, "Skip the related-pages lookup after the crawl")

	return cmd
}

func runCrawl(cmd *cobra.Command, g *globalFlags, f *crawlFlags) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	if f.seed != "" {
		cfg.Seed = f.seed
	}
	if f.preset != "" {
		if err := cfg.ApplyPreset(f.preset); err != nil {
			return err
		}
	}

	interactive := !f.noPrompt && logger.IsTerminal(os.Stdin)
	rateFlagsSet := f.preset != "" || cmd.Flags().Changed("workers") || cmd.Flags().Changed("rps")
	if interactive {
		p := newPrompter(os.Stdin, cmd.OutOrStdout())
		if err := p.configure(cfg, f.seed == "", !rateFlagsSet); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
	}
	if cmd.Flags().Changed("rps") {
		cfg.RequestsPerSecond = f.rateLimit
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.MaxDepth = f.maxDepth
	}
	if cmd.Flags().Changed("max-links") {
		cfg.MaxLinksPerPage = f.maxLinks
	}
	if cmd.Flags().Changed("max-runtime") {
		cfg.MaxRuntime = f.maxRuntime
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	if f.report {
		cfg.Report = true
	}

	log := newLogger(g, cfg)
	out := cmd.OutOrStdout()

	opts := []crawler.Option{crawler.WithConfig(cfg), crawler.WithLogger(log.WithComponent("coordinator"))}
	if logger.IsTerminal(os.Stderr) && !cfg.Verbose && !cfg.Debug {
		opts = append(opts, crawler.WithProgressOutput(os.Stderr))
	}

	c, err := crawler.New(opts...)
	if err != nil {
		log.Event(logger.ErrorLevel).Err(err).Msg("Invalid configuration")
		return err
	}

	handler := shutdown.New(shutdown.Config{
		OnSignal: func(sig os.Signal) {
			fmt.Fprintf(os.Stderr, "\nReceived %s, finishing in-flight pages...\n", sig)
			c.Stop()
		},
	})
	defer handler.Shutdown()

	printBanner(out, cfg)

	// The crawl context is not tied to the signal: Stop lets in-flight
	// fetches finish instead of canceling them.
	start := time.Now()
	result, err := c.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	elapsed := time.Since(start)

	progress.PrintSummary(out, result.Seed, result.Metrics, elapsed)
	if result.Interrupted() {
		fmt.Fprintf(out, "Crawl stopped early (%s).\n", result.Reason)
	}
	fmt.Fprintf(out, "Crawling completed in %.2f seconds\n", elapsed.Seconds())

	// A signal during the crawl is a normal way to end it, so the rest
	// runs with a fresh context and the command exits 0.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	title := parser.TitleFromURL(result.Seed)
	if err := showPage(ctx, out, cfg, title); err != nil {
		log.Event(logger.WarnLevel).Err(err).Str("title", title).Msg("Could not reload start page")
	}
	if !f.noRelated && !handler.Interrupted() {
		showRelated(ctx, out, log, cfg, title)
	}
	return nil
}

func printBanner(w io.Writer, cfg *crawler.Config) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "WikiCrawler v%s\n", version)
	fmt.Fprintf(w, "Seed:       %s\n", cfg.SeedURL())
	fmt.Fprintf(w, "Workers:    %d\n", cfg.Workers)
	fmt.Fprintf(w, "Rate Limit: %g req/s\n", cfg.RequestsPerSecond)
	fmt.Fprintf(w, "Max Depth:  %d\n", cfg.MaxDepth)
	fmt.Fprintf(w, "Data:       %s (%s)\n", cfg.DataDir(), backendName(cfg.Store))
	fmt.Fprintln(w)
}

func backendName(sc store.Config) string {
	if sc.Backend == "" {
		return store.BackendFile
	}
	return sc.Backend
}

// openStore opens the configured store for reading back results.
func openStore(ctx context.Context, cfg *crawler.Config) (store.Store, error) {
	sc := cfg.Store
	sc.Dir = cfg.DataDir()
	return store.Open(ctx, sc)
}

func showPage(ctx context.Context, w io.Writer, cfg *crawler.Config, title string) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	record, err := st.Load(ctx, title)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nPage: %s\n", record.Title)
	fmt.Fprintf(w, "  URL:        %s\n", record.URL)
	fmt.Fprintf(w, "  Category:   %s\n", record.Category.Label)
	if len(record.Category.Topics) > 1 {
		fmt.Fprintf(w, "  Topics:     %v\n", record.Category.Topics)
	}
	fmt.Fprintf(w, "  Links:      %d\n", len(record.Links))
	fmt.Fprintf(w, "  Depth:      %d\n", record.Depth)
	fmt.Fprintf(w, "  Crawled At: %s\n", record.CrawledTime().Format(time.RFC3339))
	return nil
}

func showRelated(ctx context.Context, w io.Writer, log *logger.Logger, cfg *crawler.Config, title string) {
	client := wiki.NewClient(cfg.Related)
	related, err := client.Related(ctx, title)
	if err != nil {
		log.Event(logger.WarnLevel).Err(err).Str("title", title).Msg("Related pages lookup failed")
	}
	if len(related) == 0 {
		return
	}

	fmt.Fprintf(w, "\nRelated to %s:\n", title)
	for i, r := range related {
		if i == relatedShown {
			break
		}
		fmt.Fprintf(w, "  - %s\n", r)
	}
}
