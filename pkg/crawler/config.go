package crawler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
	"github.com/PentesterFlow/WikiCrawler/internal/fetch"
	"github.com/PentesterFlow/WikiCrawler/internal/parser"
	"github.com/PentesterFlow/WikiCrawler/internal/scope"
	"github.com/PentesterFlow/WikiCrawler/internal/sink"
	"github.com/PentesterFlow/WikiCrawler/internal/store"
	"github.com/PentesterFlow/WikiCrawler/internal/wiki"
)

// AppName names the xdg subdirectories.
const AppName = "wikicrawler"

// Defaults shared by every preset.
const (
	DefaultMaxPoolSize     = 10
	DefaultMaxDepth        = 3
	DefaultMaxLinksPerPage = 100
	DefaultSeedTitle       = "Mario"
	DefaultPollInterval    = time.Second
	DefaultReportInterval  = 10 * time.Second
)

// Config holds all crawler configuration.
type Config struct {
	// Seed is an article title ("Mario") or a full article URL.
	Seed    string `json:"seed" yaml:"seed"`
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Number of concurrent workers, at most MaxPoolSize.
	Workers     int `json:"workers" yaml:"workers"`
	MaxPoolSize int `json:"max_pool_size" yaml:"max_pool_size"`

	// Global request-start rate shared by all workers.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Pages at depth >= MaxDepth are claimed but never fetched.
	MaxDepth        int `json:"max_depth" yaml:"max_depth"`
	MaxLinksPerPage int `json:"max_links_per_page" yaml:"max_links_per_page"`

	// PollInterval bounds each frontier wait; an idle pool is detected
	// after one expired poll.
	PollInterval   time.Duration `json:"poll_interval" yaml:"poll_interval"`
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`

	// MaxRuntime stops the crawl gracefully once elapsed. Zero disables it.
	MaxRuntime time.Duration `json:"max_runtime" yaml:"max_runtime"`

	// CategoryTree is an optional JSON file of category -> parents.
	CategoryTree string `json:"category_tree,omitempty" yaml:"category_tree,omitempty"`

	Scope   scope.Rules  `json:"scope" yaml:"scope"`
	Fetch   fetch.Config `json:"fetch" yaml:"fetch"`
	Store   store.Config `json:"store" yaml:"store"`
	Sinks   sink.Config  `json:"sinks" yaml:"sinks"`
	Related wiki.Config  `json:"related" yaml:"related"`

	// MetricsAddr serves Prometheus /metrics when set.
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	// Report writes report.json and report.md into the data directory.
	Report bool `json:"report" yaml:"report"`

	Verbose bool `json:"verbose" yaml:"verbose"`
	Debug   bool `json:"debug" yaml:"debug"`
}

// Preset is a named rate and worker-count pair.
type Preset struct {
	Name              string  `json:"name" yaml:"name"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Workers           int     `json:"workers" yaml:"workers"`
	Description       string  `json:"description" yaml:"description"`
}

// PresetCustom means rate and workers are supplied by the user.
const PresetCustom = "custom"

var presets = map[string]Preset{
	"conservative": {Name: "conservative", RequestsPerSecond: 1, Workers: 2, Description: "1 request/s, 2 workers"},
	"moderate":     {Name: "moderate", RequestsPerSecond: 3, Workers: 5, Description: "3 requests/s, 5 workers"},
	"aggressive":   {Name: "aggressive", RequestsPerSecond: 10, Workers: 10, Description: "10 requests/s, 10 workers"},
}

// Presets returns the built-in presets keyed by name.
func Presets() map[string]Preset {
	out := make(map[string]Preset, len(presets))
	for k, v := range presets {
		out[k] = v
	}
	return out
}

// PresetNames lists the presets from slowest to fastest.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return presets[names[i]].RequestsPerSecond < presets[names[j]].RequestsPerSecond
	})
	return names
}

// DefaultDataDir is $XDG_DATA_HOME/wikicrawler/crawled_data.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName, "crawled_data")
}

// DefaultConfigPath is $XDG_CONFIG_HOME/wikicrawler/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultConfig returns the moderate preset with the standard limits.
func DefaultConfig() *Config {
	return &Config{
		Seed:              DefaultSeedTitle,
		BaseURL:           parser.DefaultBaseURL,
		Workers:           5,
		MaxPoolSize:       DefaultMaxPoolSize,
		RequestsPerSecond: 3,
		MaxDepth:          DefaultMaxDepth,
		MaxLinksPerPage:   DefaultMaxLinksPerPage,
		PollInterval:      DefaultPollInterval,
		ReportInterval:    DefaultReportInterval,
		Scope:             scope.DefaultRules(),
		Fetch:             fetch.DefaultConfig(),
		Store:             store.DefaultConfig(DefaultDataDir()),
		Related:           wiki.DefaultConfig(),
	}
}

// PresetConfig returns DefaultConfig with the named preset applied.
func PresetConfig(name string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyPreset(name); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyPreset sets rate and workers from a built-in preset. "custom" is
// accepted and leaves them unchanged.
func (c *Config) ApplyPreset(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == PresetCustom {
		return nil
	}
	p, ok := presets[name]
	if !ok {
		return crawlerrors.NewConfigError("preset", fmt.Sprintf("unknown preset %q", name))
	}
	c.RequestsPerSecond = p.RequestsPerSecond
	c.Workers = p.Workers
	return nil
}

// SetDataDir points the default storage locations at dir.
func (c *Config) SetDataDir(dir string) {
	c.Store.Dir = dir
}

// DataDir returns the storage directory.
func (c *Config) DataDir() string {
	if c.Store.Dir == "" {
		return DefaultDataDir()
	}
	return c.Store.Dir
}

// SeedURL resolves Seed to an absolute article URL.
func (c *Config) SeedURL() string {
	seed := strings.TrimSpace(c.Seed)
	if strings.HasPrefix(seed, "http://") || strings.HasPrefix(seed, "https://") {
		return seed
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = parser.DefaultBaseURL
	}
	return base + scope.ArticlePathPrefix + parser.TitleToPath(seed)
}

// LoadFromFile loads configuration from a file (JSON or YAML) on top of
// DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		return config, nil
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file, as JSON when path ends in
// .json and YAML otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every setting the crawl depends on. It runs before any
// worker starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Seed) == "" {
		return crawlerrors.NewConfigError("seed", "seed title or URL is required")
	}
	u, err := url.Parse(c.SeedURL())
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return crawlerrors.NewConfigError("seed", fmt.Sprintf("invalid seed %q", c.Seed))
	}

	if c.MaxPoolSize < 1 {
		return crawlerrors.NewConfigError("max_pool_size", "must be at least 1")
	}
	if c.Workers < 1 || c.Workers > c.MaxPoolSize {
		return crawlerrors.NewConfigError("workers", fmt.Sprintf("must be between 1 and %d, got %d", c.MaxPoolSize, c.Workers))
	}
	if c.RequestsPerSecond <= 0 {
		return crawlerrors.NewConfigError("requests_per_second", "must be positive")
	}
	if c.MaxDepth < 1 {
		return crawlerrors.NewConfigError("max_depth", "must be at least 1")
	}
	if c.MaxLinksPerPage < 1 {
		return crawlerrors.NewConfigError("max_links_per_page", "must be at least 1")
	}
	if c.PollInterval < 0 || c.ReportInterval < 0 || c.MaxRuntime < 0 {
		return crawlerrors.NewConfigError("intervals", "durations must not be negative")
	}

	if _, err := scope.NewPolicy(c.Scope); err != nil {
		return err
	}
	return c.Store.Validate()
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	_ = json.Unmarshal(data, clone)
	return clone
}
