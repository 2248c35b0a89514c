package crawler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PentesterFlow/WikiCrawler/internal/store"
)

// =============================================================================
// Default Config Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Seed != "Mario" {
		t.Errorf("Seed = %q, want Mario", cfg.Seed)
	}
	if cfg.Workers != 5 || cfg.RequestsPerSecond != 3 {
		t.Errorf("Workers/RPS = %d/%v, want moderate preset", cfg.Workers, cfg.RequestsPerSecond)
	}
	if cfg.MaxPoolSize != 10 {
		t.Errorf("MaxPoolSize = %d, want 10", cfg.MaxPoolSize)
	}
	if cfg.MaxDepth != 3 || cfg.MaxLinksPerPage != 100 {
		t.Errorf("MaxDepth/MaxLinksPerPage = %d/%d", cfg.MaxDepth, cfg.MaxLinksPerPage)
	}
	if cfg.ReportInterval != 10*time.Second {
		t.Errorf("ReportInterval = %v, want 10s", cfg.ReportInterval)
	}
	if cfg.Store.Backend != store.BackendFile {
		t.Errorf("Store.Backend = %q, want file", cfg.Store.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

// =============================================================================
// Preset Tests
// =============================================================================

func TestPresets(t *testing.T) {
	tests := []struct {
		name    string
		rps     float64
		workers int
	}{
		{"conservative", 1, 2},
		{"moderate", 3, 5},
		{"aggressive", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := PresetConfig(tt.name)
			if err != nil {
				t.Fatalf("PresetConfig() error = %v", err)
			}
			if cfg.RequestsPerSecond != tt.rps || cfg.Workers != tt.workers {
				t.Errorf("got %v rps / %d workers, want %v / %d", cfg.RequestsPerSecond, cfg.Workers, tt.rps, tt.workers)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestPresetNames(t *testing.T) {
	got := PresetNames()
	want := []string{"conservative", "moderate", "aggressive"}
	if len(got) != len(want) {
		t.Fatalf("PresetNames() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PresetNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestApplyPreset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 7
	cfg.RequestsPerSecond = 4.5

	if err := cfg.ApplyPreset("custom"); err != nil {
		t.Fatalf("ApplyPreset(custom) error = %v", err)
	}
	if cfg.Workers != 7 || cfg.RequestsPerSecond != 4.5 {
		t.Error("custom preset should leave values unchanged")
	}

	if err := cfg.ApplyPreset(" Aggressive "); err != nil {
		t.Fatalf("ApplyPreset error = %v", err)
	}
	if cfg.Workers != 10 {
		t.Errorf("Workers = %d, want 10", cfg.Workers)
	}

	if err := cfg.ApplyPreset("warp"); err == nil {
		t.Error("unknown preset should fail")
	}
}

// =============================================================================
// Seed Tests
// =============================================================================

func TestSeedURL(t *testing.T) {
	tests := []struct {
		seed string
		base string
		want string
	}{
		{"Mario", "", "http://en.wikipedia.org/wiki/Mario"},
		{"Super Mario Bros.", "http://en.wikipedia.org", "http://en.wikipedia.org/wiki/Super_Mario_Bros."},
		{"  Luigi ", "http://wiki.test/", "http://wiki.test/wiki/Luigi"},
		{"https://en.wikipedia.org/wiki/Yoshi", "", "https://en.wikipedia.org/wiki/Yoshi"},
	}

	for _, tt := range tests {
		t.Run(tt.seed, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Seed = tt.seed
			cfg.BaseURL = tt.base
			if got := cfg.SeedURL(); got != tt.want {
				t.Errorf("SeedURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty seed", func(c *Config) { c.Seed = "" }, true},
		{"title with spaces", func(c *Config) { c.Seed = "Super Mario Bros." }, false},
		{"workers zero", func(c *Config) { c.Workers = 0 }, true},
		{"workers above pool", func(c *Config) { c.Workers = 11 }, true},
		{"workers at pool", func(c *Config) { c.Workers = 10 }, false},
		{"pool zero", func(c *Config) { c.MaxPoolSize = 0 }, true},
		{"negative rps", func(c *Config) { c.RequestsPerSecond = -1 }, true},
		{"depth zero", func(c *Config) { c.MaxDepth = 0 }, true},
		{"link cap zero", func(c *Config) { c.MaxLinksPerPage = 0 }, true},
		{"negative runtime", func(c *Config) { c.MaxRuntime = -time.Second }, true},
		{"bad scope pattern", func(c *Config) { c.Scope.IncludePatterns = []string{"("} }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "tape" }, true},
		{"redis without addr", func(c *Config) { c.Store.Backend = store.BackendRedis }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SetDataDir(t.TempDir())
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// File Tests
// =============================================================================

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := DefaultConfig()
			cfg.Seed = "Donkey Kong"
			cfg.Workers = 4
			cfg.MaxRuntime = 90 * time.Second
			cfg.Sinks.KafkaBrokers = []string{"localhost:9092"}

			if err := cfg.SaveToFile(path); err != nil {
				t.Fatalf("SaveToFile() error = %v", err)
			}
			loaded, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}
			if loaded.Seed != "Donkey Kong" || loaded.Workers != 4 || loaded.MaxRuntime != 90*time.Second {
				t.Errorf("loaded = %+v", loaded)
			}
			if len(loaded.Sinks.KafkaBrokers) != 1 {
				t.Errorf("KafkaBrokers = %v", loaded.Sinks.KafkaBrokers)
			}
		})
	}
}

func TestLoadFromFile_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("seed: Peach\nmax_depth: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Seed != "Peach" || cfg.MaxDepth != 2 {
		t.Errorf("Seed/MaxDepth = %q/%d", cfg.Seed, cfg.MaxDepth)
	}
	if cfg.Workers != 5 {
		t.Errorf("Workers = %d, want default 5", cfg.Workers)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("malformed file should fail")
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.KafkaBrokers = []string{"a:9092"}

	clone := cfg.Clone()
	clone.Seed = "Bowser"
	clone.Sinks.KafkaBrokers[0] = "b:9092"

	if cfg.Seed != "Mario" {
		t.Error("Clone shares Seed")
	}
	if cfg.Sinks.KafkaBrokers[0] != "a:9092" {
		t.Error("Clone shares slices")
	}
}

func TestDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Dir = ""
	if cfg.DataDir() != DefaultDataDir() {
		t.Errorf("DataDir() = %q, want default", cfg.DataDir())
	}
	cfg.SetDataDir("/tmp/pages")
	if cfg.DataDir() != "/tmp/pages" {
		t.Errorf("DataDir() = %q", cfg.DataDir())
	}
}
