package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config selects and configures a storage backend.
type Config struct {
	Backend string `yaml:"backend" json:"backend"`
	Dir     string `yaml:"dir" json:"dir"`

	// Bolt and SQLite files default to pages.db / pages.sqlite under Dir.
	BoltPath   string `yaml:"bolt_path,omitempty" json:"bolt_path,omitempty"`
	SQLitePath string `yaml:"sqlite_path,omitempty" json:"sqlite_path,omitempty"`

	RedisAddr   string        `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPrefix string        `yaml:"redis_prefix,omitempty" json:"redis_prefix,omitempty"`
	RedisTTL    time.Duration `yaml:"redis_ttl,omitempty" json:"redis_ttl,omitempty"`

	S3 S3Config `yaml:"s3,omitempty" json:"s3,omitempty"`
}

// DefaultConfig stores JSON files under dir.
func DefaultConfig(dir string) Config {
	return Config{
		Backend:     BackendFile,
		Dir:         dir,
		RedisPrefix: "wikicrawler:page:",
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendFile, BackendBolt, BackendSQLite:
		if c.Dir == "" && c.BoltPath == "" && c.SQLitePath == "" {
			return crawlerrors.NewConfigError("store.dir", "required for local backends")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return crawlerrors.NewConfigError("store.redis_addr", "required for the redis backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return crawlerrors.NewConfigError("store.s3.bucket", "required for the s3 backend")
		}
	case BackendMemory:
	default:
		return crawlerrors.NewConfigError("store.backend", fmt.Sprintf("unknown backend %q", c.Backend))
	}
	return nil
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendBolt:
		path := cfg.BoltPath
		if path == "" {
			path = filepath.Join(cfg.Dir, "pages.db")
		}
		return NewBoltStore(path)
	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Dir, "pages.sqlite")
		}
		return NewSQLiteStore(ctx, path)
	case BackendRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix, cfg.RedisTTL), nil
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return NewFileStore(cfg.Dir)
	}
}
