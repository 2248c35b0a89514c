// Package logger provides structured logging for the wiki crawler.
package logger

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Level represents log levels.
type Level = zerolog.Level

// Log levels.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	Disabled   = zerolog.Disabled
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      Level
	Pretty     bool // console writer instead of JSON lines
	Output     io.Writer
	TimeFormat string
	Component  string // e.g. "coordinator", "fetcher", "store"
}

// DefaultConfig logs at info level to stderr, pretty only when stderr is a terminal.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Pretty:     IsTerminal(os.Stderr),
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05",
		}
	}

	zl := zerolog.New(out).With().Timestamp().Logger().Level(cfg.Level)
	if cfg.Component != "" {
		zl = zl.With().Str("component", cfg.Component).Logger()
	}

	return &Logger{zl: zl}
}

// NewDefault creates a logger with DefaultConfig.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithComponent returns a child logger tagged with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithField returns a child logger with one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithURL returns a child logger with the url field set.
func (l *Logger) WithURL(url string) *Logger {
	return &Logger{zl: l.zl.With().Str("url", url).Logger()}
}

// WithWorker returns a child logger with the worker_id field set.
func (l *Logger) WithWorker(workerID int) *Logger {
	return &Logger{zl: l.zl.With().Int("worker_id", workerID).Logger()}
}

// WithDepth returns a child logger with the depth field set.
func (l *Logger) WithDepth(depth int) *Logger {
	return &Logger{zl: l.zl.With().Int("depth", depth).Logger()}
}

// WithError returns a child logger carrying err.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithDuration returns a child logger with the duration field set.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{zl: l.zl.With().Dur("duration", d).Logger()}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.zl.Debug().Msgf(format, args...) }

func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

func (l *Logger) Infof(format string, args ...interface{}) { l.zl.Info().Msgf(format, args...) }

func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

func (l *Logger) Warnf(format string, args ...interface{}) { l.zl.Warn().Msgf(format, args...) }

func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *Logger) Errorf(format string, args ...interface{}) { l.zl.Error().Msgf(format, args...) }

// Event exposes the underlying zerolog event for ad-hoc fields.
func (l *Logger) Event(level Level) *zerolog.Event {
	switch level {
	case DebugLevel:
		return l.zl.Debug()
	case WarnLevel:
		return l.zl.Warn()
	case ErrorLevel:
		return l.zl.Error()
	default:
		return l.zl.Info()
	}
}

// PageEvent logs one crawled page.
func (l *Logger) PageEvent(url string, depth, links int, duration time.Duration) {
	l.zl.Info().
		Str("url", url).
		Int("depth", depth).
		Int("links", links).
		Dur("duration", duration).
		Msg("Page crawled")
}

// FailureEvent logs a per-page failure. Failures never abort the crawl, so
// they go out at warn level.
func (l *Logger) FailureEvent(err error, url, stage string) {
	l.zl.Warn().
		Err(err).
		Str("url", url).
		Str("stage", stage).
		Msg("Page failed")
}

// StatsEvent logs a progress snapshot with keys in stable order.
func (l *Logger) StatsEvent(stats map[string]interface{}) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	event := l.zl.Info()
	for _, k := range keys {
		event = event.Interface(k, stats[k])
	}
	event.Msg("Crawl progress")
}

// SetLevel changes the log level.
func (l *Logger) SetLevel(level Level) {
	l.zl = l.zl.Level(level)
}

// ParseLevel parses a level string such as "debug" or "warn".
func ParseLevel(levelStr string) (Level, error) {
	return zerolog.ParseLevel(levelStr)
}
