package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/polyglot/internal/env"
	"github.com/ekisa-team/polyglot/internal/xfs"
)

// Options configures the logger built by New.
type Options struct {
	Level     slog.Level
	LogFile   string
	LogToFile bool
	MaxSizeMB int
	MaxFiles  int
	MaxAgeDay int
}

// Option mutates Options.
type Option func(*Options)

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) { o.Level = level }
}

// WithLogToFile enables or disables the rotating log file.
func WithLogToFile(enabled bool) Option {
	return func(o *Options) { o.LogToFile = enabled }
}

// WithLogFile sets the log file path.
func WithLogFile(path string) Option {
	return func(o *Options) { o.LogFile = path }
}

// New builds the process logger. Development gets a colored tint handler on
// stderr, production gets JSON. When file logging is enabled, records are
// also written as JSON to a lumberjack-rotated file.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := Options{
		Level:     slog.LevelInfo,
		LogFile:   "logs/polyglot.log",
		MaxSizeMB: 50,
		MaxFiles:  5,
		MaxAgeDay: 14,
	}
	if environment == env.Development {
		o.Level = slog.LevelDebug
	}
	for _, opt := range opts {
		opt(&o)
	}

	var console slog.Handler
	if environment.IsProduction() {
		console = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: o.Level})
	} else {
		console = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      o.Level,
			TimeFormat: time.Kitchen,
		})
	}

	if !o.LogToFile {
		return slog.New(console)
	}

	file := &lumberjack.Logger{
		Filename:   xfs.ExpandTilde(o.LogFile),
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxFiles,
		MaxAge:     o.MaxAgeDay,
		Compress:   true,
	}

	return slog.New(&fanout{handlers: []slog.Handler{
		console,
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.Level}),
	}})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
