package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	defaultLogger zerolog.Logger
	mu            sync.RWMutex
	once          sync.Once
)

// Options configures a logger.
type Options struct {
	Level      string    // zerolog level name; empty means info
	Format     string    // "json" or "console"
	FilePath   string    // optional rotating log file, written in addition to Out
	MaxSizeMB  int       // rotate after this many megabytes
	MaxBackups int       // rotated files kept
	MaxAgeDays int       // days a rotated file is kept
	Out        io.Writer // defaults to os.Stdout
}

// New builds a zerolog logger from opts.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	switch opts.Format {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", opts.Format)
	}

	if opts.FilePath != "" {
		file := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		// the file always gets JSON so sweep lines stay machine readable
		out = zerolog.MultiLevelWriter(out, file)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Init replaces the default logger.
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	once.Do(func() {})
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return nil
}

// Get returns the default logger, a JSON info logger on stdout unless Init
// was called.
func Get() zerolog.Logger {
	once.Do(func() {
		l, _ := New(Options{})
		mu.Lock()
		defaultLogger = l
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Info logs an informational message using the default logger.
func Info(msg string, args ...any) {
	l := Get()
	l.Info().Fields(args).Msg(msg)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	l := Get()
	l.Warn().Fields(args).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	l := Get()
	l.Error().Err(err).Fields(args).Msg(msg)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	l := Get()
	l.Debug().Fields(args).Msg(msg)
}
