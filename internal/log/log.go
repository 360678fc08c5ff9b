// Package log provides structured logging for frc-vision.
// It wraps slog with sensible defaults for running on a coprocessor.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps a level name to a slog level, case-insensitively.
// Valid levels: "debug", "info", "warn", "error"
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the handler used by Init.
// JSON in production, colored text otherwise.
func NewHandler(w io.Writer, lvl slog.Level, production bool) slog.Handler {
	if production {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	})
}

// Init initializes the global logger with the specified level.
func Init(level string) {
	once.Do(func() {
		logger = slog.New(NewHandler(os.Stdout, ParseLevel(level), os.Getenv("GO_ENV") == "production"))
		slog.SetDefault(logger)
	})
}

// L returns the global logger, initializing it at info level if Init has
// not run.
func L() *slog.Logger {
	Init("info")
	return logger
}

// Or returns l, or the global logger when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return L()
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Throttled lets at most one record per interval through. It is meant for
// failures that repeat at frame rate, such as an unplugged camera. Records
// it holds back are counted and reported on the next one that passes.
type Throttled struct {
	l          *slog.Logger
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// Throttle wraps l (nil means the global logger).
func Throttle(l *slog.Logger, every time.Duration) *Throttled {
	return &Throttled{l: Or(l), lim: rate.NewLimiter(rate.Every(every), 1)}
}

// Warn logs at warn level if the interval has passed.
func (t *Throttled) Warn(msg string, args ...any) { t.log(slog.LevelWarn, msg, args) }

// Error logs at error level if the interval has passed.
func (t *Throttled) Error(msg string, args ...any) { t.log(slog.LevelError, msg, args) }

// Suppressed returns how many records are currently held back.
func (t *Throttled) Suppressed() uint64 { return t.suppressed.Load() }

func (t *Throttled) log(lvl slog.Level, msg string, args []any) {
	if !t.lim.Allow() {
		t.suppressed.Add(1)
		return
	}
	if n := t.suppressed.Swap(0); n > 0 {
		args = append(args, "suppressed", n)
	}
	t.l.Log(context.Background(), lvl, msg, args...)
}
