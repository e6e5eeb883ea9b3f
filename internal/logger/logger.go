// Package logger configures the application's slog loggers and carries
// request-scoped loggers through context.
//
// dev and test environments get human-readable coloured output (tint),
// staging and prod get JSON lines suitable for log shipping.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LevelNone is above every level slog emits, so nothing is logged.
const LevelNone = slog.Level(100)

type contextKey int

const (
	loggerKey contextKey = iota
	attrsKey
)

// ParseLogLevel converts a LOG_LEVEL value to a slog.Level.
// Unrecognised values fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "off":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates the application logger and installs it as the slog default.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	l := New(os.Stderr, level, environment)
	slog.SetDefault(l)
	return l
}

// New creates a logger writing to w without touching the slog default.
func New(w io.Writer, level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler
	switch environment {
	case "prod", "staging":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record (used by tests).
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ContextWithLogger stores l in ctx.
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// ContextRequestLogger returns the logger stored in ctx, or the slog default.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// logAttrs collects attributes added while a request is being handled so they
// can be included in the final request log line.
type logAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

func contextWithAttrCollector(ctx context.Context) (context.Context, *logAttrs) {
	la := &logAttrs{}
	return context.WithValue(ctx, attrsKey, la), la
}

// ContextWithLogAttrs adds attrs to the request's final log line.
// It is a no-op when ctx does not come from the RequestLogging middleware.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	la, ok := ctx.Value(attrsKey).(*logAttrs)
	if !ok {
		return
	}
	la.mu.Lock()
	la.attrs = append(la.attrs, attrs...)
	la.mu.Unlock()
}

func (la *logAttrs) snapshot() []slog.Attr {
	la.mu.Lock()
	defer la.mu.Unlock()
	out := make([]slog.Attr, len(la.attrs))
	copy(out, la.attrs)
	return out
}
