// Package logging configures the module's structured logger.
//
// It wraps log/slog the way the teacher repo's pkg/logger does: a
// level-filtering handler silences third-party noise unless debug
// logging is on. Output always goes through slog.NewTextHandler; there
// is no colorized terminal handler.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const modulePrefix = "github.com/orchestra-run/orchestra"

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error. Unknown strings fall back to warn.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// New builds a logger writing to w at minLevel. Unless minLevel is
// slog.LevelDebug or lower, log records whose call site is outside
// this module are dropped so
// that a verbose third-party dependency can't drown out the runtime's
// own delegation and lifecycle events.
func New(w io.Writer, minLevel slog.Level) *slog.Logger {
	base := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     minLevel,
		AddSource: minLevel <= slog.LevelDebug,
	})
	return slog.New(&filteringHandler{handler: base, minLevel: minLevel})
}

// filteringHandler wraps a slog.Handler and filters out log records
// whose caller is outside this module, unless the level is debug.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug {
		return h.handler.Handle(ctx, record)
	}
	if record.PC == 0 || isModuleFrame(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func isModuleFrame(pc uintptr) bool {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	if strings.Contains(fn.Name(), modulePrefix) {
		return true
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(file, "orchestra/")
}

// Discard returns a logger that drops everything, for tests that don't
// want log noise.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FromEnv builds a logger from the ORCHESTRA_LOG_LEVEL environment
// variable, defaulting to warn and writing to stderr.
func FromEnv() *slog.Logger {
	level, _ := ParseLevel(os.Getenv("ORCHESTRA_LOG_LEVEL"))
	return New(os.Stderr, level)
}
