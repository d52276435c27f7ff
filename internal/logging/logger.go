// Package logging holds the process-wide logger shared by the compiler,
// the VM and the service. Logging is silent until SetLogger is called.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

// nopHandler discards all records. Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger installs l as the process logger. Pass nil to restore the
// silent default. Safe for concurrent use.
//
// Levels used:
//   - [slog.LevelDebug]: program loads, grid sizes, per-shader compile steps
//   - [slog.LevelInfo]: service lifecycle, cache hits
//   - [slog.LevelWarn]: recoverable runtime conditions (missing texture,
//     clamped array index, comm lookups that found nothing)
//   - [slog.LevelError]: compile errors
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current process logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// New builds a text logger writing to w at the named level. "silent"
// (or an unknown name) yields the nop logger.
func New(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return newNopLogger()
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
