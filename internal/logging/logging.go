// Package logging provides the single process-wide logging façade used by
// every other piri package. Callers never touch log/slog directly; they call
// the package-level Infof/Warnf/Errorf/Debugf functions, which keeps every
// package logging exactly the same way and lets SetDebug/SetOutput be
// changed once, from main, without threading a logger handle through the
// whole call graph.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var level = new(slog.LevelVar)

var logger atomic.Pointer[slog.Logger]

func init() {
	level.Set(slog.LevelInfo)
	setOutput(os.Stderr, false)
}

// SetDebug raises or lowers the process log level. Wired to the --debug CLI
// flag.
func SetDebug(enabled bool) {
	if enabled {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// SetOutput redirects log output to w. The color argument has no effect:
// the text handler never emits color codes either way; callers (PIRI_DAEMON
// routing, see cmd/piri) pass it only to signal intent.
func SetOutput(w io.Writer, color bool) {
	setOutput(w, color)
}

func setOutput(w io.Writer, _ bool) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	logger.Store(slog.New(h))
}

func cur() *slog.Logger {
	return logger.Load()
}

// With returns a logger carrying the given structured fields, for
// components (IPC connections, config reload generations) that want a
// correlation id attached to every subsequent log line they emit through
// the returned logger.
func With(args ...any) *slog.Logger {
	return cur().With(args...)
}

// Infof logs at info level using printf-style formatting.
func Infof(format string, args ...any) {
	cur().Info(fmt.Sprintf(format, args...))
}

// Warnf logs at warn level using printf-style formatting.
func Warnf(format string, args ...any) {
	cur().Warn(fmt.Sprintf(format, args...))
}

// Errorf logs at error level using printf-style formatting.
func Errorf(format string, args ...any) {
	cur().Error(fmt.Sprintf(format, args...))
}

// Debugf logs at debug level using printf-style formatting.
func Debugf(format string, args ...any) {
	cur().Debug(fmt.Sprintf(format, args...))
}

// InfoCtx logs msg and args at info level. ctx is ignored: no fields are
// read from it, so only the fields passed in args are attached.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	_ = ctx
	cur().Info(msg, args...)
}
