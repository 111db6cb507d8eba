// Package logging configures the process-wide slog.Logger used by
// cmd/deskagent and every internal package that logs through
// slog.Default(). It mirrors the teacher CLI's habit of swapping handlers
// at startup based on a debug/verbose flag rather than building a custom
// logging abstraction.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options controls how New builds the logger.
type Options struct {
	// Verbose selects a human-readable text handler at debug level,
	// matching local interactive use (--verbose). Non-interactive runs
	// get a JSON handler at info level, suitable for piping into a log
	// collector.
	Verbose bool

	// Output overrides the handler's writer. Defaults to os.Stderr so
	// stdout stays free for any machine-readable command output.
	Output io.Writer
}

// New builds a slog.Logger per Options but does not install it as the
// package default; callers that want slog.Default()/slog.Info() etc to
// use it should pass the result to Init instead.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	if opts.Verbose {
		handler := slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		return slog.New(handler)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// Init builds a logger per Options and installs it as slog's package
// default, so every call site using the top-level slog.Info/Warn/Error
// helpers picks it up without threading a *slog.Logger through.
func Init(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}
