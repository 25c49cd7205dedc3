// Package log builds the process logger. Components receive a *slog.Logger
// through their constructors and may narrow it with
// logger.With("component", ...); nothing in the repo logs through a global.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Config selects handler format and verbosity.
type Config struct {
	// Level is the minimum level emitted. The zero value is slog.LevelInfo.
	Level slog.Level

	// JSON switches from the text handler to the JSON handler.
	JSON bool

	// AddSource annotates every record with its file:line origin.
	AddSource bool
}

// New returns a logger writing to stderr.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w. Tests pass a buffer here to
// assert on output.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything. Test-only; production
// code keeps failures diagnosable by going through New or NewWithWriter.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
