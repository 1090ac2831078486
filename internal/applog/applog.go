// Package applog wires the engine's operational logging: structured
// log/slog records written to a rotating file via lumberjack, the
// ambient logging stack carried regardless of spec.md's feature
// Non-goals (SPEC_FULL §10).
package applog

import (
	"log/slog"
	"os"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotating log sink.
type Options struct {
	Dir        string // directory to hold inshallah.log; empty disables file logging
	MaxSizeMB  int
	MaxBackups int
}

// New returns a slog.Logger writing JSON records to a rotating log
// file under opts.Dir (falling back to stderr when Dir is empty), at
// Info level.
func New(opts Options) *slog.Logger {
	if opts.Dir == "" {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	writer := &lumberjack.Logger{
		Filename:   opts.Dir + "/inshallah.log",
		MaxSize:    nonZero(opts.MaxSizeMB, 50),
		MaxBackups: nonZero(opts.MaxBackups, 5),
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(writer, nil))
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
