// Package formatter implements the per-vendor streaming state machine
// of spec §4.4.1: each backend's raw stdout lines are fed to a
// Formatter, which parses that vendor's JSON dialect and renders
// structured updates to a Sink. Grounded on fmt.py's get_formatter
// dispatch and per-vendor parsing rules; Claude's wire-envelope field
// naming is adapted from other_examples' streamjson package, down to
// only the fields spec.md's dialect summary requires.
package formatter

import (
	"github.com/untoldecay/inshallah/internal/formatter/claude"
	"github.com/untoldecay/inshallah/internal/formatter/codex"
	"github.com/untoldecay/inshallah/internal/formatter/gemini"
	"github.com/untoldecay/inshallah/internal/formatter/opencode"
	"github.com/untoldecay/inshallah/internal/formatter/pi"
	"github.com/untoldecay/inshallah/internal/sink"
)

// Formatter consumes a backend's stdout one line at a time and is
// tolerant of malformed JSON: it drops the line rather than erroring.
// Finish flushes any still-pending tool calls as successes.
type Formatter interface {
	ProcessLine(line string)
	Finish()
}

// Get returns the Formatter for the named vendor dialect, falling back
// to codex for unknown names (symmetric with backend.Get's fallback).
func Get(name string, s sink.Sink) Formatter {
	switch name {
	case "claude":
		return claude.New(s)
	case "opencode":
		return opencode.New(s)
	case "gemini":
		return gemini.New(s)
	case "pi":
		return pi.New(s)
	default:
		return codex.New(s)
	}
}
