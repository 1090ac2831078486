// Package sink defines the Sink interface consumed by formatters and
// the DagRunner (spec §6): a small set of structured rendering calls
// that the CLI/web presentation layer implements. Two implementations
// live in subpackages: internal/sink/terminal (lipgloss/glamour,
// interactive) and internal/sink/plain (JSON or flat text, for
// non-interactive/machine-mode use).
package sink

// Stat is one ordered key/value metric. Ordering is caller-supplied so
// implementations don't need to re-derive a preferred display order
// from a map.
type Stat struct {
	Key   string
	Value string
}

// Sink renders structured orchestration output. Implementations MUST
// be safe to call from a single goroutine at a time; formatters never
// call a Sink concurrently with itself.
type Sink interface {
	// Panel renders a large titled message block.
	Panel(title, body, style string)
	// Line renders one plain or styled line.
	Line(text, style string)
	// Table renders structured tabular data under a title.
	Table(title string, rows [][]string)
	// Tool renders a single tool-invocation trace line.
	Tool(name, detail string, ok bool)
	// Text renders an assistant text chunk; delta indicates this is an
	// incremental streaming update rather than a whole message.
	Text(chunk string, delta bool)
	// Stats renders ordered key/value metrics (duration, cost, tokens, status).
	Stats(kv []Stat)
	// Error renders an error line.
	Error(msg string)
}
