// Package plain implements sink.Sink for non-interactive output: flat
// unstyled text for redirected stdout/logs, or a single newline-
// delimited JSON object per call in machine mode. TTY detection is
// grounded on BeadsLog's internal/ui.IsTerminal (golang.org/x/term).
package plain

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/untoldecay/inshallah/internal/sink"
	"golang.org/x/term"
)

// IsTerminal reports whether fd 1 (stdout) is attached to a TTY,
// mirroring BeadsLog's internal/ui.IsTerminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Sink renders flat text lines, one per call, with no ANSI styling.
// Used when stdout is not a terminal (redirected to a file or pipe).
type Sink struct {
	out io.Writer
}

// New returns a plain-text Sink writing to out.
func New(out io.Writer) *Sink { return &Sink{out: out} }

func (s *Sink) Panel(title, body, style string) {
	fmt.Fprintln(s.out, title)
	fmt.Fprintln(s.out, body)
}

func (s *Sink) Line(text, style string) { fmt.Fprintln(s.out, text) }

func (s *Sink) Table(title string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(s.out, title)
	}
	for _, row := range rows {
		fmt.Fprintln(s.out, strings.Join(row, "\t"))
	}
}

func (s *Sink) Tool(name, detail string, ok bool) {
	prefix := "+"
	if !ok {
		prefix = "x"
	}
	line := "  " + prefix + " " + name
	if detail != "" {
		line += " " + detail
	}
	fmt.Fprintln(s.out, line)
}

func (s *Sink) Text(chunk string, delta bool) {
	if chunk == "" {
		return
	}
	fmt.Fprint(s.out, chunk)
	if !delta {
		fmt.Fprintln(s.out)
	}
}

func (s *Sink) Stats(kv []sink.Stat) {
	if len(kv) == 0 {
		return
	}
	parts := make([]string, 0, len(kv))
	for _, stat := range kv {
		parts = append(parts, stat.Key+"="+stat.Value)
	}
	fmt.Fprintln(s.out, "  stats "+strings.Join(parts, " "))
}

func (s *Sink) Error(msg string) { fmt.Fprintln(s.out, "  error: "+msg) }

// JSONSink renders each call as a single compact JSON line to out, for
// `--json` machine-mode consumers (spec §6's termination-code section).
type JSONSink struct {
	out io.Writer
	enc *json.Encoder
}

// NewJSON returns a JSONSink writing newline-delimited JSON to out.
func NewJSON(out io.Writer) *JSONSink {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &JSONSink{out: out, enc: enc}
}

func (s *JSONSink) emit(kind string, fields map[string]any) {
	fields["kind"] = kind
	_ = s.enc.Encode(fields)
}

func (s *JSONSink) Panel(title, body, style string) {
	s.emit("panel", map[string]any{"title": title, "body": body, "style": style})
}

func (s *JSONSink) Line(text, style string) {
	s.emit("line", map[string]any{"text": text, "style": style})
}

func (s *JSONSink) Table(title string, rows [][]string) {
	s.emit("table", map[string]any{"title": title, "rows": rows})
}

func (s *JSONSink) Tool(name, detail string, ok bool) {
	s.emit("tool", map[string]any{"name": name, "detail": detail, "ok": ok})
}

func (s *JSONSink) Text(chunk string, delta bool) {
	s.emit("text", map[string]any{"chunk": chunk, "delta": delta})
}

func (s *JSONSink) Stats(kv []sink.Stat) {
	flat := make(map[string]string, len(kv))
	for _, stat := range kv {
		flat[stat.Key] = stat.Value
	}
	s.emit("stats", map[string]any{"values": flat})
}

func (s *JSONSink) Error(msg string) {
	s.emit("error", map[string]any{"message": msg})
}
