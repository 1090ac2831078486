package plain

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/untoldecay/inshallah/internal/sink"
)

var (
	_ sink.Sink = (*Sink)(nil)
	_ sink.Sink = (*JSONSink)(nil)
)

func TestSinkToolLineFormatsOkAndFailure(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)
	s.Tool("bash", "ls -la", true)
	s.Tool("edit", "main.go", false)
	out := buf.String()
	if !strings.Contains(out, "+ bash ls -la") {
		t.Fatalf("expected ok-prefixed tool line, got: %q", out)
	}
	if !strings.Contains(out, "x edit main.go") {
		t.Fatalf("expected failure-prefixed tool line, got: %q", out)
	}
}

func TestSinkTextDeltaOmitsTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)
	s.Text("partial", true)
	if buf.String() != "partial" {
		t.Fatalf("expected no trailing newline on delta text, got %q", buf.String())
	}
}

func TestJSONSinkEmitsOneLinePerCall(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSON(&buf)
	s.Tool("bash", "ls", true)
	s.Error("boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d: %q", len(lines), buf.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["kind"] != "tool" || decoded["name"] != "bash" {
		t.Fatalf("unexpected first line: %v", decoded)
	}
}

func TestJSONSinkStatsFlattensOrderedPairs(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSON(&buf)
	s.Stats([]sink.Stat{{Key: "duration", Value: "1.2s"}, {Key: "tokens", Value: "42"}})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	values, ok := decoded["values"].(map[string]any)
	if !ok {
		t.Fatalf("expected values map, got %v", decoded["values"])
	}
	if values["duration"] != "1.2s" || values["tokens"] != "42" {
		t.Fatalf("unexpected values: %v", values)
	}
}
