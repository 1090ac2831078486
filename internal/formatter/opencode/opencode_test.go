package opencode

import (
	"testing"

	"github.com/untoldecay/inshallah/internal/sink"
)

type recordingSink struct {
	tools []string
	texts []string
	errs  []string
}

func (r *recordingSink) Panel(title, body, style string)     {}
func (r *recordingSink) Line(text, style string)              {}
func (r *recordingSink) Table(title string, rows [][]string) {}
func (r *recordingSink) Tool(name, detail string, ok bool) {
	status := "ok"
	if !ok {
		status = "fail"
	}
	r.tools = append(r.tools, name+":"+detail+":"+status)
}
func (r *recordingSink) Text(chunk string, delta bool) { r.texts = append(r.texts, chunk) }
func (r *recordingSink) Stats(kv []sink.Stat)          {}
func (r *recordingSink) Error(msg string)              { r.errs = append(r.errs, msg) }

func TestFormatterRendersToolUseFromNestedPart(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"tool_use","part":{"tool":"bash","state":{"input":{"command":"ls -la"},"status":"completed"}}}`)
	f.ProcessLine(`{"type":"tool_use","part":{"tool":"write_file","state":{"input":{"path":"a.go"},"status":"error"}}}`)
	f.Finish()

	if len(s.tools) != 2 {
		t.Fatalf("expected two tool renders, got %+v", s.tools)
	}
	if s.tools[0] != "bash:ls -la:ok" {
		t.Fatalf("unexpected first tool: %q", s.tools[0])
	}
	if s.tools[1] != "write:a.go:fail" {
		t.Fatalf("unexpected second tool: %q", s.tools[1])
	}
}

func TestFormatterRendersTextFromNestedPart(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"text","part":{"text":"hello"}}`)

	if len(s.texts) != 1 || s.texts[0] != "hello" {
		t.Fatalf("unexpected texts: %+v", s.texts)
	}
}

func TestFormatterErrorPrefersNestedDataMessage(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"error","error":{"data":{"message":"boom"},"message":"other"}}`)

	if len(s.errs) != 1 || s.errs[0] != "boom" {
		t.Fatalf("unexpected errors: %+v", s.errs)
	}
}
