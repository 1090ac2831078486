package pi

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

func TestFormatterResolvesToolByToolNameField(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"tool_execution_start","toolName":"run_shell_command","args":{"command":"ls -la"}}`)
	f.ProcessLine(`{"type":"tool_execution_end","isError":false}`)

	if len(s.tools) != 1 || s.tools[0] != "bash:ls -la:ok" {
		t.Fatalf("unexpected tools: %+v", s.tools)
	}
}

func TestFormatterTextDeltaUsesDeltaField(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"hi"}}`)

	if len(s.texts) != 1 || s.texts[0] != "hi" {
		t.Fatalf("unexpected texts: %+v", s.texts)
	}
}

func TestFormatterAssistantMessageEventError(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"message_update","assistantMessageEvent":{"type":"error","error":{"errorMessage":"boom"}}}`)

	if len(s.errs) != 1 || s.errs[0] != "boom" {
		t.Fatalf("unexpected errors: %+v", s.errs)
	}
}

func TestFormatterMessageEndNestsUnderMessageObject(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"message_end","message":{"role":"assistant","stopReason":"error","errorMessage":"failed"}}`)

	if len(s.errs) != 1 || s.errs[0] != "failed" {
		t.Fatalf("unexpected errors: %+v", s.errs)
	}
}

func TestFormatterMessageEndIgnoresNonAssistantRole(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"message_end","message":{"role":"user","stopReason":"error"}}`)

	if len(s.errs) != 0 {
		t.Fatalf("expected no errors for non-assistant message_end, got %+v", s.errs)
	}
}
