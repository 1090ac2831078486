package claude

import (
	"testing"

	"github.com/untoldecay/inshallah/internal/sink"
)

type recordingSink struct {
	tools []string
	texts []string
	lines []string
	stats [][]sink.Stat
}

func (r *recordingSink) Panel(title, body, style string)     {}
func (r *recordingSink) Line(text, style string)              { r.lines = append(r.lines, text) }
func (r *recordingSink) Table(title string, rows [][]string) {}
func (r *recordingSink) Tool(name, detail string, ok bool) {
	status := "ok"
	if !ok {
		status = "fail"
	}
	r.tools = append(r.tools, name+":"+detail+":"+status)
}
func (r *recordingSink) Text(chunk string, delta bool) { r.texts = append(r.texts, chunk) }
func (r *recordingSink) Stats(kv []sink.Stat)          { r.stats = append(r.stats, kv) }
func (r *recordingSink) Error(msg string)              {}

func TestFormatterAggregatesToolUseInputFromStreamEvent(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"tool_use","id":"tu_1","name":"bash"}}}`)
	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"comm"}}}`)
	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"and\":\"ls -la\"}"}}}`)
	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_stop"}}`)
	f.Finish()

	if len(s.tools) != 1 || s.tools[0] != "bash:ls -la:ok" {
		t.Fatalf("unexpected tools: %+v", s.tools)
	}
}

func TestFormatterStreamsTextAndThinkingFromStreamEvent(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"thinking"}}}`)
	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"text"}}}`)
	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}}`)
	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":" there"}}}`)
	f.Finish()

	if len(s.lines) != 1 || s.lines[0] != "thinking..." {
		t.Fatalf("expected single thinking line, got %+v", s.lines)
	}
	if len(s.texts) != 2 || s.texts[0] != "hi" || s.texts[1] != " there" {
		t.Fatalf("unexpected text deltas: %+v", s.texts)
	}
}

func TestFormatterResultStats(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"result","cost_usd":0.0123,"duration_ms":4500}`)

	if len(s.stats) != 1 {
		t.Fatalf("expected one stats call, got %+v", s.stats)
	}
	kv := s.stats[0]
	if kv[0].Key != "duration" || kv[0].Value != "4.500" {
		t.Fatalf("unexpected duration stat: %+v", kv[0])
	}
	if kv[1].Key != "cost" || kv[1].Value != "0.0123" {
		t.Fatalf("unexpected cost stat: %+v", kv[1])
	}
}

func TestFormatterFlatAssistantToolUseAndResult(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"tool_use","tool_use_id":"tu_2","tool":"bash","input":{"command":"echo hi"}}`)
	f.ProcessLine(`{"type":"tool_result","tool_use_id":"tu_2","is_error":false}`)
	f.ProcessLine(`{"type":"assistant","message":{"content":"all done"}}`)

	if len(s.tools) != 1 || s.tools[0] != "bash:echo hi:ok" {
		t.Fatalf("unexpected tools: %+v", s.tools)
	}
	if len(s.texts) != 1 || s.texts[0] != "all done" {
		t.Fatalf("unexpected assistant text: %+v", s.texts)
	}
}

func TestFormatterSkipsFlatToolUseAlreadySeenViaStreamEvent(t *testing.T) {
	s := &recordingSink{}
	f := New(s)

	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"tool_use","id":"tu_3","name":"bash"}}}`)
	f.ProcessLine(`{"type":"stream_event","event":{"type":"content_block_stop"}}`)
	// A duplicate flat tool_use event carrying the same id must not render twice.
	f.ProcessLine(`{"type":"tool_use","tool_use_id":"tu_3","tool":"bash","input":{"command":"ls"}}`)
	f.Finish()

	if len(s.tools) != 1 {
		t.Fatalf("expected a single tool render, got %+v", s.tools)
	}
}
