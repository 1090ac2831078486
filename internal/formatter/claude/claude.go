// Package claude parses the claude CLI's JSON event stream (spec
// §4.4.1), matching fmt.py's ClaudeFormatter exactly. Partial-streaming
// content arrives wrapped as {"type":"stream_event","event":{...}}; the
// inner envelope is unwrapped before dispatch. Without
// --include-partial-messages the CLI instead emits flat top-level
// assistant/tool_use/tool_result/error events, which are handled the
// same way fmt.py does, deduped against stream_event tool ids already
// emitted so a tool is never rendered twice.
package claude

import (
	"encoding/json"
	"strconv"

	"github.com/untoldecay/inshallah/internal/formatter/shared"
	"github.com/untoldecay/inshallah/internal/sink"
)

type event struct {
	Type    string          `json:"type"`
	Event   *innerEvent     `json:"event"`
	Message *message        `json:"message"`
	CostUSD *float64        `json:"cost_usd"`
	Total   *float64        `json:"total_cost_usd"`
	Duration *float64       `json:"duration_ms"`
	ToolUseID string        `json:"tool_use_id"`
	Tool    string          `json:"tool"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	IsError bool            `json:"is_error"`
	Error   string          `json:"error"`
}

type innerEvent struct {
	Type         string        `json:"type"`
	ContentBlock *contentBlock `json:"content_block"`
	Delta        *delta        `json:"delta"`
}

type contentBlock struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type delta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
}

type message struct {
	Content any `json:"content"`
}

// Formatter implements formatter.Formatter for the claude dialect.
type Formatter struct {
	sink sink.Sink

	thinking bool

	activeBlockType string
	activeToolName  string
	activeToolJSON  string
	streamToolIDs   map[string]bool

	pendingName   string
	pendingDetail string
	havePending   bool
}

// New returns a fresh Formatter writing to s.
func New(s sink.Sink) *Formatter {
	return &Formatter{sink: s, streamToolIDs: map[string]bool{}}
}

// ProcessLine parses one line of claude stdout, dropping it silently on
// malformed JSON.
func (f *Formatter) ProcessLine(line string) {
	var ev event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return
	}

	switch ev.Type {
	case "stream_event":
		f.handleStreamEvent(ev.Event)
	case "assistant":
		f.thinking = false
		if text := assistantText(ev.Message); text != "" {
			f.sink.Text(text, false)
		}
	case "result":
		var kv []sink.Stat
		cost := ev.CostUSD
		if cost == nil {
			cost = ev.Total
		}
		if ev.Duration != nil {
			kv = append(kv, sink.Stat{Key: "duration", Value: strconv.FormatFloat(*ev.Duration/1000.0, 'f', 3, 64)})
		}
		if cost != nil {
			kv = append(kv, sink.Stat{Key: "cost", Value: strconv.FormatFloat(*cost, 'f', 4, 64)})
		}
		if len(kv) > 0 {
			f.sink.Stats(kv)
		}
	case "tool_use":
		f.thinking = false
		if ev.ToolUseID != "" && f.streamToolIDs[ev.ToolUseID] {
			return
		}
		raw := ev.Tool
		if raw == "" {
			raw = ev.Name
		}
		canonical, _ := shared.CanonicalToolName(raw)
		detail := shared.ExtractDetail(canonical, ev.Input)
		f.bufferTool(canonical, detail)
	case "tool_result":
		f.resolveTool(!ev.IsError)
	case "error":
		f.sink.Error(ev.Error)
	}
}

func (f *Formatter) handleStreamEvent(inner *innerEvent) {
	if inner == nil {
		return
	}
	switch inner.Type {
	case "content_block_start":
		block := inner.ContentBlock
		if block == nil {
			return
		}
		f.activeBlockType = block.Type
		switch block.Type {
		case "thinking":
			if !f.thinking {
				f.thinking = true
				f.sink.Line("thinking...", "dim")
			}
		case "tool_use":
			f.activeToolName = block.Name
			f.activeToolJSON = ""
			if block.ID != "" {
				f.streamToolIDs[block.ID] = true
			}
		}
	case "content_block_delta":
		d := inner.Delta
		if d == nil {
			return
		}
		switch d.Type {
		case "input_json_delta":
			f.activeToolJSON += d.PartialJSON
		case "text_delta":
			if d.Text != "" {
				f.sink.Text(d.Text, true)
			}
		}
	case "content_block_stop":
		if f.activeBlockType == "tool_use" && f.activeToolName != "" {
			canonical, _ := shared.CanonicalToolName(f.activeToolName)
			detail := shared.ExtractDetail(canonical, json.RawMessage(f.activeToolJSON))
			f.bufferTool(canonical, detail)
		}
		f.thinking = false
		f.activeBlockType = ""
		f.activeToolName = ""
		f.activeToolJSON = ""
	}
}

// bufferTool mirrors fmt.py's single-slot pending buffer: a new buffer
// call flushes any still-pending call as a success first.
func (f *Formatter) bufferTool(name, detail string) {
	f.flushPending()
	f.pendingName, f.pendingDetail, f.havePending = name, detail, true
}

func (f *Formatter) resolveTool(ok bool) {
	if !f.havePending {
		return
	}
	name, detail := f.pendingName, f.pendingDetail
	f.havePending = false
	f.sink.Tool(name, detail, ok)
}

func (f *Formatter) flushPending() {
	if f.havePending {
		name, detail := f.pendingName, f.pendingDetail
		f.havePending = false
		f.sink.Tool(name, detail, true)
	}
}

// Finish flushes any still-pending tool call as a success and closes
// out the stream.
func (f *Formatter) Finish() {
	f.flushPending()
}

func assistantText(msg *message) string {
	if msg == nil {
		return ""
	}
	switch v := msg.Content.(type) {
	case string:
		return v
	case []any:
		var out string
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				out += text
			}
		}
		return out
	}
	return ""
}
