// Package opencode parses the OpenCode CLI's `run --format json` event
// stream, matching fmt.py's OpenCodeFormatter exactly: tool_use and
// text events nest their payload under a "part" object
// (part.tool/part.state.input/part.state.status, part.text), and a
// tool_use is rendered immediately from its own event — unlike the
// other dialects there is no pending call waiting on a later resolving
// event.
package opencode

import (
	"encoding/json"

	"github.com/untoldecay/inshallah/internal/formatter/shared"
	"github.com/untoldecay/inshallah/internal/sink"
)

type event struct {
	Type  string `json:"type"`
	Part  *part  `json:"part"`
	Error any    `json:"error"`
}

type part struct {
	Tool  string     `json:"tool"`
	State *toolState `json:"state"`
	Text  string     `json:"text"`
}

type toolState struct {
	Input  json.RawMessage `json:"input"`
	Status string          `json:"status"`
}

// Formatter implements formatter.Formatter for the opencode dialect.
type Formatter struct {
	sink sink.Sink
}

// New returns a fresh Formatter writing to s.
func New(s sink.Sink) *Formatter {
	return &Formatter{sink: s}
}

// ProcessLine parses one line of opencode stdout, dropping it silently
// on malformed JSON.
func (f *Formatter) ProcessLine(line string) {
	var ev event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return
	}

	switch ev.Type {
	case "tool_use":
		if ev.Part == nil {
			return
		}
		name, _ := shared.CanonicalToolName(ev.Part.Tool)
		var input json.RawMessage
		status := ""
		if ev.Part.State != nil {
			input = ev.Part.State.Input
			status = ev.Part.State.Status
		}
		detail := shared.ExtractDetail(name, input)
		f.sink.Tool(name, detail, status != "error")
	case "text":
		if ev.Part != nil && ev.Part.Text != "" {
			f.sink.Text(ev.Part.Text, false)
		}
	case "error":
		f.sink.Error(errorMessage(ev.Error, line))
	}
}

func errorMessage(raw any, line string) string {
	m, ok := raw.(map[string]any)
	if !ok {
		if s, ok := raw.(string); ok && s != "" {
			return s
		}
		return line
	}
	if data, ok := m["data"].(map[string]any); ok {
		if msg, ok := data["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg
	}
	if name, ok := m["name"].(string); ok && name != "" {
		return name
	}
	b, err := json.Marshal(m)
	if err != nil {
		return line
	}
	return string(b)
}

// Finish is a no-op: opencode renders each tool call immediately, with
// nothing left buffered at stream end.
func (f *Formatter) Finish() {}
