// Package pi parses the pi CLI's `--mode json` event stream, matching
// fmt.py's PiFormatter exactly: tool_execution_start reads toolName/args,
// message_update's assistantMessageEvent carries streaming text under a
// "delta" field (type=="text_delta") or an inline error
// (type=="error"), and message_end nests its payload under a "message"
// object (message.role/message.stopReason/message.errorMessage).
package pi

import (
	"encoding/json"

	"github.com/untoldecay/inshallah/internal/formatter/shared"
	"github.com/untoldecay/inshallah/internal/sink"
)

type event struct {
	Type                  string             `json:"type"`
	ToolName              string             `json:"toolName"`
	Args                  json.RawMessage    `json:"args"`
	IsError               bool               `json:"isError"`
	AssistantMessageEvent *assistantMsgEvent `json:"assistantMessageEvent"`
	Message               *piMessage         `json:"message"`
	Error                 string             `json:"error"`
}

type assistantMsgEvent struct {
	Type  string          `json:"type"`
	Delta string          `json:"delta"`
	Error json.RawMessage `json:"error"`
}

type assistantError struct {
	ErrorMessage string `json:"errorMessage"`
	Message      string `json:"message"`
}

type piMessage struct {
	Role         string `json:"role"`
	StopReason   string `json:"stopReason"`
	ErrorMessage string `json:"errorMessage"`
}

// Formatter implements formatter.Formatter for the pi dialect.
type Formatter struct {
	sink sink.Sink

	pendingName   string
	pendingDetail string
	havePending   bool
}

// New returns a fresh Formatter writing to s.
func New(s sink.Sink) *Formatter {
	return &Formatter{sink: s}
}

// ProcessLine parses one line of pi stdout, dropping it silently on
// malformed JSON.
func (f *Formatter) ProcessLine(line string) {
	var ev event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return
	}

	switch ev.Type {
	case "tool_execution_start":
		name, _ := shared.CanonicalToolName(ev.ToolName)
		detail := shared.ExtractDetail(name, ev.Args)
		f.bufferTool(name, detail)
	case "tool_execution_end":
		f.resolveTool(!ev.IsError)
	case "message_update":
		if ev.AssistantMessageEvent == nil {
			return
		}
		switch ev.AssistantMessageEvent.Type {
		case "text_delta":
			if ev.AssistantMessageEvent.Delta != "" {
				f.sink.Text(ev.AssistantMessageEvent.Delta, true)
			}
		case "error":
			f.sink.Error(assistantErrorMessage(ev.AssistantMessageEvent.Error))
		}
	case "message_end":
		if ev.Message != nil && ev.Message.Role == "assistant" {
			switch ev.Message.StopReason {
			case "error", "aborted":
				msg := ev.Message.ErrorMessage
				if msg == "" {
					msg = "assistant " + ev.Message.StopReason
				}
				f.sink.Error(msg)
			}
		}
	case "error":
		f.sink.Error(ev.Error)
	}
}

func assistantErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "assistant error"
	}
	var e assistantError
	if err := json.Unmarshal(raw, &e); err != nil {
		return "assistant error"
	}
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	if e.Message != "" {
		return e.Message
	}
	return "assistant error"
}

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

// Finish flushes any still-pending tool call as a success.
func (f *Formatter) Finish() {
	f.flushPending()
}
