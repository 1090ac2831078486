// Package gemini parses the gemini CLI's `--output-format stream-json`
// event stream, matching fmt.py's GeminiFormatter exactly: tool_use
// reads tool_name/parameters, tool_result's outcome comes from a status
// string ("success"/"ok"/"" all count as success), message is gated on
// role=="assistant" and reads content, and result captures status,
// duration_ms, and usage.totalTokens. Deltas are not used; messages are
// whole. A tool_use is buffered in a single pending slot (no id) and
// rendered when the matching tool_result arrives, same as claude/pi.
package gemini

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/untoldecay/inshallah/internal/formatter/shared"
	"github.com/untoldecay/inshallah/internal/sink"
)

type event struct {
	Type       string          `json:"type"`
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
	Status     string          `json:"status"`
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	DurationMs *float64        `json:"duration_ms"`
	Usage      *usage          `json:"usage"`
	Error      any             `json:"error"`
	Message    string          `json:"message"`
}

type usage struct {
	TotalTokens *int `json:"totalTokens"`
}

// Formatter implements formatter.Formatter for the gemini dialect.
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

// ProcessLine parses one line of gemini stdout, dropping it silently on
// malformed JSON.
func (f *Formatter) ProcessLine(line string) {
	var ev event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return
	}

	switch ev.Type {
	case "tool_use":
		name, _ := shared.CanonicalToolName(ev.ToolName)
		detail := shared.ExtractDetail(name, ev.Parameters)
		f.bufferTool(name, detail)
	case "tool_result":
		status := strings.ToLower(ev.Status)
		ok := status == "success" || status == "ok" || status == ""
		f.resolveTool(ok)
	case "message":
		if ev.Role == "assistant" && ev.Content != "" {
			f.sink.Text(ev.Content, false)
		}
	case "result":
		status := ev.Status
		if status == "" {
			status = "unknown"
		}
		kv := []sink.Stat{{Key: "status", Value: status}}
		if ev.DurationMs != nil {
			kv = append(kv, sink.Stat{Key: "duration", Value: strconv.FormatFloat(*ev.DurationMs/1000.0, 'f', 3, 64)})
		}
		if ev.Usage != nil && ev.Usage.TotalTokens != nil {
			kv = append(kv, sink.Stat{Key: "tokens", Value: strconv.Itoa(*ev.Usage.TotalTokens)})
		}
		f.sink.Stats(kv)
	case "error":
		f.sink.Error(errorMessage(ev.Error, ev.Message, line))
	}
}

func errorMessage(raw any, message, line string) string {
	switch v := raw.(type) {
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
		if details, ok := v["details"].(string); ok && details != "" {
			return details
		}
		b, err := json.Marshal(v)
		if err != nil {
			return line
		}
		return string(b)
	case string:
		if v != "" {
			return v
		}
	}
	if message != "" {
		return message
	}
	return line
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
