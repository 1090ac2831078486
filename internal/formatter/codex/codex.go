// Package codex parses the codex CLI's JSONL event stream, matching
// fmt.py's CodexFormatter exactly. Codex items carry no single "tool
// name" field of their own: `_codex_tool` resolves it from whichever of
// tool_name/tool/name is present, falling back to the item type with
// its "_call" suffix stripped, and command_execution items are always
// bash regardless of any name field. Pending tool calls are buffered by
// item id so a later item.completed with the same id resolves it.
package codex

import (
	"encoding/json"
	"strings"

	"github.com/untoldecay/inshallah/internal/formatter/shared"
	"github.com/untoldecay/inshallah/internal/sink"
)

type event struct {
	Type     string          `json:"type"`
	Item     *item           `json:"item"`
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

type item struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Command    string          `json:"command"`
	ToolName   string          `json:"tool_name"`
	Tool       string          `json:"tool"`
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input"`
	Parameters json.RawMessage `json:"parameters"`
	Args       json.RawMessage `json:"args"`
	Arguments  json.RawMessage `json:"arguments"`
	Query      string          `json:"query"`
	Prompt     string          `json:"prompt"`
	Path       string          `json:"path"`
	Status     string          `json:"status"`
	ExitCode   *int            `json:"exit_code"`
	Text       string          `json:"text"`
	Changes    []fileChange    `json:"changes"`
	Usage      *usage          `json:"usage"`
}

type fileChange struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type usage struct {
	TotalTokens *int `json:"total_tokens"`
}

var toolItemTypes = map[string]bool{
	"command_execution": true,
	"tool_call":         true,
	"function_call":     true,
	"web_search_call":   true,
	"file_search_call":  true,
	"computer_call":     true,
	"mcp_call":          true,
}

// Formatter implements formatter.Formatter for the codex dialect.
type Formatter struct {
	sink    sink.Sink
	pending *shared.PendingCalls
}

// New returns a fresh Formatter writing to s.
func New(s sink.Sink) *Formatter {
	return &Formatter{sink: s, pending: shared.NewPendingCalls()}
}

// ProcessLine parses one line of codex stdout, dropping it silently if
// it isn't valid JSON.
func (f *Formatter) ProcessLine(line string) {
	var ev event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return
	}

	switch ev.Type {
	case "item.started":
		if ev.Item != nil && toolItemTypes[ev.Item.Type] {
			f.bufferToolItem(ev.Item)
		}
	case "item.completed":
		if ev.Item == nil {
			return
		}
		f.handleItemCompleted(ev.Item)
	case "response.completed":
		var payload struct {
			Usage  *usage `json:"usage"`
			Status string `json:"status"`
		}
		_ = json.Unmarshal(ev.Response, &payload)
		var kv []sink.Stat
		if payload.Usage != nil && payload.Usage.TotalTokens != nil {
			kv = append(kv, sink.Stat{Key: "tokens", Value: itoa(*payload.Usage.TotalTokens)})
		}
		if payload.Status != "" {
			kv = append(kv, sink.Stat{Key: "status", Value: payload.Status})
		}
		if len(kv) > 0 {
			f.sink.Stats(kv)
		}
	case "error":
		f.sink.Error(ev.Error)
	}
}

// codexTool resolves the canonical tool name and detail for an item,
// or ("", "", false) if the item type isn't a tool invocation.
func codexTool(it *item) (name, detail string, ok bool) {
	if it.Type == "command_execution" {
		return "bash", shared.SummarizeShellCommand(it.Command), true
	}
	if !toolItemTypes[it.Type] {
		return "", "", false
	}

	rawName := it.ToolName
	if rawName == "" {
		rawName = it.Tool
	}
	if rawName == "" {
		rawName = it.Name
	}
	if rawName == "" {
		rawName = strings.TrimSuffix(it.Type, "_call")
	}
	canonical, _ := shared.CanonicalToolName(rawName)

	params := firstNonEmpty(it.Input, it.Parameters, it.Args, it.Arguments)
	detail = shared.ExtractDetail(canonical, params)
	if detail == "" {
		for _, v := range []string{it.Query, it.Prompt, it.Path} {
			if v != "" {
				detail = v
				break
			}
		}
	}
	return canonical, detail, true
}

func firstNonEmpty(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if len(c) > 0 {
			return c
		}
	}
	return nil
}

func (f *Formatter) bufferToolItem(it *item) {
	name, detail, ok := codexTool(it)
	if !ok {
		return
	}
	f.pending.Start(it.ID, name, detail)
}

func (f *Formatter) handleItemCompleted(it *item) {
	switch {
	case toolItemTypes[it.Type]:
		f.resolveToolItem(it)
	case it.Type == "agent_message" || it.Type == "message" || it.Type == "assistant_message":
		if it.Text != "" && it.Role != "user" {
			f.sink.Text(it.Text, false)
		}
	case it.Type == "file_change":
		for _, change := range it.Changes {
			canonical := "edit"
			if change.Kind == "create" {
				canonical = "write"
			}
			f.sink.Tool(canonical, change.Path, true)
		}
	case it.Type == "usage":
		if it.Usage != nil && it.Usage.TotalTokens != nil {
			f.sink.Stats([]sink.Stat{{Key: "tokens", Value: itoa(*it.Usage.TotalTokens)}})
		}
	}
}

func (f *Formatter) resolveToolItem(it *item) {
	ok := codexOK(it)
	call := f.pending.Resolve(it.ID)
	if call == nil {
		name, detail, itemOK := codexTool(it)
		if !itemOK {
			return
		}
		call = &shared.PendingCall{ID: it.ID, Name: name, Detail: detail}
	}
	f.sink.Tool(call.Name, call.Detail, ok)
}

func codexOK(it *item) bool {
	if it.ExitCode != nil {
		return *it.ExitCode == 0
	}
	switch it.Status {
	case "error", "failed", "aborted":
		return false
	}
	return true
}

// Finish flushes any still-pending tool calls as successes.
func (f *Formatter) Finish() {
	for _, call := range f.pending.FlushUnresolved() {
		f.sink.Tool(call.Name, call.Detail, true)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
