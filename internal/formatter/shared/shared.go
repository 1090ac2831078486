// Package shared implements the vendor-independent pieces of the
// Formatter state machine (spec §4.4.1): canonical tool naming, shell
// command summarisation, and tool-call buffering. Each vendor formatter
// package composes these helpers around its own wire-format parser.
package shared

import (
	"encoding/json"
	"strings"
)

// Category classifies a canonical tool name for Sink styling.
type Category string

const (
	Observe  Category = "observe"
	Mutate   Category = "mutate"
	Execute  Category = "execute"
	Delegate Category = "delegate"
	Unknown  Category = ""
)

var aliasTable = map[string]string{
	"read": "read", "read_file": "read", "open": "read", "click": "read", "screenshot": "read",
	"write": "write", "write_file": "write",
	"edit": "edit", "replace": "edit", "apply_patch": "edit",
	"bash": "bash", "run_shell_command": "bash", "exec_command": "bash", "write_stdin": "bash", "command_execution": "bash",
	"glob": "glob", "find": "glob",
	"grep": "grep", "search_file_content": "grep",
	"search": "search", "image_query": "search", "search_query": "search",
	"task": "task", "parallel": "task",
}

var categoryTable = map[string]Category{
	"read": Observe, "glob": Observe, "grep": Observe, "search": Observe,
	"write": Mutate, "edit": Mutate,
	"bash": Execute,
	"task": Delegate,
}

// CanonicalToolName reduces a vendor tool name to its canonical form and
// style category, per spec.md §4.4.1's alias table. Names containing a
// "." are reduced to the segment after the last dot first. Any
// "mcp__"-prefixed name canonicalizes to "task"/delegate, checked before
// lowercasing (matching fmt.py's _normalize_tool). Unknown names
// (including anything absent from the alias table) pass through
// lowercased and unchanged, rendered with the "dim" style by callers.
func CanonicalToolName(name string) (canonical string, category Category) {
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	if strings.HasPrefix(name, "mcp__") {
		return "task", Delegate
	}
	name = strings.ToLower(name)
	if canon, ok := aliasTable[name]; ok {
		return canon, categoryTable[canon]
	}
	return name, Unknown
}

const maxDetailWidth = 100

// SummarizeShellCommand applies the shell-wrapper unwrapping and
// truncation rules of spec.md §4.4.1 to a raw bash tool invocation.
func SummarizeShellCommand(cmd string) string {
	cmd = unwrapShellInvocation(cmd)

	lines := strings.Split(cmd, "\n")
	// drop a leading "set -euo pipefail" line
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "set -euo pipefail" {
		lines = lines[1:]
	}

	var first string
	extra := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if first == "" {
			first = trimmed
			continue
		}
		extra++
	}
	if first == "" {
		first = strings.TrimSpace(cmd)
	}

	if strings.HasPrefix(first, "cd ") {
		if idx := strings.Index(first, " && "); idx != -1 {
			first = first[idx+4:]
		}
	}

	if extra > 0 {
		first = first + " (+" + itoa(extra) + " more lines)"
	}
	return truncate(first, maxDetailWidth)
}

// unwrapShellInvocation strips a `/shell -lc '<inner>'`-style wrapper,
// returning inner unchanged if the wrapper shape isn't present.
func unwrapShellInvocation(cmd string) string {
	const marker = " -lc "
	idx := strings.Index(cmd, marker)
	if idx == -1 {
		return cmd
	}
	rest := strings.TrimSpace(cmd[idx+len(marker):])
	if len(rest) >= 2 && (rest[0] == '\'' || rest[0] == '"') {
		quote := rest[0]
		if rest[len(rest)-1] == quote {
			return rest[1 : len(rest)-1]
		}
	}
	return rest
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// ExtractDetail pulls a human-readable detail string out of a tool's raw
// parameters, per canonical tool name, matching fmt.py's
// _extract_detail staticmethod shared by every dialect.
func ExtractDetail(canonical string, rawParams json.RawMessage) string {
	if len(rawParams) == 0 {
		return ""
	}
	var params map[string]any
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return ""
	}
	switch canonical {
	case "read", "glob", "grep":
		for _, key := range []string{"file_path", "filePath", "path", "pattern", "query"} {
			if v, ok := params[key].(string); ok && v != "" {
				return v
			}
		}
	case "edit", "write":
		for _, key := range []string{"file_path", "filePath", "path"} {
			if v, ok := params[key].(string); ok && v != "" {
				return v
			}
		}
	case "bash":
		for _, key := range []string{"command", "cmd"} {
			if v, ok := params[key].(string); ok && v != "" {
				return SummarizeShellCommand(v)
			}
		}
	case "task":
		if v, ok := params["description"].(string); ok && v != "" {
			return v
		}
	default:
		for _, v := range params {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// PendingCall is a tool invocation awaiting its resolving result.
type PendingCall struct {
	ID       string
	Name     string
	Detail   string
	Resolved bool
}

// PendingCalls buffers tool-use events until their matching tool-result
// arrives, deduplicating by event id across partial/consolidated
// streams and flushing any still-open calls as successes at Finish.
type PendingCalls struct {
	order []string
	byID  map[string]*PendingCall
}

// NewPendingCalls returns an empty buffer.
func NewPendingCalls() *PendingCalls {
	return &PendingCalls{byID: map[string]*PendingCall{}}
}

// Start records a new pending tool call, or is a no-op if id was
// already seen (the dedup-by-id rule).
func (p *PendingCalls) Start(id, name, detail string) {
	if _, exists := p.byID[id]; exists {
		return
	}
	call := &PendingCall{ID: id, Name: name, Detail: detail}
	p.byID[id] = call
	p.order = append(p.order, id)
}

// Resolve marks id's pending call resolved and returns it, or nil if id
// is unknown.
func (p *PendingCalls) Resolve(id string) *PendingCall {
	call, ok := p.byID[id]
	if !ok {
		return nil
	}
	call.Resolved = true
	return call
}

// FlushUnresolved returns every still-pending call, in arrival order,
// for a caller to render as successes at stream end.
func (p *PendingCalls) FlushUnresolved() []*PendingCall {
	var out []*PendingCall
	for _, id := range p.order {
		call := p.byID[id]
		if !call.Resolved {
			out = append(out, call)
		}
	}
	return out
}
