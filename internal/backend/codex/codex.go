// Package codex adapts the codex CLI to the backend.Backend interface.
// Invocation and the item/event shape consumed downstream by
// internal/formatter/codex are grounded on spec §4.4.1's Codex
// subsection: items of type command_execution/tool_call/function_call/
// file_search_call, exit_code/status-derived ok, item.completed
// carrying final assistant text, response.completed carrying usage.
package codex

import (
	"context"

	"github.com/untoldecay/inshallah/internal/backend"
)

func init() {
	backend.Register("codex", New)
}

type adapter struct{}

// New returns a Backend that drives the codex CLI in non-interactive,
// JSON-streaming exec mode.
func New() backend.Backend { return &adapter{} }

func (a *adapter) Run(ctx context.Context, args backend.RunArgs) (int, error) {
	argv := []string{
		"codex", "exec",
		"--json",
		"--model", args.Model,
		"--reasoning-effort", args.Reasoning,
		"--cd", args.Cwd,
		"-",
	}
	return backend.RunStreamed(ctx, argv, args.Prompt, args)
}
