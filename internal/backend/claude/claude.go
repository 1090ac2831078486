// Package claude adapts the claude CLI to the backend.Backend
// interface. This invocation does not pass --include-partial-messages,
// so claude emits flat top-level assistant/tool_use/tool_result/error
// events rather than stream_event-wrapped content blocks;
// internal/formatter/claude handles both shapes since either may appear
// depending on flags, matching fmt.py's ClaudeFormatter.
package claude

import (
	"context"

	"github.com/untoldecay/inshallah/internal/backend"
)

func init() {
	backend.Register("claude", New)
}

type adapter struct{}

// New returns a Backend that drives the claude CLI in non-interactive,
// streaming JSON mode.
func New() backend.Backend { return &adapter{} }

func (a *adapter) Run(ctx context.Context, args backend.RunArgs) (int, error) {
	argv := []string{
		"claude",
		"--print",
		"--output-format", "stream-json",
		"--model", args.Model,
		"--add-dir", args.Cwd,
	}
	return backend.RunStreamed(ctx, argv, args.Prompt, args)
}
