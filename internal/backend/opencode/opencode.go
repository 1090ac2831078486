// Package opencode adapts the opencode CLI to the backend.Backend
// interface. Invocation and the event shape consumed downstream by
// internal/formatter/opencode are grounded on spec §4.4.1's OpenCode
// subsection: tool_use/text/error events, nested status on tool
// state, nested data.message on error.
package opencode

import (
	"context"

	"github.com/untoldecay/inshallah/internal/backend"
)

func init() {
	backend.Register("opencode", New)
}

type adapter struct{}

// New returns a Backend that drives the opencode CLI in non-interactive,
// JSON-streaming run mode.
func New() backend.Backend { return &adapter{} }

func (a *adapter) Run(ctx context.Context, args backend.RunArgs) (int, error) {
	argv := []string{
		"opencode", "run",
		"--format", "json",
		"--model", args.Model,
	}
	if args.Reasoning != "" {
		argv = append(argv, "--variant", args.Reasoning)
	}
	return backend.RunStreamed(ctx, argv, args.Prompt, args)
}
