// Package pi adapts the pi CLI to the backend.Backend interface.
// Invocation and the event shape consumed downstream by
// internal/formatter/pi are grounded on spec §4.4.1's Pi subsection:
// tool_execution_start/tool_execution_end(isError)/message_update
// (text_delta or error)/message_end(stopReason)/error events.
package pi

import (
	"context"

	"github.com/untoldecay/inshallah/internal/backend"
)

func init() {
	backend.Register("pi", New)
}

type adapter struct{}

// New returns a Backend that drives the pi CLI in non-interactive,
// JSON-streaming mode.
func New() backend.Backend { return &adapter{} }

func (a *adapter) Run(ctx context.Context, args backend.RunArgs) (int, error) {
	argv := []string{
		"pi", "run",
		"--json",
		"--model", args.Model,
	}
	return backend.RunStreamed(ctx, argv, args.Prompt, args)
}
