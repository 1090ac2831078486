// Package gemini adapts the gemini CLI to the backend.Backend
// interface. Invocation and the event shape consumed downstream by
// internal/formatter/gemini are grounded on spec §4.4.1's Gemini
// subsection: whole (non-delta) tool_use/tool_result/message/result/
// error events, result.status copied verbatim.
package gemini

import (
	"context"

	"github.com/untoldecay/inshallah/internal/backend"
)

func init() {
	backend.Register("gemini", New)
}

type adapter struct{}

// New returns a Backend that drives the gemini CLI in non-interactive,
// JSON-output mode.
func New() backend.Backend { return &adapter{} }

func (a *adapter) Run(ctx context.Context, args backend.RunArgs) (int, error) {
	argv := []string{
		"gemini",
		"--output-format", "stream-json",
		"--model", args.Model,
	}
	return backend.RunStreamed(ctx, argv, args.Prompt, args)
}
