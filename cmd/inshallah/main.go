// Command inshallah drives a recursively-decomposed tree of issues
// through external coding-agent CLIs, per spec.md's orchestration
// engine. See cli.py for the command surface this mirrors.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/untoldecay/inshallah/internal/backend/claude"
	_ "github.com/untoldecay/inshallah/internal/backend/codex"
	_ "github.com/untoldecay/inshallah/internal/backend/gemini"
	_ "github.com/untoldecay/inshallah/internal/backend/opencode"
	_ "github.com/untoldecay/inshallah/internal/backend/pi"
)

func main() {
	// SIGINT/SIGTERM cancel the command context, which kills the running
	// backend's process group; the claimed issue is left in_progress.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
