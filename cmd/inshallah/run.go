package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/inshallah/internal/dagrunner"
	"github.com/untoldecay/inshallah/internal/eventlog"
	"github.com/untoldecay/inshallah/internal/issuestore"
	"github.com/untoldecay/inshallah/internal/model"
	"github.com/untoldecay/inshallah/internal/watch"
)

var (
	flagMaxSteps int
	flagReview   bool
	flagWatch    bool
)

var runCmd = &cobra.Command{
	Use:   "run <prompt...>",
	Short: "Create a root issue from a prompt and drive it to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		promptText := strings.TrimSpace(strings.Join(args, " "))
		if promptText == "" {
			return printError("missing prompt")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := eventlog.WithRunID(cmd.Context(), eventlog.NewRunID())

		root, err := a.Issues.Create(ctx, promptText, issuestore.CreateParams{
			Tags: []string{"node:agent", "node:root"},
		})
		if err != nil {
			return err
		}
		a.Sink.Panel("Root Issue", promptText, "cyan")

		result := runDag(ctx, a, root.ID)
		return reportDagResult(a, root.ID, result)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <root-id-or-prefix>",
	Short: "Resume an interrupted DAG run, resetting stale in_progress issues first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := eventlog.WithRunID(cmd.Context(), eventlog.NewRunID())

		rootID, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("issue not found: %s", args[0]))
		}

		reset, err := a.Issues.ResetInProgress(ctx, rootID)
		if err != nil {
			return err
		}
		if len(reset) > 0 {
			a.Sink.Line(fmt.Sprintf("Reset %d stale issue(s) to open: %s", len(reset), strings.Join(reset, ", ")), "yellow")
		}
		a.Sink.Panel("Resuming", rootID, "cyan")

		if flagWatch {
			return watchUntilFinal(ctx, a, rootID)
		}

		result := runDag(ctx, a, rootID)
		return reportDagResult(a, rootID, result)
	},
}

// watchUntilFinal re-drives the dag after each observed issues.jsonl
// change instead of busy-polling, stopping once the root reaches a final
// state or the runner reports an error.
func watchUntilFinal(ctx context.Context, a *app, rootID string) error {
	w, err := watch.New(a.Layout.IssuesPath(), 250*time.Millisecond)
	if err != nil {
		return err
	}
	defer w.Close()

	result := runDag(ctx, a, rootID)
	if result.Status == model.DagRootFinal || result.Status == model.DagError {
		return reportDagResult(a, rootID, result)
	}

	changed := make(chan struct{}, 1)
	w.Start(ctx, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			result = runDag(ctx, a, rootID)
			if result.Status == model.DagRootFinal || result.Status == model.DagError {
				return reportDagResult(a, rootID, result)
			}
			a.Sink.Line(fmt.Sprintf("Still waiting on ready work (status: %s); watching for changes...", result.Status), "yellow")
		}
	}
}

func init() {
	for _, c := range []*cobra.Command{runCmd, resumeCmd} {
		c.Flags().IntVar(&flagMaxSteps, "max-steps", 20, "maximum number of leaf steps before giving up")
		c.Flags().BoolVar(&flagReview, "review", true, "run the reviewer pass after a successful leaf, when roles/reviewer.md exists")
	}
	resumeCmd.Flags().BoolVar(&flagWatch, "watch", false, "block on issues.jsonl changes instead of exiting when no leaf is ready")
	rootCmd.AddCommand(runCmd, resumeCmd)
}

func runDag(ctx context.Context, a *app, rootID string) model.DagResult {
	runner := dagrunner.New(a.Issues, a.Forum, a.Layout, a.Sink)
	return runner.Run(ctx, rootID, dagrunner.Options{MaxSteps: flagMaxSteps, ReviewEnabled: flagReview})
}

func reportDagResult(a *app, rootID string, result model.DagResult) error {
	if flagJSON {
		_ = printJSON(os.Stdout, map[string]any{
			"status":  result.Status,
			"steps":   result.Steps,
			"error":   result.Error,
			"root_id": rootID,
		})
	} else if result.Error != "" {
		a.Sink.Error(fmt.Sprintf("Runner error: %s", result.Error))
	}
	if result.Error != "" {
		a.Logger.Error("dag run finished with error", "root_id", rootID, "status", result.Status, "steps", result.Steps, "error", result.Error)
	} else {
		a.Logger.Info("dag run finished", "root_id", rootID, "status", result.Status, "steps", result.Steps)
	}
	if result.Status != model.DagRootFinal {
		return fmt.Errorf("dag did not reach a final state: %s", result.Status)
	}
	return nil
}
