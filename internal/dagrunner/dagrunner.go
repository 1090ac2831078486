// Package dagrunner implements the select→claim→execute→postcondition→
// review state machine of spec §4.5, grounded on dag.py's DagRunner
// read in full from original_source/. ExecutionSpec resolution and
// prompt rendering (Python's spec.py/prompt.py, referenced by dag.py but
// not present in the retrieval pack) are designed directly from
// spec.md §4.5.1/§4.5.2's text; the loop, reviewer pass and failure
// model below follow dag.py's run()/_maybe_review() precisely.
package dagrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/untoldecay/inshallah/internal/backend"
	"github.com/untoldecay/inshallah/internal/forumstore"
	"github.com/untoldecay/inshallah/internal/formatter"
	"github.com/untoldecay/inshallah/internal/issuestore"
	"github.com/untoldecay/inshallah/internal/model"
	"github.com/untoldecay/inshallah/internal/prompt"
	"github.com/untoldecay/inshallah/internal/repo"
	"github.com/untoldecay/inshallah/internal/sink"
)

// Fallback constants baked into the runner, the lowest-priority tier of
// config resolution (§4.5.1 tier 1).
const (
	fallbackCLI       = "codex"
	fallbackModel     = "gpt-5.3-codex"
	fallbackReasoning = "xhigh"
)

// defaultMaxSteps is used when Options.MaxSteps is zero.
const defaultMaxSteps = 200

// reviewerRole is the fixed role name a synthetic review issue is
// routed through.
const reviewerRole = "reviewer"

// Runner drives a single root issue's subtree to completion, one ready
// leaf at a time.
type Runner struct {
	Store  *issuestore.Store
	Forum  *forumstore.Store
	Layout repo.Layout
	Sink   sink.Sink
}

// New returns a Runner over the given stores, state layout and output sink.
func New(store *issuestore.Store, forum *forumstore.Store, layout repo.Layout, s sink.Sink) *Runner {
	return &Runner{Store: store, Forum: forum, Layout: layout, Sink: s}
}

// Options configures a single Run invocation.
type Options struct {
	MaxSteps      int
	ReviewEnabled bool
}

// resolvedConfig is the output of the four-tier config resolution.
type resolvedConfig struct {
	CLI        string
	Model      string
	Reasoning  string
	PromptPath string
}

// repoRoot recovers the repo root from the .inshallah state layout, used
// to resolve relative execution_spec.prompt_path values (§4.5.1 tier 4)
// and the roles catalog (§4.5.2).
func (r *Runner) repoRoot() string {
	return filepath.Dir(r.Layout.Root)
}

func applyMeta(cfg *resolvedConfig, meta prompt.Meta) {
	if meta.CLI != "" {
		cfg.CLI = meta.CLI
	}
	if meta.Model != "" {
		cfg.Model = meta.Model
	}
	if meta.Reasoning != "" {
		cfg.Reasoning = meta.Reasoning
	}
}

// resolveConfig layers the four tiers of §4.5.1 for issue.
func (r *Runner) resolveConfig(issue model.Issue) resolvedConfig {
	cfg := resolvedConfig{CLI: fallbackCLI, Model: fallbackModel, Reasoning: fallbackReasoning}

	// Tier 2: orchestrator.md frontmatter (global defaults).
	orchestratorPath := r.Layout.OrchestratorPath()
	if _, err := os.Stat(orchestratorPath); err == nil {
		meta, _ := prompt.ReadMeta(orchestratorPath)
		applyMeta(&cfg, meta)
		cfg.PromptPath = orchestratorPath
	}

	spec := issue.ExecutionSpec

	// Tier 3: role file frontmatter, plus the prompt_path auto-resolution
	// rule ("spec sets role but leaves prompt_path unset").
	if spec != nil && spec.Role != nil && *spec.Role != "" {
		rolePath := r.Layout.RolePath(*spec.Role)
		if _, err := os.Stat(rolePath); err == nil {
			meta, _ := prompt.ReadMeta(rolePath)
			applyMeta(&cfg, meta)
			if spec.PromptPath == nil || *spec.PromptPath == "" {
				cfg.PromptPath = rolePath
			}
		}
	}

	// Tier 4: explicit execution_spec fields, highest priority.
	if spec != nil {
		if spec.CLI != nil && *spec.CLI != "" {
			cfg.CLI = *spec.CLI
		}
		if spec.Model != nil && *spec.Model != "" {
			cfg.Model = *spec.Model
		}
		if spec.Reasoning != nil && *spec.Reasoning != "" {
			cfg.Reasoning = *spec.Reasoning
		}
		if spec.PromptPath != nil && *spec.PromptPath != "" {
			p := *spec.PromptPath
			if !filepath.IsAbs(p) {
				p = filepath.Join(r.repoRoot(), p)
			}
			cfg.PromptPath = p
		}
	}

	return cfg
}

// renderPrompt renders the resolved template against issue and appends
// the fixed "## Inshallah Context" trailer (§4.5.2).
func (r *Runner) renderPrompt(issue model.Issue, promptPath, rootID string) (string, error) {
	rendered, err := prompt.Render(promptPath, issue, r.repoRoot())
	if err != nil {
		return "", err
	}
	rendered += fmt.Sprintf("\n\n## Inshallah Context\nRoot: %s\nAssigned issue: %s\n", rootID, issue.ID)
	return rendered, nil
}

// execResult is the outcome of a single backend invocation.
type execResult struct {
	ExitCode int
	Elapsed  time.Duration
}

// executeBackend renders the prompt, resolves a backend+formatter pair
// for cfg.CLI, and runs the backend to completion, teeing its stdout to
// teePath.
func (r *Runner) executeBackend(ctx context.Context, issue model.Issue, cfg resolvedConfig, rootID, teePath string) (execResult, error) {
	rendered, err := r.renderPrompt(issue, cfg.PromptPath, rootID)
	if err != nil {
		return execResult{}, err
	}

	be, err := backend.Get(cfg.CLI)
	if err != nil {
		return execResult{}, err
	}
	fmtr := formatter.Get(cfg.CLI, r.Sink)

	if err := r.Layout.Ensure(); err != nil {
		return execResult{}, err
	}

	r.Sink.Line(fmt.Sprintf("%s %s reasoning=%s", cfg.CLI, cfg.Model, cfg.Reasoning), "dim")

	start := time.Now()
	exitCode, runErr := be.Run(ctx, backend.RunArgs{
		Prompt:    rendered,
		Model:     cfg.Model,
		Reasoning: cfg.Reasoning,
		Cwd:       r.repoRoot(),
		OnLine:    fmtr.ProcessLine,
		TeePath:   teePath,
	})
	fmtr.Finish()
	elapsed := time.Since(start)
	if runErr != nil {
		return execResult{ExitCode: exitCode, Elapsed: elapsed}, runErr
	}

	r.Sink.Line(fmt.Sprintf("exit=%d %.1fs", exitCode, elapsed.Seconds()), "dim")
	return execResult{ExitCode: exitCode, Elapsed: elapsed}, nil
}

func (r *Runner) hasReviewer() bool {
	_, err := os.Stat(r.Layout.RolePath(reviewerRole))
	return err == nil
}

// maybeReview runs the reviewer backend over issue when it closed with
// outcome success and a reviewer role file exists (§4.5.4), posting a
// forum entry authored "reviewer". It returns the (possibly reviewer-
// mutated) issue, re-read from the store; if the issue has since
// vanished it falls back to the issue passed in, matching dag.py's
// `self.store.get(issue_id) or issue`.
func (r *Runner) maybeReview(ctx context.Context, issue model.Issue, rootID string, step int) (model.Issue, error) {
	if issue.Outcome != model.OutcomeSuccess {
		return issue, nil
	}
	if !r.hasReviewer() {
		return issue, nil
	}

	role := reviewerRole
	reviewIssue := issue
	reviewIssue.ExecutionSpec = &model.ExecutionSpec{Role: &role}

	cfg := r.resolveConfig(reviewIssue)
	result, err := r.executeBackend(ctx, reviewIssue, cfg, rootID, r.Layout.ReviewLogPath(issue.ID))
	if err != nil {
		return issue, err
	}

	body, _ := json.Marshal(map[string]any{
		"step":      step,
		"issue_id":  issue.ID,
		"title":     issue.Title,
		"exit_code": result.ExitCode,
		"elapsed_s": round1(result.Elapsed.Seconds()),
		"type":      "review",
	})
	if _, err := r.Forum.Post(ctx, "issue:"+issue.ID, string(body), "reviewer"); err != nil {
		return issue, err
	}

	updated, err := r.Store.Get(ctx, issue.ID)
	if err != nil {
		return issue, nil
	}
	return updated, nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// Run drives the issue subtree rooted at rootID to completion, one
// ready leaf per step, per the loop state machine of §4.5.3.
func (r *Runner) Run(ctx context.Context, rootID string, opts Options) model.DagResult {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	for step := 0; step < maxSteps; step++ {
		v, err := r.Store.Validate(ctx, rootID)
		if err != nil {
			return model.DagResult{Status: model.DagError, Steps: step, Error: err.Error()}
		}
		if v.IsFinal {
			r.Sink.Line(fmt.Sprintf("DAG complete: %s (%d steps)", v.Reason, step), "green")
			return model.DagResult{Status: model.DagRootFinal, Steps: step}
		}

		candidates, err := r.Store.Ready(ctx, issuestore.ReadyFilter{RootID: rootID, Tags: []string{"node:agent"}})
		if err != nil {
			return model.DagResult{Status: model.DagError, Steps: step, Error: err.Error()}
		}
		if len(candidates) == 0 {
			r.Sink.Line("No executable leaf found.", "yellow")
			return model.DagResult{Status: model.DagNoExecutableLeaf, Steps: step}
		}

		issue := candidates[0]
		r.Sink.Line(fmt.Sprintf("Step %d: %s %s", step+1, issue.ID, issue.Title), "cyan")

		if _, err := r.Store.Claim(ctx, issue.ID); err != nil {
			return model.DagResult{Status: model.DagError, Steps: step + 1, Error: err.Error()}
		}

		cfg := r.resolveConfig(issue)
		result, execErr := r.executeBackend(ctx, issue, cfg, rootID, r.Layout.LogPath(issue.ID))
		if execErr != nil {
			return model.DagResult{Status: model.DagError, Steps: step + 1, Error: execErr.Error()}
		}

		updated, err := r.Store.Get(ctx, issue.ID)
		if err != nil {
			return model.DagResult{Status: model.DagError, Steps: step + 1, Error: "issue vanished"}
		}

		if updated.Status != model.StatusClosed {
			r.Sink.Line(fmt.Sprintf("Issue not closed after execution (status=%s)", updated.Status), "yellow")
			if result.ExitCode != 0 {
				updated, err = r.Store.Close(ctx, issue.ID, model.OutcomeFailure)
				if err != nil {
					return model.DagResult{Status: model.DagError, Steps: step + 1, Error: err.Error()}
				}
				r.Sink.Line("Marked as failure", "red")
			}
		}

		if opts.ReviewEnabled && updated.Status == model.StatusClosed {
			reviewed, reviewErr := r.maybeReview(ctx, updated, rootID, step+1)
			if reviewErr != nil {
				return model.DagResult{Status: model.DagError, Steps: step + 1, Error: reviewErr.Error()}
			}
			updated = reviewed
		}

		body, _ := json.Marshal(map[string]any{
			"step":      step + 1,
			"issue_id":  issue.ID,
			"title":     issue.Title,
			"exit_code": result.ExitCode,
			"outcome":   string(updated.Outcome),
			"elapsed_s": round1(result.Elapsed.Seconds()),
		})
		if _, err := r.Forum.Post(ctx, "issue:"+issue.ID, string(body), "orchestrator"); err != nil {
			return model.DagResult{Status: model.DagError, Steps: step + 1, Error: err.Error()}
		}
	}

	r.Sink.Line(fmt.Sprintf("Max steps exhausted (%d)", maxSteps), "yellow")
	return model.DagResult{Status: model.DagMaxStepsExhausted, Steps: maxSteps}
}
