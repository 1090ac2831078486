package dagrunner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/untoldecay/inshallah/internal/backend"
	"github.com/untoldecay/inshallah/internal/eventlog"
	"github.com/untoldecay/inshallah/internal/forumstore"
	"github.com/untoldecay/inshallah/internal/issuestore"
	"github.com/untoldecay/inshallah/internal/model"
	"github.com/untoldecay/inshallah/internal/repo"
	"github.com/untoldecay/inshallah/internal/sink/plain"
)

// fakeBackend is a registered test double standing in for a real
// vendor CLI, returning a fixed exit code without spawning anything.
type fakeBackend struct{ exitCode int }

func (f *fakeBackend) Run(ctx context.Context, args backend.RunArgs) (int, error) {
	if args.OnLine != nil {
		args.OnLine(`{"type":"item.completed","item":{"type":"message","role":"assistant","text":"done"}}`)
	}
	return f.exitCode, nil
}

func registerFakeBackend(t *testing.T, name string, exitCode int) {
	t.Helper()
	backend.Register(name, func() backend.Backend { return &fakeBackend{exitCode: exitCode} })
}

func newHarness(t *testing.T) (*Runner, *issuestore.Store, context.Context) {
	t.Helper()
	root := t.TempDir()
	layout := repo.New(root)
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	events := eventlog.New(layout.EventsPath())
	store := issuestore.New(layout.IssuesPath(), events)
	forum := forumstore.New(layout.ForumPath(), events)
	r := New(store, forum, layout, plain.New(io.Discard))
	return r, store, context.Background()
}

// Scenario 8 (spec §8): a backend that exits non-zero without closing
// its assigned issue forces the issue to failure.
func TestNonzeroExitForcesFailureWhenIssueLeftOpen(t *testing.T) {
	registerFakeBackend(t, "testcli-fail8", 1)

	r, store, ctx := newHarness(t)
	role := "worker"
	cli := "testcli-fail8"
	root, err := store.Create(ctx, "root", issuestore.CreateParams{
		Tags: []string{"node:agent"},
		ExecutionSpec: &model.ExecutionSpec{
			Role: &role,
			CLI:  &cli,
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The forced-failure outcome demands re-orchestration (not final), but
	// a closed issue with no children is never itself re-selectable, so
	// the run stops one step later with no_executable_leaf.
	result := r.Run(ctx, root.ID, Options{MaxSteps: 5})
	if result.Status != model.DagNoExecutableLeaf {
		t.Fatalf("expected no_executable_leaf, got %+v", result)
	}
	if result.Steps != 1 {
		t.Fatalf("expected steps=1, got %d", result.Steps)
	}

	got, err := store.Get(ctx, root.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusClosed || got.Outcome != model.OutcomeFailure {
		t.Fatalf("expected forced failure close, got status=%s outcome=%s", got.Status, got.Outcome)
	}
}

// Scenario 9 (spec §8, spec.md line ~350): orchestrator.md sets
// {cli:claude, model:opus}; role worker.md sets {cli:codex, model:A};
// execution_spec sets {role:worker, model:B, cli:claude}. Resolved:
// cli=claude (explicit wins), model=B (explicit wins), reasoning from
// worker.md (role tier, nothing overrides it), prompt_path auto-resolved
// to worker.md (role set, prompt_path left unset in execution_spec).
func TestConfigResolutionFourTierPriority(t *testing.T) {
	r, _, _ := newHarness(t)

	orchestratorPath := r.Layout.OrchestratorPath()
	if err := os.WriteFile(orchestratorPath, []byte("---\ncli: claude\nmodel: opus\n---\nbody\n"), 0o644); err != nil {
		t.Fatalf("write orchestrator.md: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.Layout.RolePath("worker")), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.Layout.RolePath("worker"), []byte("---\ncli: codex\nmodel: A\nreasoning: medium\n---\nbody\n"), 0o644); err != nil {
		t.Fatalf("write worker.md: %v", err)
	}

	role := "worker"
	model_ := "B"
	cli := "claude"
	issue := model.Issue{
		ID:    "inshallah-test",
		Title: "t",
		ExecutionSpec: &model.ExecutionSpec{
			Role:  &role,
			Model: &model_,
			CLI:   &cli,
		},
	}

	cfg := r.resolveConfig(issue)
	if cfg.CLI != "claude" {
		t.Fatalf("expected cli=claude, got %q", cfg.CLI)
	}
	if cfg.Model != "B" {
		t.Fatalf("expected model=B, got %q", cfg.Model)
	}
	if cfg.Reasoning != "medium" {
		t.Fatalf("expected reasoning=medium (from role tier), got %q", cfg.Reasoning)
	}
	if cfg.PromptPath != r.Layout.RolePath("worker") {
		t.Fatalf("expected prompt_path auto-resolved to worker.md, got %q", cfg.PromptPath)
	}
}

func TestConfigResolutionFallsBackToConstantsWhenNothingSet(t *testing.T) {
	r, _, _ := newHarness(t)
	cfg := r.resolveConfig(model.Issue{ID: "inshallah-x", Title: "x"})
	if cfg.CLI != fallbackCLI || cfg.Model != fallbackModel || cfg.Reasoning != fallbackReasoning {
		t.Fatalf("expected baked-in fallbacks, got %+v", cfg)
	}
	if cfg.PromptPath != "" {
		t.Fatalf("expected empty prompt_path, got %q", cfg.PromptPath)
	}
}

func TestRunReturnsNoExecutableLeafWhenNoAgentTaggedIssueExists(t *testing.T) {
	r, store, ctx := newHarness(t)
	root, err := store.Create(ctx, "root", issuestore.CreateParams{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	result := r.Run(ctx, root.ID, Options{MaxSteps: 3})
	if result.Status != model.DagNoExecutableLeaf {
		t.Fatalf("expected no_executable_leaf, got %+v", result)
	}
}

// A leaf that exits zero without closing itself just goes in_progress
// and is never re-selected; with enough such siblings the loop keeps
// claiming a fresh one each step until the step cap bites.
func TestRunReturnsMaxStepsExhaustedWhenLeavesNeverClose(t *testing.T) {
	registerFakeBackend(t, "testcli-stall", 0)

	r, store, ctx := newHarness(t)
	root, err := store.Create(ctx, "root", issuestore.CreateParams{})
	if err != nil {
		t.Fatalf("Create root: %v", err)
	}
	cli := "testcli-stall"
	for i := 0; i < 3; i++ {
		child, err := store.Create(ctx, "child", issuestore.CreateParams{
			Tags:          []string{"node:agent"},
			ExecutionSpec: &model.ExecutionSpec{CLI: &cli},
		})
		if err != nil {
			t.Fatalf("Create child: %v", err)
		}
		if err := store.AddDep(ctx, child.ID, model.DepParent, root.ID); err != nil {
			t.Fatalf("AddDep: %v", err)
		}
	}

	result := r.Run(ctx, root.ID, Options{MaxSteps: 2})
	if result.Status != model.DagMaxStepsExhausted {
		t.Fatalf("expected max_steps_exhausted, got %+v", result)
	}
	if result.Steps != 2 {
		t.Fatalf("expected steps=2, got %d", result.Steps)
	}
}
