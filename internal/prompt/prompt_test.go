package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/untoldecay/inshallah/internal/model"
)

func TestReadMetaParsesFrontmatterKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.md")
	if err := os.WriteFile(path, []byte("---\ncli: claude\nmodel: opus\n---\nbody text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	meta, err := ReadMeta(path)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.CLI != "claude" || meta.Model != "opus" || meta.Reasoning != "" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestReadMetaReturnsZeroValueWhenFileMissing(t *testing.T) {
	meta, err := ReadMeta(filepath.Join(t.TempDir(), "missing.md"))
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.CLI != "" || meta.Model != "" || meta.Reasoning != "" {
		t.Fatalf("expected zero-value meta, got %+v", meta)
	}
}

func TestRenderSubstitutesPromptPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.md")
	if err := os.WriteFile(path, []byte("---\ncli: codex\n---\nYou are the worker.\n\n{{PROMPT}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	issue := model.Issue{ID: "inshallah-abc", Title: "do the thing", Body: "some detail"}
	rendered, err := Render(path, issue, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "You are the worker.\n\ndo the thing\n\nsome detail\n"
	if rendered != want {
		t.Fatalf("rendered = %q, want %q", rendered, want)
	}
}

func TestRenderFallsBackToTitleAndBodyWhenTemplateMissing(t *testing.T) {
	issue := model.Issue{ID: "inshallah-abc", Title: "title only"}
	rendered, err := Render(filepath.Join(t.TempDir(), "missing.md"), issue, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered != "title only" {
		t.Fatalf("rendered = %q", rendered)
	}

	issue.Body = "and a body"
	rendered, err = Render("", issue, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered != "title only\n\nand a body" {
		t.Fatalf("rendered = %q", rendered)
	}
}

func TestRenderBuildsSortedRolesCatalog(t *testing.T) {
	dir := t.TempDir()
	rolesDir := filepath.Join(dir, ".inshallah", "roles")
	if err := os.MkdirAll(rolesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rolesDir, "worker.md"), []byte("---\ncli: codex\nmodel: A\nreasoning: high\n---\nFirst line of worker.\nMore text.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rolesDir, "reviewer.md"), []byte("Just body, no frontmatter.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	templatePath := filepath.Join(dir, "orchestrator.md")
	if err := os.WriteFile(templatePath, []byte("{{ROLES}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	rendered, err := Render(templatePath, model.Issue{Title: "x"}, dir)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "### reviewer\n" +
		"default config\n" +
		"> Just body, no frontmatter.\n\n" +
		"### worker\n" +
		"cli=codex model=A reasoning=high\n" +
		"> First line of worker."
	if rendered != want {
		t.Fatalf("rendered = %q, want %q", rendered, want)
	}
}

func TestRenderRolesPlaceholderEmptyWhenRepoRootUnknown(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "orchestrator.md")
	if err := os.WriteFile(templatePath, []byte("before {{ROLES}} after"), 0o644); err != nil {
		t.Fatal(err)
	}
	rendered, err := Render(templatePath, model.Issue{Title: "x"}, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered != "before  after" {
		t.Fatalf("rendered = %q", rendered)
	}
}
