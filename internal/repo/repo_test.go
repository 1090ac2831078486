package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRootStopsAtDotGit(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := FindRoot(nested); got != root {
		t.Fatalf("FindRoot = %q, want %q", got, root)
	}
}

func TestFindRootFallsBackToStartWhenNoGitFound(t *testing.T) {
	start := t.TempDir()
	if got := FindRoot(start); got != start {
		t.Fatalf("FindRoot = %q, want %q", got, start)
	}
}

func TestLayoutPathsAreUnderStateDir(t *testing.T) {
	l := New("/repo")
	if l.IssuesPath() != "/repo/.inshallah/issues.jsonl" {
		t.Fatalf("IssuesPath = %q", l.IssuesPath())
	}
	if l.LogPath("abc") != "/repo/.inshallah/logs/abc.jsonl" {
		t.Fatalf("LogPath = %q", l.LogPath("abc"))
	}
	if l.ReviewLogPath("abc") != "/repo/.inshallah/logs/abc.review.jsonl" {
		t.Fatalf("ReviewLogPath = %q", l.ReviewLogPath("abc"))
	}
	if l.RolePath("reviewer") != "/repo/.inshallah/roles/reviewer.md" {
		t.Fatalf("RolePath = %q", l.RolePath("reviewer"))
	}
}

func TestEnsureCreatesStateDirectories(t *testing.T) {
	root := t.TempDir()
	l := New(root)
	if err := l.Ensure(); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{l.Root, l.LogsDir(), l.RolesDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}
