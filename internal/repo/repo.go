// Package repo locates the repository root and the fixed `.inshallah/`
// state directory layout beneath it, per spec.md §6.
package repo

import (
	"os"
	"path/filepath"
)

// StateDirName is the fixed state directory name under the repo root.
const StateDirName = ".inshallah"

// FindRoot walks up from start until a directory containing `.git` is
// found, falling back to start itself, per spec.md §6.
func FindRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// Layout resolves the fixed paths inside a repo's `.inshallah/` state
// directory.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root's `.inshallah/` directory.
func New(root string) Layout {
	return Layout{Root: filepath.Join(root, StateDirName)}
}

// IssuesPath is the path to issues.jsonl.
func (l Layout) IssuesPath() string { return filepath.Join(l.Root, "issues.jsonl") }

// ForumPath is the path to forum.jsonl.
func (l Layout) ForumPath() string { return filepath.Join(l.Root, "forum.jsonl") }

// EventsPath is the path to events.jsonl.
func (l Layout) EventsPath() string { return filepath.Join(l.Root, "events.jsonl") }

// OrchestratorPath is the path to orchestrator.md.
func (l Layout) OrchestratorPath() string { return filepath.Join(l.Root, "orchestrator.md") }

// RolesDir is the directory containing role definition files.
func (l Layout) RolesDir() string { return filepath.Join(l.Root, "roles") }

// RolePath is the path to a named role's definition file.
func (l Layout) RolePath(name string) string {
	return filepath.Join(l.RolesDir(), name+".md")
}

// LogsDir is the directory containing per-issue backend tee logs.
func (l Layout) LogsDir() string { return filepath.Join(l.Root, "logs") }

// LogPath is the tee-log path for a single (non-review) backend
// invocation of issue id.
func (l Layout) LogPath(issueID string) string {
	return filepath.Join(l.LogsDir(), issueID+".jsonl")
}

// ReviewLogPath is the tee-log path for a reviewer pass over issue id.
func (l Layout) ReviewLogPath(issueID string) string {
	return filepath.Join(l.LogsDir(), issueID+".review.jsonl")
}

// Ensure creates the state directory and its logs/roles subdirectories
// if they do not already exist.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.LogsDir(), l.RolesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
