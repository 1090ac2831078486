// Package backend defines the polymorphic adapter over the five
// external coding-agent CLIs (spec §4.4), and a small registry mapping
// a backend name to its constructor. Each concrete adapter lives in its
// own subpackage and is grounded on that vendor's CLI invocation and
// JSON streaming shape, as surveyed from other_examples/.
//
// The subprocess lifecycle (context-scoped timeout, process-group kill
// on cancellation) is grounded on internal/hooks's runHook: Start, then
// race a Wait() channel against ctx.Done(), killing the whole process
// group on the unix path so a CLI's own spawned children don't outlive
// cancellation.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/untoldecay/inshallah/internal/model"
)

// RunArgs are the parameters of a single backend invocation.
type RunArgs struct {
	Prompt    string
	Model     string
	Reasoning string
	Cwd       string
	OnLine    func(line string) // called once per line of stdout, in order
	TeePath   string             // if non-empty, every line is also appended here
}

// Backend runs one coding-agent CLI invocation to completion, streaming
// its stdout line-by-line to OnLine and simultaneously teeing it to
// TeePath, returning the process exit code.
type Backend interface {
	Run(ctx context.Context, args RunArgs) (exitCode int, err error)
}

// Factory constructs a Backend instance, e.g. to bind the resolved CLI
// binary path or other per-run configuration.
type Factory func() Backend

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a named backend factory. Panics on empty name or a
// duplicate registration, since both indicate a programming error in
// an init() call rather than a runtime condition.
func Register(name string, factory Factory) {
	if name == "" {
		panic("backend: Register called with empty name")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("backend: duplicate registration for %q", name))
	}
	registry[name] = factory
}

// fallbackCLI is the backend used when resolution yields no explicit
// choice, matching dag.py's _FALLBACK_CLI.
const fallbackCLI = "codex"

// Get returns a new Backend instance for name, falling back to codex
// when name is empty.
func Get(name string) (Backend, error) {
	if name == "" {
		name = fallbackCLI
	}
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, model.InvalidArgument(fmt.Sprintf("unknown backend %q", name))
	}
	return factory(), nil
}

// Names returns the currently registered backend names, for CLI help
// text and validation.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
