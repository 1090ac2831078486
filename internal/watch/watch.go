// Package watch supplements the plain one-shot run/resume commands with
// an fsnotify-driven resume mode (SPEC_FULL §12): instead of busy-polling
// issues.jsonl, the CLI wrapper blocks until the file actually changes —
// a human edit, another process's `issues add`, a sibling runner closing
// an issue — and re-drives a validate+ready pass only then. This is an
// ambient efficiency feature: it never changes IssueStore/DagRunner
// semantics, only how often the CLI re-invokes them.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors issues.jsonl for external writes, debouncing bursts of
// events (e.g. a writer's truncate-then-append) into a single callback.
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	parentDir string
	debounce  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher for path, which need not exist yet — the parent
// directory is watched so a later create is still caught.
func New(path string, debounce time.Duration) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:   watcher,
		path:      path,
		parentDir: filepath.Dir(path),
		debounce:  debounce,
	}

	if err := watcher.Add(w.parentDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	if err := watcher.Add(path); err != nil && !os.IsNotExist(err) {
		_ = watcher.Close()
		return nil, err
	}

	return w, nil
}

// Start runs in the background until ctx is canceled or Close is called,
// invoking onChange (debounced) each time path is created, written, or
// replaced. Call once per Watcher.
func (w *Watcher) Start(ctx context.Context, onChange func()) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	base := filepath.Base(w.path)
	debouncer := newDebouncer(w.debounce, onChange)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer debouncer.cancel()
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Name == filepath.Join(w.parentDir, base) && event.Op&fsnotify.Create != 0 {
					_ = w.watcher.Add(w.path)
					debouncer.trigger()
					continue
				}
				if event.Name == w.path && event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) != 0 {
					debouncer.trigger()
				}
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the background goroutine and releases the fsnotify handle.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.watcher.Close()
}

// debouncer coalesces repeated triggers within window into one callback
// call, fired window after the last trigger.
type debouncer struct {
	window time.Duration
	fn     func()

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(window time.Duration, fn func()) *debouncer {
	return &debouncer{window: window, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fn)
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
