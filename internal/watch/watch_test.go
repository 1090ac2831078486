package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnWriteAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	w.Start(ctx, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("{}\n{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onChange to fire after write")
	}
}

func TestWatcherFiresOnFileCreatedAfterStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	w, err := New(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	w.Start(ctx, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onChange to fire after file creation")
	}
}

func TestDebouncerCoalescesRapidTriggers(t *testing.T) {
	var calls int
	done := make(chan struct{})
	d := newDebouncer(10*time.Millisecond, func() {
		calls++
		close(done)
	})
	defer d.cancel()

	d.trigger()
	d.trigger()
	d.trigger()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}
