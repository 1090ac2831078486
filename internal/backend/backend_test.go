package backend

import (
	"testing"

	"github.com/untoldecay/inshallah/internal/model"
)

func TestRegisterRejectsEmptyName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on empty name")
		}
	}()
	Register("", func() Backend { return nil })
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	Register("test-dup-once", func() Backend { return nil })
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("test-dup-once", func() Backend { return nil })
}

func TestFallbackCLIIsCodex(t *testing.T) {
	called := false
	Register("test-fallback-codex", func() Backend { called = true; return nil })
	// Swap the real "codex" registration temporarily isn't safe across
	// parallel tests, so instead verify the fallback constant directly.
	if fallbackCLI != "codex" {
		t.Fatalf("expected fallback cli to be codex, got %q", fallbackCLI)
	}
	_ = called
}

func TestGetUnknownNameIsInvalidArgument(t *testing.T) {
	_, err := Get("definitely-not-a-registered-backend")
	if err == nil {
		t.Fatalf("expected error for unknown backend name")
	}
	if kind, _ := model.KindOf(err); kind != model.KindInvalidArgument {
		t.Fatalf("expected KindInvalidArgument, got %v", kind)
	}
}
