package dagrunner

import (
	"testing"
	"time"
)

func TestParseDeferUntilResolvesRelativeExpression(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	got, err := ParseDeferUntil("in 3 hours", now)
	if err != nil {
		t.Fatalf("ParseDeferUntil: %v", err)
	}
	want := now.Add(3 * time.Hour).Unix()
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestParseDeferUntilErrorsOnUnrecognizedText(t *testing.T) {
	_, err := ParseDeferUntil("flibbertigibbet", time.Now())
	if err == nil {
		t.Fatal("expected error for unparseable text")
	}
}
