package applog

import (
	"bytes"
	"os"
	"testing"
)

func TestNewWithEmptyDirWritesToStderr(t *testing.T) {
	logger := New(Options{})
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
}

func TestNewWithDirCreatesRotatingFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger := New(Options{Dir: dir})
	logger.Info("hello", "k", "v")
	data, err := os.ReadFile(dir + "/inshallah.log")
	if err != nil {
		t.Fatalf("expected log file written: %v", err)
	}
	if !bytes.Contains(data, []byte("hello")) {
		t.Fatalf("expected log record in file, got: %s", data)
	}
}
