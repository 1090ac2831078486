package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates the observable error categories from spec §7.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindAmbiguousPrefix   Kind = "ambiguous_prefix"
	KindInvalidArgument   Kind = "invalid_argument"
	KindIOError           Kind = "io_error"
	KindBackendSpawnError Kind = "backend_spawn_error"
	KindBackendRunError   Kind = "backend_run_error"
	KindMalformedEvent    Kind = "malformed_event"
)

// Error is the single error type used across the engine's public APIs.
// Callers distinguish kinds with errors.Is against the sentinels below,
// or by inspecting Kind directly.
type Error struct {
	Kind       Kind
	Input      string   // offending id/argument, when applicable
	Candidates []string // for KindAmbiguousPrefix
	Err        error    // wrapped underlying error, when applicable
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("not found: %s", e.Input)
	case KindAmbiguousPrefix:
		return fmt.Sprintf("ambiguous prefix %q: candidates %s", e.Input, strings.Join(e.Candidates, ", "))
	case KindInvalidArgument:
		return fmt.Sprintf("invalid argument: %s", e.Input)
	case KindIOError:
		return fmt.Sprintf("io error: %v", e.Err)
	case KindBackendSpawnError:
		return fmt.Sprintf("backend spawn error: %v", e.Err)
	case KindBackendRunError:
		return fmt.Sprintf("backend run error: %v", e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Input)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, model.ErrNotFound) style checks against the
// sentinel values below, matching by Kind rather than identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is comparisons. Only Kind is significant.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAmbiguousPrefix   = &Error{Kind: KindAmbiguousPrefix}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrIOError           = &Error{Kind: KindIOError}
	ErrBackendSpawnError = &Error{Kind: KindBackendSpawnError}
	ErrBackendRunError   = &Error{Kind: KindBackendRunError}
)

// NotFound builds a not_found error carrying the offending input.
func NotFound(input string) error {
	return &Error{Kind: KindNotFound, Input: input}
}

// AmbiguousPrefix builds an ambiguous_prefix error carrying candidates.
func AmbiguousPrefix(input string, candidates []string) error {
	return &Error{Kind: KindAmbiguousPrefix, Input: input, Candidates: candidates}
}

// InvalidArgument builds an invalid_argument error with a message.
func InvalidArgument(msg string) error {
	return &Error{Kind: KindInvalidArgument, Input: msg}
}

// IOError wraps an underlying I/O failure.
func IOError(err error) error {
	return &Error{Kind: KindIOError, Err: err}
}

// BackendSpawnError wraps a failure to start a backend CLI process.
func BackendSpawnError(err error) error {
	return &Error{Kind: KindBackendSpawnError, Err: err}
}

// BackendRunError wraps a failure of a backend CLI process once started
// (a wait/IO error, not a nonzero exit code, which is reported as a
// plain exit code rather than an error).
func BackendRunError(err error) error {
	return &Error{Kind: KindBackendRunError, Err: err}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
