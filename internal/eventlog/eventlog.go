// Package eventlog implements the append-only, versioned JSONL audit
// stream described in spec §4.1. It is grounded structurally on
// BeadsLog's internal/audit.Append (path resolve → ensure file →
// open-append → buffered encode → flush) and semantically on the
// reference implementation's events.py: one compact, ASCII-safe JSON
// line per event, written under an advisory exclusive lock with a
// retry-on-short-write loop.
package eventlog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/untoldecay/inshallah/internal/jsonlfile"
	"github.com/untoldecay/inshallah/internal/model"
)

// contextKey is unexported so only this package can mint run-id context
// values, matching the Python original's ContextVar-scoped run context.
type contextKey struct{}

// WithRunID returns a context carrying run id for descendant Emit calls
// that don't pass an explicit RunID. Nested calls naturally shadow the
// parent's value without mutating it, reproducing the push/pop behavior
// of the Python run_context() contextmanager.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKey{}, runID)
}

// RunIDFromContext returns the run id stashed by WithRunID, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(contextKey{}).(string)
	return v, ok
}

// NewRunID generates a fresh correlation id, matching the Python
// original's new_run_id() (uuid4().hex — no dashes).
func NewRunID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// EventLog is an append-only JSONL event stream at a fixed path.
type EventLog struct {
	path string
}

// New returns an EventLog writing to path (typically
// <repo>/.inshallah/events.jsonl).
func New(path string) *EventLog {
	return &EventLog{path: path}
}

// EmitArgs are the optional fields of an Emit call. RunID, if empty,
// falls back to the context's run id (see WithRunID); IssueID is
// included in the record only when non-empty; a zero TsMs is replaced
// by the current time.
type EmitArgs struct {
	Source  string
	Payload map[string]any
	IssueID string
	RunID   string
	TsMs    int64
}

// Emit appends one event record and returns it. Payload must be a
// mapping (a nil map is treated as empty, matching the Python default).
func (l *EventLog) Emit(ctx context.Context, eventType string, args EmitArgs) (model.Event, error) {
	payload := args.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	runID := args.RunID
	if runID == "" {
		if ctxRunID, ok := RunIDFromContext(ctx); ok {
			runID = ctxRunID
		}
	}

	ts := args.TsMs
	if ts == 0 {
		ts = jsonlfile.NowTSMillis()
	}

	ev := model.Event{
		V:       model.EventVersion,
		TsMs:    ts,
		Type:    eventType,
		Source:  args.Source,
		RunID:   runID,
		IssueID: args.IssueID,
		Payload: payload,
	}

	if err := jsonlfile.AppendLine(l.path, ev); err != nil {
		return model.Event{}, model.IOError(err)
	}
	return ev, nil
}
