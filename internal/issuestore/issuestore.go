// Package issuestore implements the JSONL-backed issue tracker and DAG
// utilities of spec §4.2: an append-rewritten issues.jsonl file with
// dependency semantics, a readiness predicate, and a completion
// predicate that treats "expanded" nodes as transparent delegations.
//
// Every mutation reads the whole file, mutates the in-memory list, and
// rewrites it atomically under an advisory exclusive lock (see
// internal/jsonlfile). This is acceptable at corpus scale and keeps the
// store trivially crash-safe: a reader never observes a half-written
// file, and a crashed writer simply leaves the previous version intact.
package issuestore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/untoldecay/inshallah/internal/eventlog"
	"github.com/untoldecay/inshallah/internal/jsonlfile"
	"github.com/untoldecay/inshallah/internal/model"
)

// Store is a JSONL-backed issue tracker rooted at a single issues.jsonl
// file, with a sibling EventLog receiving a record for every mutation.
type Store struct {
	path   string
	events *eventlog.EventLog
	lock   *flock.Flock
}

// New returns a Store backed by path (typically
// <repo>/.inshallah/issues.jsonl), emitting events to the sibling
// events.jsonl file.
func New(path string, events *eventlog.EventLog) *Store {
	return &Store{path: path, events: events, lock: flock.New(path + ".lock")}
}

func (s *Store) load() ([]model.Issue, error) {
	rows, err := jsonlfile.ReadLines[model.Issue](s.path)
	if err != nil {
		return nil, model.IOError(err)
	}
	return rows, nil
}

func (s *Store) save(rows []model.Issue) error {
	if err := jsonlfile.WriteLinesAtomic(s.path, rows); err != nil {
		return model.IOError(err)
	}
	return nil
}

// withLock runs fn with the store's exclusive lock held for the whole
// read-modify-write cycle, matching spec §5's shared-resource policy.
func (s *Store) withLock(fn func() error) error {
	if err := s.lock.Lock(); err != nil {
		return model.IOError(err)
	}
	defer s.lock.Unlock()
	return fn()
}

func find(rows []model.Issue, id string) (int, bool) {
	for i := range rows {
		if rows[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// CreateParams are the optional fields accepted by Create.
type CreateParams struct {
	Body          string
	Tags          []string
	ExecutionSpec *model.ExecutionSpec
	Priority      int // defaults to 3 when zero
}

// Create appends a new open issue with a generated "inshallah-<8 hex>" id.
func (s *Store) Create(ctx context.Context, title string, p CreateParams) (model.Issue, error) {
	priority := p.Priority
	if priority == 0 {
		priority = 3
	}
	if priority < 1 || priority > 5 {
		return model.Issue{}, model.InvalidArgument(fmt.Sprintf("priority %d out of range [1,5]", priority))
	}

	suffix, err := jsonlfile.ShortID()
	if err != nil {
		return model.Issue{}, model.IOError(err)
	}
	now := jsonlfile.NowTS()
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	issue := model.Issue{
		ID:            "inshallah-" + suffix,
		Title:         title,
		Body:          p.Body,
		Status:        model.StatusOpen,
		Outcome:       model.OutcomeNone,
		Tags:          tags,
		Deps:          []model.Dependency{},
		ExecutionSpec: p.ExecutionSpec,
		Priority:      priority,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.withLock(func() error {
		rows, err := s.load()
		if err != nil {
			return err
		}
		rows = append(rows, issue)
		return s.save(rows)
	})
	if err != nil {
		return model.Issue{}, err
	}

	s.emit(ctx, "issue.created", issue.ID, map[string]any{"title": title})
	return issue, nil
}

// Get returns the issue with the given id, or a not_found error.
func (s *Store) Get(ctx context.Context, id string) (model.Issue, error) {
	rows, err := s.load()
	if err != nil {
		return model.Issue{}, err
	}
	if i, ok := find(rows, id); ok {
		return rows[i], nil
	}
	return model.Issue{}, model.NotFound(id)
}

// ListFilter narrows List to matching issues.
type ListFilter struct {
	Status *model.Status
	Tag    string
}

// List returns issues matching the filter, in insertion order.
func (s *Store) List(ctx context.Context, f ListFilter) ([]model.Issue, error) {
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]model.Issue, 0, len(rows))
	for _, row := range rows {
		if f.Status != nil && row.Status != *f.Status {
			continue
		}
		if f.Tag != "" && !row.HasTag(f.Tag) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// UpdateFields are the issue fields Update is permitted to mutate.
// A nil pointer leaves the field unchanged; id, created_at are immutable
// and not part of this struct at all.
type UpdateFields struct {
	Title         *string
	Body          *string
	Status        *model.Status
	Outcome       *model.Outcome
	Tags          []string
	ExecutionSpec *model.ExecutionSpec
	Priority      *int
}

// Update mutates the allowed fields of an issue and bumps updated_at.
func (s *Store) Update(ctx context.Context, id string, f UpdateFields) (model.Issue, error) {
	var result model.Issue
	err := s.withLock(func() error {
		rows, err := s.load()
		if err != nil {
			return err
		}
		i, ok := find(rows, id)
		if !ok {
			return model.NotFound(id)
		}
		issue := &rows[i]
		if f.Title != nil {
			issue.Title = *f.Title
		}
		if f.Body != nil {
			issue.Body = *f.Body
		}
		if f.Status != nil {
			issue.Status = *f.Status
		}
		if f.Outcome != nil {
			issue.Outcome = *f.Outcome
		}
		if f.Tags != nil {
			issue.Tags = f.Tags
		}
		if f.ExecutionSpec != nil {
			issue.ExecutionSpec = f.ExecutionSpec
		}
		if f.Priority != nil {
			issue.Priority = *f.Priority
		}
		issue.UpdatedAt = jsonlfile.NowTS()
		result = *issue
		return s.save(rows)
	})
	if err != nil {
		return model.Issue{}, err
	}
	s.emit(ctx, "issue.updated", id, map[string]any{})
	return result, nil
}

// Claim transitions an open issue to in_progress. Returns false without
// error if the issue is not currently open (or doesn't exist).
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	claimed := false
	err := s.withLock(func() error {
		rows, err := s.load()
		if err != nil {
			return err
		}
		i, ok := find(rows, id)
		if !ok || rows[i].Status != model.StatusOpen {
			return nil
		}
		rows[i].Status = model.StatusInProgress
		rows[i].UpdatedAt = jsonlfile.NowTS()
		claimed = true
		return s.save(rows)
	})
	if err != nil {
		return false, err
	}
	if claimed {
		s.emit(ctx, "issue.claimed", id, map[string]any{})
	}
	return claimed, nil
}

// Close force-closes an issue with the given outcome.
func (s *Store) Close(ctx context.Context, id string, outcome model.Outcome) (model.Issue, error) {
	status := model.StatusClosed
	issue, err := s.Update(ctx, id, UpdateFields{Status: &status, Outcome: &outcome})
	if err != nil {
		return model.Issue{}, err
	}
	s.emit(ctx, "issue.closed", id, map[string]any{"outcome": string(outcome)})
	return issue, nil
}

// Reopen clears outcome and returns an issue to open, recording the
// prior outcome in the EventLog (SPEC_FULL §12 audit-trail supplement).
func (s *Store) Reopen(ctx context.Context, id string, reason string) (model.Issue, error) {
	var priorOutcome model.Outcome
	status := model.StatusOpen
	outcome := model.OutcomeNone
	err := s.withLock(func() error {
		rows, err := s.load()
		if err != nil {
			return err
		}
		i, ok := find(rows, id)
		if !ok {
			return model.NotFound(id)
		}
		priorOutcome = rows[i].Outcome
		rows[i].Status = status
		rows[i].Outcome = outcome
		rows[i].UpdatedAt = jsonlfile.NowTS()
		return s.save(rows)
	})
	if err != nil {
		return model.Issue{}, err
	}
	s.emit(ctx, "issue.reopened", id, map[string]any{"prior_outcome": string(priorOutcome), "reason": reason})
	return s.Get(ctx, id)
}

// AddDep appends a dependency edge on src if not already present.
func (s *Store) AddDep(ctx context.Context, src string, depType model.DepType, dst string) error {
	added := false
	err := s.withLock(func() error {
		rows, err := s.load()
		if err != nil {
			return err
		}
		i, ok := find(rows, src)
		if !ok {
			return model.NotFound(src)
		}
		for _, d := range rows[i].Deps {
			if d.Type == depType && d.Target == dst {
				return nil
			}
		}
		rows[i].Deps = append(rows[i].Deps, model.Dependency{Type: depType, Target: dst})
		rows[i].UpdatedAt = jsonlfile.NowTS()
		added = true
		return s.save(rows)
	})
	if err != nil {
		return err
	}
	if added {
		s.emit(ctx, "dep.added", src, map[string]any{"type": string(depType), "target": dst})
	}
	return nil
}

// RemoveDep drops a matching dependency edge. Returns true if one was removed.
func (s *Store) RemoveDep(ctx context.Context, src string, depType model.DepType, dst string) (bool, error) {
	changed := false
	err := s.withLock(func() error {
		rows, err := s.load()
		if err != nil {
			return err
		}
		i, ok := find(rows, src)
		if !ok {
			return model.NotFound(src)
		}
		before := len(rows[i].Deps)
		kept := rows[i].Deps[:0:0]
		for _, d := range rows[i].Deps {
			if d.Type == depType && d.Target == dst {
				continue
			}
			kept = append(kept, d)
		}
		rows[i].Deps = kept
		changed = len(kept) != before
		if changed {
			rows[i].UpdatedAt = jsonlfile.NowTS()
			return s.save(rows)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.emit(ctx, "dep.removed", src, map[string]any{"type": string(depType), "target": dst})
	}
	return changed, nil
}

// Children returns issues with a parent edge targeting parentID.
func (s *Store) Children(ctx context.Context, parentID string) ([]model.Issue, error) {
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []model.Issue
	for _, row := range rows {
		for _, d := range row.Deps {
			if d.Type == model.DepParent && d.Target == parentID {
				out = append(out, row)
				break
			}
		}
	}
	return out, nil
}

// SubtreeIDs performs a BFS through parent edges starting at rootID,
// returning all descendant ids including the root itself.
func (s *Store) SubtreeIDs(ctx context.Context, rootID string) ([]string, error) {
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	return subtreeIDs(rows, rootID), nil
}

func subtreeIDs(rows []model.Issue, rootID string) []string {
	childrenOf := map[string][]string{}
	for _, row := range rows {
		for _, d := range row.Deps {
			if d.Type == model.DepParent {
				childrenOf[d.Target] = append(childrenOf[d.Target], row.ID)
			}
		}
	}

	var result []string
	seen := map[string]bool{}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
		queue = append(queue, childrenOf[id]...)
	}
	return result
}

// ResetInProgress resets every in_progress issue in the subtree rooted
// at rootID back to open, returning the ids that were reset. Called at
// the start of every resume so a crashed run's claimed-but-unfinished
// issues become re-selectable.
func (s *Store) ResetInProgress(ctx context.Context, rootID string) ([]string, error) {
	var reset []string
	err := s.withLock(func() error {
		rows, err := s.load()
		if err != nil {
			return err
		}
		inScope := map[string]bool{}
		for _, id := range subtreeIDs(rows, rootID) {
			inScope[id] = true
		}
		for i := range rows {
			if inScope[rows[i].ID] && rows[i].Status == model.StatusInProgress {
				rows[i].Status = model.StatusOpen
				rows[i].UpdatedAt = jsonlfile.NowTS()
				reset = append(reset, rows[i].ID)
			}
		}
		if len(reset) == 0 {
			return nil
		}
		return s.save(rows)
	})
	if err != nil {
		return nil, err
	}
	for _, id := range reset {
		s.emit(ctx, "issue.reset_in_progress", id, map[string]any{})
	}
	return reset, nil
}

// ResolvePrefix returns the unique issue id matching the given prefix.
// Used by external collaborators (CLI argument resolution) per spec
// §4.2's "Prefix resolution".
func (s *Store) ResolvePrefix(ctx context.Context, prefix string) (string, error) {
	rows, err := s.load()
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, row := range rows {
		if strings.HasPrefix(row.ID, prefix) {
			candidates = append(candidates, row.ID)
		}
	}
	switch len(candidates) {
	case 0:
		return "", model.NotFound(prefix)
	case 1:
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", model.AmbiguousPrefix(prefix, candidates)
	}
}

func (s *Store) emit(ctx context.Context, eventType, issueID string, payload map[string]any) {
	if s.events == nil {
		return
	}
	_, _ = s.events.Emit(ctx, eventType, eventlog.EmitArgs{
		Source:  "issue_store",
		Payload: payload,
		IssueID: issueID,
	})
}
