package issuestore

import (
	"context"
	"sort"

	"github.com/untoldecay/inshallah/internal/jsonlfile"
	"github.com/untoldecay/inshallah/internal/model"
)

// ReadyFilter narrows Ready to a subtree and/or a required tag set.
type ReadyFilter struct {
	RootID string   // empty means the whole store
	Tags   []string // every tag must be present on a candidate
}

// Ready returns open, unblocked leaf issues in scope, sorted by
// ascending priority (ties broken by insertion order), per spec §4.2.1.
func (s *Store) Ready(ctx context.Context, f ReadyFilter) ([]model.Issue, error) {
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	byID := map[string]*model.Issue{}
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	var inScope map[string]bool
	if f.RootID != "" {
		inScope = map[string]bool{}
		for _, id := range subtreeIDs(rows, f.RootID) {
			inScope[id] = true
		}
	}

	// blocked[T] is true when some prerequisite P holds {blocks, T} and P
	// has not satisfied the ordering contract: P.status != closed, OR
	// P.status == closed with outcome == expanded (delegation, not done).
	blocked := map[string]bool{}
	for _, row := range rows {
		for _, d := range row.Deps {
			if d.Type != model.DepBlocks {
				continue
			}
			if row.Status != model.StatusClosed || row.Outcome == model.OutcomeExpanded {
				blocked[d.Target] = true
			}
		}
	}

	childrenOf := map[string][]*model.Issue{}
	for i := range rows {
		for _, d := range rows[i].Deps {
			if d.Type == model.DepParent {
				childrenOf[d.Target] = append(childrenOf[d.Target], &rows[i])
			}
		}
	}

	type candidate struct {
		issue model.Issue
		order int
	}
	now := jsonlfile.NowTS()
	var results []candidate
	for idx := range rows {
		row := &rows[idx]
		if inScope != nil && !inScope[row.ID] {
			continue
		}
		if row.Status != model.StatusOpen {
			continue
		}
		if blocked[row.ID] {
			continue
		}
		// An issue deferred to the future is never ready, regardless of
		// otherwise being open, unblocked, a leaf, and tag-matching.
		if row.ExecutionSpec != nil && row.ExecutionSpec.DeferUntil != nil && *row.ExecutionSpec.DeferUntil > now {
			continue
		}
		leaf := true
		for _, child := range childrenOf[row.ID] {
			if child.Status != model.StatusClosed {
				leaf = false
				break
			}
		}
		if !leaf {
			continue
		}
		if len(f.Tags) > 0 {
			ok := true
			for _, tag := range f.Tags {
				if !row.HasTag(tag) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		results = append(results, candidate{issue: *row, order: idx})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].issue.Priority < results[j].issue.Priority
	})

	out := make([]model.Issue, len(results))
	for i, c := range results {
		out[i] = c.issue
	}
	return out, nil
}

// Collapsible returns expanded issues in the subtree whose children are
// all closed with a terminal outcome (success or skipped — explicitly
// NOT expanded, failure, or needs_work). Per spec §4.2.3, this naturally
// produces bottom-up order without a topological sort.
func (s *Store) Collapsible(ctx context.Context, rootID string) ([]model.Issue, error) {
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	byID := map[string]*model.Issue{}
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	inScope := map[string]bool{}
	for _, id := range subtreeIDs(rows, rootID) {
		inScope[id] = true
	}
	childrenOf := map[string][]*model.Issue{}
	for i := range rows {
		for _, d := range rows[i].Deps {
			if d.Type == model.DepParent {
				childrenOf[d.Target] = append(childrenOf[d.Target], &rows[i])
			}
		}
	}

	var out []model.Issue
	for _, id := range orderedScope(rows, inScope) {
		node := byID[id]
		if node == nil || node.Status != model.StatusClosed || node.Outcome != model.OutcomeExpanded {
			continue
		}
		kids := childrenOf[id]
		if len(kids) == 0 {
			continue
		}
		allTerminal := true
		for _, kid := range kids {
			if kid.Status != model.StatusClosed || !model.TerminalOutcomes[kid.Outcome] {
				allTerminal = false
				break
			}
		}
		if allTerminal {
			out = append(out, *node)
		}
	}
	return out, nil
}

// orderedScope returns rows' ids restricted to inScope, preserving
// insertion order (used where iteration order must be deterministic).
func orderedScope(rows []model.Issue, inScope map[string]bool) []string {
	out := make([]string, 0, len(inScope))
	for _, row := range rows {
		if inScope[row.ID] {
			out = append(out, row.ID)
		}
	}
	return out
}

// Validate determines whether the subtree rooted at rootID has reached
// a final state, per the ordered rules of spec §4.2.2.
func (s *Store) Validate(ctx context.Context, rootID string) (model.ValidationResult, error) {
	rows, err := s.load()
	if err != nil {
		return model.ValidationResult{}, err
	}
	byID := map[string]*model.Issue{}
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	ids := subtreeIDs(rows, rootID)

	if _, ok := byID[rootID]; !ok {
		return model.ValidationResult{IsFinal: true, Reason: "root not found"}, nil
	}

	childrenOf := map[string][]string{}
	for _, row := range rows {
		for _, d := range row.Deps {
			if d.Type == model.DepParent {
				childrenOf[d.Target] = append(childrenOf[d.Target], row.ID)
			}
		}
	}

	// Rule 2: closed with outcome in {failure, needs_work} demands re-expansion.
	var needsReorch []string
	for _, id := range ids {
		issue := byID[id]
		if issue != nil && issue.Status == model.StatusClosed &&
			(issue.Outcome == model.OutcomeFailure || issue.Outcome == model.OutcomeNeedsWork) {
			needsReorch = append(needsReorch, id)
		}
	}
	if len(needsReorch) > 0 {
		sort.Strings(needsReorch)
		return model.ValidationResult{IsFinal: false, Reason: "needs work: " + joinIDs(needsReorch)}, nil
	}

	// Rule 3: expanded with zero children is a structural bug.
	var badExpanded []string
	for _, id := range ids {
		issue := byID[id]
		if issue != nil && issue.Status == model.StatusClosed && issue.Outcome == model.OutcomeExpanded &&
			len(childrenOf[id]) == 0 {
			badExpanded = append(badExpanded, id)
		}
	}
	if len(badExpanded) > 0 {
		sort.Strings(badExpanded)
		return model.ValidationResult{IsFinal: false, Reason: "expanded without children: " + joinIDs(badExpanded)}, nil
	}

	// Rule 4: pending = not-closed, except expanded nodes are transparent.
	var pending []string
	for _, id := range ids {
		issue, ok := byID[id]
		if !ok {
			continue
		}
		if issue.Status == model.StatusClosed && issue.Outcome == model.OutcomeExpanded {
			continue
		}
		if issue.Status != model.StatusClosed {
			pending = append(pending, id)
		}
	}

	if len(pending) == 0 {
		return model.ValidationResult{IsFinal: true, Reason: "all work completed"}, nil
	}

	if len(pending) == 1 && pending[0] == rootID && len(ids) > 1 {
		return model.ValidationResult{IsFinal: false, Reason: "all children closed, root still open"}, nil
	}

	return model.ValidationResult{IsFinal: false, Reason: "in progress"}, nil
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
