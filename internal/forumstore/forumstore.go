// Package forumstore implements the JSONL-backed message forum of spec
// §4.3: an append-rewritten forum.jsonl, grounded on the reference
// implementation's forum_store.py and sharing the read-modify-rewrite
// pattern of internal/issuestore.
package forumstore

import (
	"context"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/untoldecay/inshallah/internal/eventlog"
	"github.com/untoldecay/inshallah/internal/jsonlfile"
	"github.com/untoldecay/inshallah/internal/model"
)

// Store is a JSONL-backed forum rooted at a single forum.jsonl file, with
// a sibling EventLog receiving one record per post.
type Store struct {
	path   string
	events *eventlog.EventLog
	lock   *flock.Flock
}

// New returns a Store backed by path (typically
// <repo>/.inshallah/forum.jsonl), emitting events to the sibling
// events.jsonl file.
func New(path string, events *eventlog.EventLog) *Store {
	return &Store{path: path, events: events, lock: flock.New(path + ".lock")}
}

// Post appends a message to topic, returning the stored record. A topic
// of the form "issue:<id>" correlates the event to that issue.
func (s *Store) Post(ctx context.Context, topic, body, author string) (model.ForumMessage, error) {
	if author == "" {
		author = "system"
	}
	msg := model.ForumMessage{
		Topic:     topic,
		Body:      body,
		Author:    author,
		CreatedAt: jsonlfile.NowTS(),
	}

	if err := s.lock.Lock(); err != nil {
		return model.ForumMessage{}, model.IOError(err)
	}
	defer s.lock.Unlock()

	rows, err := jsonlfile.ReadLines[model.ForumMessage](s.path)
	if err != nil {
		return model.ForumMessage{}, model.IOError(err)
	}
	rows = append(rows, msg)
	if err := jsonlfile.WriteLinesAtomic(s.path, rows); err != nil {
		return model.ForumMessage{}, model.IOError(err)
	}

	if s.events != nil {
		_, _ = s.events.Emit(ctx, "forum.post", eventlog.EmitArgs{
			Source:  "forum_store",
			IssueID: issueIDFromTopic(topic),
			Payload: map[string]any{"message": msg},
		})
	}
	return msg, nil
}

// issueIDFromTopic extracts the id from an "issue:<id>" topic, or ""
// if topic isn't of that form.
func issueIDFromTopic(topic string) string {
	const prefix = "issue:"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(topic, prefix))
}

// Read returns up to limit most-recent messages posted to topic, in
// chronological (oldest-first) order.
func (s *Store) Read(ctx context.Context, topic string, limit int) ([]model.ForumMessage, error) {
	rows, err := jsonlfile.ReadLines[model.ForumMessage](s.path)
	if err != nil {
		return nil, model.IOError(err)
	}
	var matching []model.ForumMessage
	for _, row := range rows {
		if row.Topic == topic {
			matching = append(matching, row)
		}
	}
	if limit > 0 && len(matching) > limit {
		matching = matching[len(matching)-limit:]
	}
	return matching, nil
}

// Topics returns per-topic activity summaries, optionally restricted to
// topics starting with prefix, sorted by most-recent activity then topic
// name (both descending, matching the Python original's reverse=True).
func (s *Store) Topics(ctx context.Context, prefix string) ([]model.TopicInfo, error) {
	rows, err := jsonlfile.ReadLines[model.ForumMessage](s.path)
	if err != nil {
		return nil, model.IOError(err)
	}
	byTopic := map[string]*model.TopicInfo{}
	var order []string
	for _, row := range rows {
		if row.Topic == "" {
			continue
		}
		if prefix != "" && !strings.HasPrefix(row.Topic, prefix) {
			continue
		}
		entry, ok := byTopic[row.Topic]
		if !ok {
			entry = &model.TopicInfo{Topic: row.Topic}
			byTopic[row.Topic] = entry
			order = append(order, row.Topic)
		}
		entry.Messages++
		if row.CreatedAt > entry.LastAt {
			entry.LastAt = row.CreatedAt
		}
	}

	out := make([]model.TopicInfo, 0, len(order))
	for _, topic := range order {
		out = append(out, *byTopic[topic])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastAt != out[j].LastAt {
			return out[i].LastAt > out[j].LastAt
		}
		return out[i].Topic > out[j].Topic
	})
	return out, nil
}
