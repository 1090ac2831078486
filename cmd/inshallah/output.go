package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/untoldecay/inshallah/internal/issuestore"
)

func printJSONPretty(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// resolveIssueID accepts either a full issue id or an unambiguous
// prefix, matching cli.py's inline prefix-resolution fallback in
// cmd_resume and the store's own ResolvePrefix helper.
func resolveIssueID(ctx context.Context, store *issuestore.Store, idOrPrefix string) (string, error) {
	if _, err := store.Get(ctx, idOrPrefix); err == nil {
		return idOrPrefix, nil
	}
	return store.ResolvePrefix(ctx, idOrPrefix)
}
