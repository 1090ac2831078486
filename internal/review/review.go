// Package review provides a direct-API issue summarizer used by
// `inshallah issues summarize <id>`, independent of the subprocess
// reviewer pass of spec §4.5.4: a "quick look" over a closed issue
// that calls the Anthropic API directly rather than spawning a full
// coding-agent CLI. Grounded on internal/compact/haiku.go's
// HaikuClient — same client/template/retry-backoff structure,
// repointed at model.Issue instead of bd's own issue type.
package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/untoldecay/inshallah/internal/model"
)

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when no API key is available from
// either the explicit argument or ANTHROPIC_API_KEY.
var ErrAPIKeyRequired = errors.New("review: API key required")

// Client summarizes issues via direct Anthropic API calls.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	template       *template.Template
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient builds a Client. ANTHROPIC_API_KEY takes precedence over
// an explicitly passed apiKey.
func NewClient(apiKey string) (*Client, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or pass one explicitly", ErrAPIKeyRequired)
	}

	tmpl, err := template.New("summary").Parse(summaryPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("review: parse summary template: %w", err)
	}

	return &Client{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          defaultModel,
		template:       tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// Summarize produces a short human-readable summary of a closed issue:
// what it was, the outcome, and the forum discussion trail leading to
// it, compressed into a few sentences.
func (c *Client) Summarize(ctx context.Context, issue model.Issue, forumLog string) (string, error) {
	prompt, err := c.renderPrompt(issue, forumLog)
	if err != nil {
		return "", fmt.Errorf("review: render prompt: %w", err)
	}
	return c.callWithRetry(ctx, prompt)
}

func (c *Client) renderPrompt(issue model.Issue, forumLog string) (string, error) {
	var buf []byte
	w := &bytesWriter{buf: buf}
	data := summaryData{
		ID:       issue.ID,
		Title:    issue.Title,
		Body:     issue.Body,
		Status:   string(issue.Status),
		Outcome:  string(issue.Outcome),
		ForumLog: forumLog,
	}
	if err := c.template.Execute(w, data); err != nil {
		return "", err
	}
	return string(w.buf), nil
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", fmt.Errorf("review: empty response")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("review: unexpected response format: not a text block (type=%s)", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("review: non-retryable error: %w", err)
		}
	}

	return "", fmt.Errorf("review: failed after %d retries: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

type summaryData struct {
	ID       string
	Title    string
	Body     string
	Status   string
	Outcome  string
	ForumLog string
}

type bytesWriter struct {
	buf []byte
}

func (w *bytesWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

const summaryPromptTemplate = `You are summarizing a closed orchestration issue for a human operator skimming run history. Be concise.

**Issue:** {{.ID}} — {{.Title}}
**Status:** {{.Status}} ({{.Outcome}})

**Body:**
{{.Body}}

{{if .ForumLog}}**Forum discussion:**
{{.ForumLog}}
{{end}}

Provide a 2-4 sentence summary covering what the issue asked for, how it was resolved (or why it failed), and anything a human should double-check.`
