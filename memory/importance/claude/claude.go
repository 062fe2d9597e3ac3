// Package claude implements the remote importance judge on the Anthropic
// Messages API. It is the primary evaluator in the standard gate chain;
// any failure here is handled by the heuristic fallback, so callers never
// see judge errors.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// judgeInstruction is the fixed single-shot classification prompt.
const judgeInstruction = `You are a memory importance evaluator. Analyze the given memory and determine if it's significant enough to store in long-term memory.

Consider these criteria for importance:
1. Personal significance - Does it reveal personal preferences, experiences, or identity?
2. Emotional content - Does it contain strong emotions or meaningful experiences?
3. Practical utility - Could this information be useful in future conversations?
4. Uniqueness - Is this a unique or novel piece of information?
5. Long-term relevance - Will this remain relevant over time?

Respond with ONLY "YES" if the memory is important enough to store, or "NO" if it's not significant enough.
Be conservative - only store truly meaningful memories.`

// Config configures the judge.
type Config struct {
	// Model is the Claude model used for classification.
	// Default: claude-3-5-haiku-latest (the call is a one-token decision,
	// a small model keeps it cheap).
	Model string

	// MaxTokens caps the response budget. Default: 100.
	MaxTokens int64

	// Timeout bounds the classification call. On expiry the gate takes
	// its fallback path. Default: 5s.
	Timeout time.Duration
}

// Judge classifies candidate memories with a single bounded API call.
type Judge struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

// New creates a judge with the given Anthropic client.
func New(client *anthropic.Client, cfg Config) *Judge {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 100
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Judge{
		client:    client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

// Evaluate performs the classification call. It reports true when the
// model answers YES; any transport failure, timeout, or malformed
// response is returned as an error for the fallback chain to absorb.
func (j *Judge) Evaluate(ctx context.Context, candidate string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     j.model,
		MaxTokens: j.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: judgeInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Memory to evaluate: " + candidate)),
		},
	})
	if err != nil {
		return false, fmt.Errorf("judge call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return false, fmt.Errorf("judge returned no text content")
	}

	return strings.Contains(text, "YES"), nil
}
