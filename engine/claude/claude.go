// Package claude implements the engine's completion capability on the
// Anthropic Messages API.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/voxmind/aria/core"
)

// Config configures the completer.
type Config struct {
	// Model is the Claude model. Default: claude-sonnet-4-20250514.
	Model string

	// MaxTokens caps the reply length. Default: 1024; companion replies
	// are spoken aloud downstream, long ones read badly.
	MaxTokens int64
}

// Completer turns a buffer's turn sequence into a Claude reply. It
// implements both engine.Completer and engine.StreamingCompleter.
type Completer struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// New creates a completer with the given Anthropic client.
func New(client *anthropic.Client, cfg Config) *Completer {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	return &Completer{
		client:    client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
	}
}

// Complete performs a blocking completion call.
func (c *Completer) Complete(ctx context.Context, turns []core.Turn) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(turns))
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// CompleteStream performs a streaming completion call, delivering text
// deltas to onDelta as they arrive and returning the accumulated reply.
func (c *Completer) CompleteStream(ctx context.Context, turns []core.Turn, onDelta func(string)) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(turns))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			// Accumulation errors are non-fatal; deltas still flow.
			continue
		}
		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok {
				onDelta(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("claude stream: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// params maps the buffer's turn sequence to an API request. The Messages
// API takes system content out of band: the preamble and any injected
// memory turns become system blocks, in their buffer order, while user
// and assistant turns stay in the message list.
func (c *Completer) params(turns []core.Turn) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, turn := range turns {
		switch turn.Role {
		case core.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: turn.Content})
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	return anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  messages,
	}
}
