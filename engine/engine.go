// Package engine orchestrates a single conversational turn: recall
// relevant long-term memories, extend the buffer, call the completion
// capability, and offer the exchange back to long-term memory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/voxmind/aria/buffer"
	"github.com/voxmind/aria/core"
	"github.com/voxmind/aria/memory"
)

// ErrCompletionTimeout reports that the completion call exceeded its
// bound. The turn failed but the session continues: the user turn stays
// in the buffer and no assistant turn is appended. Retry policy belongs
// to the front end.
var ErrCompletionTimeout = errors.New("engine: completion timed out")

// Completer is the external completion capability.
type Completer interface {
	// Complete produces the assistant's reply for the given turn
	// sequence. The call must respect ctx's deadline.
	Complete(ctx context.Context, turns []core.Turn) (string, error)
}

// StreamingCompleter is optionally implemented by completers that can
// deliver the reply incrementally. The engine uses it when a stream
// callback is configured.
type StreamingCompleter interface {
	CompleteStream(ctx context.Context, turns []core.Turn, onDelta func(delta string)) (string, error)
}

// Memory is the slice of long-term memory the engine needs.
// *memory.LongTermMemory satisfies it.
type Memory interface {
	Add(ctx context.Context, text string) (id string, stored bool, err error)
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]*memory.Record, error)
}

// Engine runs the per-turn memory orchestration. One utterance is fully
// handled before the next is accepted; the engine holds no cross-turn
// state of its own, the buffer and the store do.
type Engine struct {
	completer         Completer
	memory            Memory
	recallLimit       int
	completionTimeout time.Duration
	persistTimeout    time.Duration
	persistAssistant  bool
	streamCallback    func(delta string)
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory attaches a long-term memory. Without one the engine only
// maintains the buffer.
func WithMemory(m Memory) Option {
	return func(e *Engine) {
		e.memory = m
	}
}

// WithRecallLimit sets how many records are retrieved and injected per
// turn. Default: 1.
func WithRecallLimit(n int) Option {
	return func(e *Engine) {
		e.recallLimit = n
	}
}

// WithCompletionTimeout bounds the completion call. Default: 60s.
func WithCompletionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.completionTimeout = d
	}
}

// WithPersistAssistant stores the full exchange (user and assistant
// text) instead of the user utterance alone.
func WithPersistAssistant() Option {
	return func(e *Engine) {
		e.persistAssistant = true
	}
}

// WithStreamCallback delivers completion deltas as they arrive, when the
// completer supports streaming.
func WithStreamCallback(cb func(delta string)) Option {
	return func(e *Engine) {
		e.streamCallback = cb
	}
}

// NewEngine creates an engine around the given completer.
func NewEngine(completer Completer, opts ...Option) *Engine {
	e := &Engine{
		completer:         completer,
		recallLimit:       1,
		completionTimeout: 60 * time.Second,
		persistTimeout:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Output is the result of one successfully completed turn.
type Output struct {
	// Text is the assistant's reply.
	Text string

	// Recalled is the number of memory records injected this turn.
	Recalled int

	// Stored reports whether the exchange passed the importance gate
	// and was persisted; StoredID is the new record's id when it was.
	Stored   bool
	StoredID string
}

// Run processes one inbound user utterance:
//
//  1. query long-term memory for up to recallLimit relevant records
//  2. inject each, in ranking order, into the buffer
//  3. append the user turn
//  4. call the completion capability with the buffer's turns
//  5. append the assistant turn
//  6. offer the exchange for persistence
//
// Retrieval failures are treated as an empty result and persistence
// failures are skipped; neither fails the turn. A completion timeout
// fails the turn with ErrCompletionTimeout, leaving the user turn in
// place so the front end can retry.
func (e *Engine) Run(ctx context.Context, buf *buffer.Buffer, utterance string) (*Output, error) {
	out := &Output{}

	if e.memory != nil && strings.TrimSpace(utterance) != "" {
		records, err := e.memory.Query(ctx, utterance, e.recallLimit, nil)
		if err != nil {
			// Store unavailable: this turn proceeds without recall.
			log.Printf("[ENGINE] Retrieval failed, continuing without memories: %v", err)
		}
		for _, rec := range records {
			buf.InjectMemory(rec.Text())
		}
		out.Recalled = len(records)
	}

	buf.AddUserMessage(utterance)

	reply, err := e.complete(ctx, buf.Turns())
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrCompletionTimeout
		}
		return nil, fmt.Errorf("complete turn: %w", err)
	}

	buf.AddAIMessage(reply)
	out.Text = reply

	if e.memory != nil {
		e.persist(utterance, reply, out)
	}
	return out, nil
}

// complete invokes the completer under the configured bound, streaming
// when both sides support it.
func (e *Engine) complete(ctx context.Context, turns []core.Turn) (string, error) {
	if e.completionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.completionTimeout)
		defer cancel()
	}
	if e.streamCallback != nil {
		if sc, ok := e.completer.(StreamingCompleter); ok {
			return sc.CompleteStream(ctx, turns, e.streamCallback)
		}
	}
	return e.completer.Complete(ctx, turns)
}

// persist offers the turn's content to long-term memory. Runs after the
// reply is already in the buffer, on its own deadline detached from the
// turn context: a session tearing down between turns must not abort a
// write midway.
func (e *Engine) persist(utterance, reply string, out *Output) {
	ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
	defer cancel()

	candidate := utterance
	if e.persistAssistant {
		candidate = fmt.Sprintf("User: %s\nAssistant: %s", utterance, reply)
	}

	id, stored, err := e.memory.Add(ctx, candidate)
	if err != nil {
		log.Printf("[ENGINE] Persistence failed, skipping this turn: %v", err)
		return
	}
	out.Stored = stored
	out.StoredID = id
}
