// Package buffer implements the bounded conversational context window.
//
// A Buffer holds the ordered sequence of turns sent to the completion
// capability on every exchange. The first turn is always the system
// preamble and is never evicted; when the buffer overflows its capacity,
// the oldest non-preamble turns are dropped first.
//
// A Buffer is created once per session and discarded when the session
// ends. It is not safe for concurrent use: a session processes one
// utterance at a time.
package buffer

import (
	"errors"
	"strings"

	"github.com/voxmind/aria/core"
)

// DefaultCapacity is the maximum turn count used when callers pass
// NewDefault or a zero capacity through config.
const DefaultCapacity = 30

var (
	// ErrEmptyPreamble is returned when the system preamble is missing.
	ErrEmptyPreamble = errors.New("buffer: system preamble must not be empty")

	// ErrInvalidCapacity is returned for capacities that cannot hold the
	// preamble plus at least one exchange turn.
	ErrInvalidCapacity = errors.New("buffer: capacity must be at least 2")
)

// Buffer is the bounded, ordered working set of dialogue turns.
type Buffer struct {
	turns    []core.Turn
	capacity int
}

// New creates a buffer seeded with the system preamble.
// The preamble occupies index 0 for the buffer's whole lifetime.
// Misconfiguration (empty preamble, capacity < 2) is a programmer
// error and fails construction; no later operation can fail.
func New(preamble string, capacity int) (*Buffer, error) {
	if strings.TrimSpace(preamble) == "" {
		return nil, ErrEmptyPreamble
	}
	if capacity < 2 {
		return nil, ErrInvalidCapacity
	}
	return &Buffer{
		turns:    []core.Turn{core.SystemTurn(preamble)},
		capacity: capacity,
	}, nil
}

// NewDefault creates a buffer with DefaultCapacity.
func NewDefault(preamble string) (*Buffer, error) {
	return New(preamble, DefaultCapacity)
}

// AddUserMessage appends a user turn and trims to capacity.
func (b *Buffer) AddUserMessage(content string) {
	b.turns = append(b.turns, core.UserTurn(content))
	b.trim()
}

// AddAIMessage appends an assistant turn and trims to capacity.
func (b *Buffer) AddAIMessage(content string) {
	b.turns = append(b.turns, core.AssistantTurn(content))
	b.trim()
}

// InjectMemory inserts a system turn carrying retrieved memory content
// immediately before the two most recent turns, so recalled context sits
// adjacent to, but before, the latest exchange. The insertion point is
// clamped to index 1: the preamble is never displaced, and in a short
// buffer the memory still lands ahead of whatever exchange is there.
func (b *Buffer) InjectMemory(content string) {
	pos := len(b.turns) - 2
	if pos < 1 {
		pos = 1
	}
	b.turns = append(b.turns, core.Turn{})
	copy(b.turns[pos+1:], b.turns[pos:])
	b.turns[pos] = core.SystemTurn(content)
	b.trim()
}

// trim enforces len(turns) <= capacity by keeping the preamble plus the
// most recent capacity-1 turns, preserving their relative order.
func (b *Buffer) trim() {
	if len(b.turns) <= b.capacity {
		return
	}
	kept := make([]core.Turn, 0, b.capacity)
	kept = append(kept, b.turns[0])
	kept = append(kept, b.turns[len(b.turns)-(b.capacity-1):]...)
	b.turns = kept
}

// Turns returns a copy of the current turn sequence, oldest first.
// The copy is safe to hand to a completion call while the session
// continues mutating the buffer.
func (b *Buffer) Turns() []core.Turn {
	out := make([]core.Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Len returns the current number of turns, including the preamble.
func (b *Buffer) Len() int {
	return len(b.turns)
}

// Capacity returns the maximum permitted turn count.
func (b *Buffer) Capacity() int {
	return b.capacity
}
