package buffer_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/voxmind/aria/buffer"
	"github.com/voxmind/aria/core"
)

func TestNew_InvariantViolations(t *testing.T) {
	if _, err := buffer.New("", 10); !errors.Is(err, buffer.ErrEmptyPreamble) {
		t.Errorf("empty preamble: got err=%v, want ErrEmptyPreamble", err)
	}
	if _, err := buffer.New("   \n", 10); !errors.Is(err, buffer.ErrEmptyPreamble) {
		t.Errorf("whitespace preamble: got err=%v, want ErrEmptyPreamble", err)
	}
	if _, err := buffer.New("You are Aria.", 1); !errors.Is(err, buffer.ErrInvalidCapacity) {
		t.Errorf("capacity 1: got err=%v, want ErrInvalidCapacity", err)
	}
	if _, err := buffer.New("You are Aria.", 0); !errors.Is(err, buffer.ErrInvalidCapacity) {
		t.Errorf("capacity 0: got err=%v, want ErrInvalidCapacity", err)
	}
}

func TestNew_SeedsPreamble(t *testing.T) {
	b, err := buffer.New("You are Aria.", 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	turns := b.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Role != core.RoleSystem || turns[0].Content != "You are Aria." {
		t.Errorf("unexpected preamble turn: %+v", turns[0])
	}
}

func TestTrim_KeepsPreambleAndMostRecent(t *testing.T) {
	for _, capacity := range []int{2, 3, 5, 8} {
		b, err := buffer.New("preamble", capacity)
		if err != nil {
			t.Fatalf("New(capacity=%d): %v", capacity, err)
		}

		// Append well past capacity, alternating roles.
		total := capacity * 3
		var appended []string
		for i := 0; i < total; i++ {
			content := fmt.Sprintf("turn-%d", i)
			appended = append(appended, content)
			if i%2 == 0 {
				b.AddUserMessage(content)
			} else {
				b.AddAIMessage(content)
			}
			if b.Len() > capacity {
				t.Fatalf("capacity=%d: len %d exceeds capacity after append", capacity, b.Len())
			}
		}

		turns := b.Turns()
		if turns[0].Role != core.RoleSystem {
			t.Fatalf("capacity=%d: preamble evicted", capacity)
		}
		want := appended[len(appended)-(capacity-1):]
		if len(turns)-1 != len(want) {
			t.Fatalf("capacity=%d: got %d non-preamble turns, want %d", capacity, len(turns)-1, len(want))
		}
		for i, content := range want {
			if turns[i+1].Content != content {
				t.Errorf("capacity=%d: turn %d = %q, want %q", capacity, i+1, turns[i+1].Content, content)
			}
		}
	}
}

func TestInjectMemory_Position(t *testing.T) {
	b, err := buffer.New("S", 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.AddUserMessage("u1")
	b.AddAIMessage("a1")

	b.InjectMemory("X")

	got := b.Turns()
	want := []core.Turn{
		core.SystemTurn("S"),
		core.SystemTurn("X"),
		core.UserTurn("u1"),
		core.AssistantTurn("a1"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestInjectMemory_ShortBuffer(t *testing.T) {
	b, err := buffer.New("S", 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Only the preamble exists: memory lands at index 1, never before
	// index 0.
	b.InjectMemory("X")
	turns := b.Turns()
	if len(turns) != 2 || turns[1].Content != "X" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
	if turns[0].Content != "S" {
		t.Errorf("preamble displaced: %+v", turns[0])
	}

	// Preamble plus one user turn: the memory goes ahead of the
	// exchange, still behind the preamble.
	b2, err := buffer.New("S", 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b2.AddUserMessage("u1")
	b2.InjectMemory("X")
	got := b2.Turns()
	want := []core.Turn{
		core.SystemTurn("S"),
		core.SystemTurn("X"),
		core.UserTurn("u1"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestInjectMemory_TriggersTrim(t *testing.T) {
	b, err := buffer.New("S", 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.AddUserMessage("u1")
	b.AddAIMessage("a1")
	b.AddUserMessage("u2")

	b.InjectMemory("X") // overflows capacity 4, oldest non-preamble drops

	turns := b.Turns()
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	if turns[0].Role != core.RoleSystem || turns[0].Content != "S" {
		t.Fatalf("preamble evicted: %+v", turns[0])
	}
	// Relative order of survivors is preserved.
	wantContents := []string{"X", "a1", "u2"}
	for i, c := range wantContents {
		if turns[i+1].Content != c {
			t.Errorf("turn %d = %q, want %q", i+1, turns[i+1].Content, c)
		}
	}
}

func TestTurns_ReturnsCopy(t *testing.T) {
	b, err := buffer.New("S", 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.AddUserMessage("u1")

	snapshot := b.Turns()
	snapshot[0].Content = "mutated"

	if b.Turns()[0].Content != "S" {
		t.Error("mutating the snapshot leaked into the buffer")
	}
}
