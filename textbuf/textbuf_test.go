package textbuf

import (
	"testing"
	"time"
)

// newSteppedBuffer returns a buffer whose clock advances one second per
// edit, far past the debounce window, so every edit is its own snapshot.
func newSteppedBuffer(capacity int) *Buffer {
	b := NewWithCapacity(capacity)
	t := time.Unix(1000, 0)
	b.now = func() time.Time {
		t = t.Add(time.Second)
		return t
	}
	return b
}

func TestEditAndValue(t *testing.T) {
	b := newSteppedBuffer(DefaultCapacity)
	b.Edit("hello")
	b.Edit("hello world")
	if got := b.Value(); got != "hello world" {
		t.Fatalf("value = %q", got)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	b := newSteppedBuffer(DefaultCapacity)
	b.Edit("one")
	b.Edit("one two")
	b.Edit("one two three")

	if v, ok := b.Undo(); !ok || v != "one two" {
		t.Fatalf("undo = %q, %v", v, ok)
	}
	if v, ok := b.Undo(); !ok || v != "one" {
		t.Fatalf("undo = %q, %v", v, ok)
	}
	if v, ok := b.Redo(); !ok || v != "one two" {
		t.Fatalf("redo = %q, %v", v, ok)
	}
	if v, ok := b.Redo(); !ok || v != "one two three" {
		t.Fatalf("redo = %q, %v", v, ok)
	}
	if _, ok := b.Redo(); ok {
		t.Fatal("redo past the newest state")
	}
}

func TestUndoAtOldestIsNoop(t *testing.T) {
	b := newSteppedBuffer(DefaultCapacity)
	if v, ok := b.Undo(); ok || v != "" {
		t.Fatalf("undo on fresh buffer = %q, %v", v, ok)
	}
	b.Edit("only")
	b.Undo()
	if v, ok := b.Undo(); ok || v != "" {
		t.Fatalf("undo past oldest = %q, %v", v, ok)
	}
}

func TestEditClearsRedo(t *testing.T) {
	b := newSteppedBuffer(DefaultCapacity)
	b.Edit("one")
	b.Edit("one two")
	b.Undo()
	b.Edit("one three")

	if b.CanRedo() {
		t.Fatal("redo stack should be cleared by a new edit")
	}
	if v, ok := b.Redo(); ok || v != "one three" {
		t.Fatalf("redo = %q, %v", v, ok)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	b := newSteppedBuffer(3)
	b.Edit("a")
	b.Edit("b")
	b.Edit("c")
	b.Edit("d")

	if n := b.Snapshots(); n != 3 {
		t.Fatalf("snapshots = %d, want 3", n)
	}
	// Oldest reachable state is now "b", not the empty start.
	b.Undo()
	if v, ok := b.Undo(); !ok || v != "b" {
		t.Fatalf("undo = %q, %v", v, ok)
	}
	if _, ok := b.Undo(); ok {
		t.Fatal("evicted snapshot still reachable")
	}
}

func TestDebounceCollapsesRapidEdits(t *testing.T) {
	b := NewWithCapacity(DefaultCapacity)
	clock := time.Unix(1000, 0)
	b.now = func() time.Time { return clock }

	b.Edit("h")
	clock = clock.Add(100 * time.Millisecond)
	b.Edit("he")
	clock = clock.Add(100 * time.Millisecond)
	b.Edit("hello")

	// Three rapid edits, one undo step back to the empty start.
	if n := b.Snapshots(); n != 2 {
		t.Fatalf("snapshots = %d, want 2", n)
	}
	if v, ok := b.Undo(); !ok || v != "" {
		t.Fatalf("undo = %q, %v", v, ok)
	}
}

func TestSlowEditsDoNotCollapse(t *testing.T) {
	b := NewWithCapacity(DefaultCapacity)
	clock := time.Unix(1000, 0)
	b.now = func() time.Time { return clock }

	b.Edit("h")
	clock = clock.Add(time.Second)
	b.Edit("hello")

	if v, ok := b.Undo(); !ok || v != "h" {
		t.Fatalf("undo = %q, %v", v, ok)
	}
}

func TestEqualEditIgnored(t *testing.T) {
	b := newSteppedBuffer(DefaultCapacity)
	b.Edit("same")
	b.Edit("same")
	if n := b.Snapshots(); n != 2 {
		t.Fatalf("snapshots = %d, want 2", n)
	}
}

func TestClear(t *testing.T) {
	b := newSteppedBuffer(DefaultCapacity)
	b.Edit("content")
	b.Clear()

	if got := b.Value(); got != "" {
		t.Fatalf("value after clear = %q", got)
	}
	// Clear is itself undoable.
	if v, ok := b.Undo(); !ok || v != "content" {
		t.Fatalf("undo after clear = %q, %v", v, ok)
	}
}

func TestClearOnEmptyIsNoop(t *testing.T) {
	b := newSteppedBuffer(DefaultCapacity)
	b.Clear()
	if n := b.Snapshots(); n != 1 {
		t.Fatalf("snapshots = %d, want 1", n)
	}
}
