// Package textbuf is the editable transcript document with snapshot
// undo/redo. Both the reconciler and direct user edits funnel through
// Edit, so history behaves the same regardless of who wrote the text.
package textbuf

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the undo history in whole-document
	// snapshots; the oldest snapshot is evicted past it.
	DefaultCapacity = 50

	// Edits landing within this window collapse into the previous
	// snapshot instead of pushing a new one, so bursts of keystrokes
	// or rapid commits cost one undo step.
	debounceWindow = 400 * time.Millisecond
)

type Buffer struct {
	capacity int
	debounce time.Duration
	now      func() time.Time

	mu       sync.Mutex
	history  []string
	redo     []string
	lastPush time.Time
}

func New() *Buffer {
	return NewWithCapacity(DefaultCapacity)
}

func NewWithCapacity(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		debounce: debounceWindow,
		now:      time.Now,
		history:  []string{""},
	}
}

// Value returns the current document content.
func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history[len(b.history)-1]
}

// Edit records a new document state. Equal states are ignored; rapid
// successive edits collapse into one snapshot; any recorded edit clears
// the redo stack.
func (b *Buffer) Edit(value string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if value == b.history[len(b.history)-1] {
		return
	}

	now := b.now()
	collapse := !b.lastPush.IsZero() && now.Sub(b.lastPush) < b.debounce && len(b.history) > 1
	if collapse {
		b.history[len(b.history)-1] = value
	} else {
		b.history = append(b.history, value)
		if len(b.history) > b.capacity {
			b.history = b.history[len(b.history)-b.capacity:]
		}
	}
	b.lastPush = now
	b.redo = b.redo[:0]
}

// Undo restores the previous snapshot. It reports false when fewer
// than two snapshots exist.
func (b *Buffer) Undo() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.history) < 2 {
		return b.history[len(b.history)-1], false
	}
	top := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	b.redo = append(b.redo, top)
	b.lastPush = time.Time{}
	return b.history[len(b.history)-1], true
}

// Redo reapplies the most recently undone snapshot.
func (b *Buffer) Redo() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.redo) == 0 {
		return b.history[len(b.history)-1], false
	}
	top := b.redo[len(b.redo)-1]
	b.redo = b.redo[:len(b.redo)-1]
	b.history = append(b.history, top)
	if len(b.history) > b.capacity {
		b.history = b.history[len(b.history)-b.capacity:]
	}
	b.lastPush = time.Time{}
	return top, true
}

// Clear records the empty document as a new snapshot. Confirmation is
// the caller's responsibility.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.history[len(b.history)-1] == "" {
		return
	}
	b.history = append(b.history, "")
	if len(b.history) > b.capacity {
		b.history = b.history[len(b.history)-b.capacity:]
	}
	b.lastPush = time.Time{}
	b.redo = b.redo[:0]
}

// Snapshots reports how many undo snapshots are held.
func (b *Buffer) Snapshots() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}

// CanRedo reports whether a redo step is available.
func (b *Buffer) CanRedo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.redo) > 0
}
