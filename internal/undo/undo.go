// Package undo keeps a bounded linear history of snapshots with a cursor.
package undo

import "sync"

// DefaultCapacity is used when New receives a capacity below 1.
const DefaultCapacity = 10

// Option configures a Delegate.
type Option[T any] func(*Delegate[T])

// WithRedo sets the callback invoked by Redo. Defaults to the undo callback.
func WithRedo[T any](fn func(T)) Option[T] {
	return func(d *Delegate[T]) { d.onRedo = fn }
}

// WithClear sets a callback invoked once per discarded entry on Clear.
func WithClear[T any](fn func(T)) Option[T] {
	return func(d *Delegate[T]) { d.onClear = fn }
}

// WithRecordAfterClear makes Clear record the current state right away.
func WithRecordAfterClear[T any]() Option[T] {
	return func(d *Delegate[T]) { d.recordAfterClear = true }
}

// Delegate records snapshots produced by a getter and hands them back to
// callbacks as the cursor moves. Recording after an undo drops the redo branch;
// recording past capacity evicts the oldest entry.
type Delegate[T any] struct {
	mu sync.Mutex

	getter  func() T
	onUndo  func(T)
	onRedo  func(T)
	onClear func(T)

	recordAfterClear bool
	capacity         int

	entries []T
	cursor  int
	latest  T
}

// New creates a Delegate. getter and onUndo are required.
func New[T any](getter func() T, onUndo func(T), capacity int, opts ...Option[T]) *Delegate[T] {
	if getter == nil || onUndo == nil {
		panic("undo: getter and onUndo are required")
	}
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	d := &Delegate[T]{getter: getter, onUndo: onUndo, capacity: capacity, cursor: -1}
	for _, o := range opts {
		o(d)
	}
	if d.onRedo == nil {
		d.onRedo = onUndo
	}
	return d
}

// Record captures the current state and makes it the newest entry.
func (d *Delegate[T]) Record() {
	snap := d.getter()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest = snap
	d.push(snap)
}

func (d *Delegate[T]) push(snap T) {
	if d.cursor >= 0 && d.cursor+1 < len(d.entries) {
		d.entries = d.entries[:d.cursor+1]
	}
	for len(d.entries) >= d.capacity {
		d.entries = d.entries[1:]
		d.cursor--
	}
	d.entries = append(d.entries, snap)
	d.cursor = len(d.entries) - 1
}

// Undo steps the cursor back and applies that entry. It returns false at the
// oldest entry.
func (d *Delegate[T]) Undo() bool {
	snap, ok := d.step(-1)
	if ok {
		d.onUndo(snap)
	}
	return ok
}

// Redo steps the cursor forward and applies that entry. It returns false at the
// newest entry.
func (d *Delegate[T]) Redo() bool {
	snap, ok := d.step(1)
	if ok {
		d.onRedo(snap)
	}
	return ok
}

func (d *Delegate[T]) step(delta int) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := d.cursor + delta
	if next < 0 || next >= len(d.entries) {
		var zero T
		return zero, false
	}
	d.cursor = next
	d.latest = d.entries[next]
	return d.latest, true
}

// Clear discards every entry, running the clear callback on each one first.
func (d *Delegate[T]) Clear() {
	d.mu.Lock()
	entries := d.entries
	d.entries = nil
	d.cursor = -1
	d.mu.Unlock()

	if d.onClear != nil {
		for _, e := range entries {
			d.onClear(e)
		}
	}
	if d.recordAfterClear {
		d.Record()
	}
}

// SetCapacity changes the bound, evicting the oldest entries if needed.
func (d *Delegate[T]) SetCapacity(n int) {
	if n < 1 {
		n = DefaultCapacity
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capacity = n
	for len(d.entries) > n {
		d.entries = d.entries[1:]
		d.cursor--
	}
	if d.cursor < 0 && len(d.entries) > 0 {
		d.cursor = 0
	}
}

func (d *Delegate[T]) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor > 0
}

func (d *Delegate[T]) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor >= 0 && d.cursor+1 < len(d.entries)
}

// Len returns the number of stored entries.
func (d *Delegate[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Cursor returns the index of the current entry, -1 when empty.
func (d *Delegate[T]) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Capacity returns the current bound.
func (d *Delegate[T]) Capacity() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capacity
}

// Latest returns the most recently recorded or applied snapshot.
func (d *Delegate[T]) Latest() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}
