package undo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	value   int
	applied []int
}

func newCounterDelegate(c *counter, capacity int, opts ...Option[int]) *Delegate[int] {
	return New(func() int { return c.value }, func(v int) {
		c.value = v
		c.applied = append(c.applied, v)
	}, capacity, opts...)
}

func TestDelegate_UndoRedo(t *testing.T) {
	c := &counter{}
	d := newCounterDelegate(c, 10)

	d.Record()
	c.value = 1
	d.Record()
	c.value = 2
	d.Record()

	require.True(t, d.Undo())
	assert.Equal(t, 1, c.value)
	require.True(t, d.Undo())
	assert.Equal(t, 0, c.value)
	assert.False(t, d.Undo(), "undo at the oldest entry is a no-op")
	assert.Equal(t, 0, d.Cursor())

	require.True(t, d.Redo())
	require.True(t, d.Redo())
	assert.Equal(t, 2, c.value)
	assert.False(t, d.Redo())
	assert.Equal(t, []int{1, 0, 1, 2}, c.applied)
}

func TestDelegate_EmptyBoundaries(t *testing.T) {
	c := &counter{}
	d := newCounterDelegate(c, 0)

	assert.Equal(t, DefaultCapacity, d.Capacity())
	assert.Equal(t, -1, d.Cursor())
	assert.False(t, d.Undo())
	assert.False(t, d.Redo())
	assert.False(t, d.CanUndo())
	assert.False(t, d.CanRedo())
	assert.Empty(t, c.applied)
}

func TestDelegate_RecordTruncatesRedoBranch(t *testing.T) {
	c := &counter{}
	d := newCounterDelegate(c, 10)
	for i := 0; i < 4; i++ {
		c.value = i
		d.Record()
	}
	d.Undo()
	d.Undo()
	assert.True(t, d.CanRedo())

	c.value = 42
	d.Record()

	assert.False(t, d.CanRedo())
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 2, d.Cursor())
	d.Undo()
	assert.Equal(t, 1, c.value)
}

func TestDelegate_EvictsOldest(t *testing.T) {
	c := &counter{}
	d := newCounterDelegate(c, 3)
	for i := 0; i < 5; i++ {
		c.value = i
		d.Record()
	}
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 2, d.Cursor())

	for d.Undo() {
	}
	assert.Equal(t, 2, c.value, "oldest surviving entry")
}

func TestDelegate_SetCapacityShrinks(t *testing.T) {
	c := &counter{}
	d := newCounterDelegate(c, 10)
	for i := 0; i < 6; i++ {
		c.value = i
		d.Record()
	}
	d.SetCapacity(2)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 1, d.Cursor())
	require.True(t, d.Undo())
	assert.Equal(t, 4, c.value)
}

func TestDelegate_ClearOptions(t *testing.T) {
	tests := []struct {
		name        string
		recordAfter bool
		wantLen     int
	}{
		{"plain clear", false, 0},
		{"record after clear", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &counter{}
			var cleared []int
			opts := []Option[int]{WithClear(func(v int) { cleared = append(cleared, v) })}
			if tt.recordAfter {
				opts = append(opts, WithRecordAfterClear[int]())
			}
			d := newCounterDelegate(c, 10, opts...)
			d.Record()
			c.value = 7
			d.Record()

			d.Clear()
			assert.Equal(t, []int{0, 7}, cleared)
			assert.Equal(t, tt.wantLen, d.Len())
			assert.False(t, d.Undo())
		})
	}
}

func TestDelegate_SeparateRedoCallback(t *testing.T) {
	c := &counter{}
	var redone []int
	d := newCounterDelegate(c, 10, WithRedo(func(v int) { redone = append(redone, v) }))
	d.Record()
	c.value = 5
	d.Record()

	d.Undo()
	d.Redo()
	assert.Equal(t, []int{0}, c.applied)
	assert.Equal(t, []int{5}, redone)
	assert.Equal(t, 5, d.Latest())
}

func TestNew_PanicsWithoutCallbacks(t *testing.T) {
	assert.Panics(t, func() { New[int](nil, func(int) {}, 1) })
	assert.Panics(t, func() { New(func() int { return 0 }, nil, 1) })
}
