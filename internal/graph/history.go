package graph

import "github.com/gyaneshwarpardhi/circuitflow/internal/undo"

// markDirty schedules one history record and change notification for the
// current tick. Further calls before the tick ends are absorbed.
func (g *Graph) markDirty() {
	if g.loading > 0 || g.dirty {
		return
	}
	g.dirty = true
	gen := g.dirtyGen
	g.host.Scheduler.Defer(func() { g.flushChanges(gen) })
}

func (g *Graph) flushChanges(gen uint64) {
	if gen != g.dirtyGen {
		return
	}
	g.dirty = false
	if g.historyBlocks == 0 {
		g.history.Record()
	}
	g.notifyChanged()
}

// RecordHistory snapshots the graph right away. A change still waiting to be
// recorded is covered by this snapshot, so its record is voided.
func (g *Graph) RecordHistory() {
	if g.dirty {
		g.dirtyGen++
		g.dirty = false
		g.notifyChanged()
	}
	g.history.Record()
}

// Undo restores the previous snapshot. It returns false at the oldest entry.
func (g *Graph) Undo() bool { return g.history.Undo() }

// Redo restores the next snapshot. It returns false at the newest entry.
func (g *Graph) Redo() bool { return g.history.Redo() }

// ClearHistory drops all snapshots and records the current state as the new base.
func (g *Graph) ClearHistory() { g.history.Clear() }

// BlockHistory stops coalesced changes from being recorded until the matching
// UnblockHistory. Calls nest.
func (g *Graph) BlockHistory() { g.historyBlocks++ }

func (g *Graph) UnblockHistory() {
	if g.historyBlocks > 0 {
		g.historyBlocks--
	}
}

// SetHistoryCapacity rebounds the history, evicting old entries if needed.
func (g *Graph) SetHistoryCapacity(n int) { g.history.SetCapacity(n) }

// History exposes the underlying delegate for inspection.
func (g *Graph) History() *undo.Delegate[[]NodeRecord] { return g.history }

// restore replaces the graph with a snapshot. A change still waiting to be
// recorded is voided so the redo branch survives.
func (g *Graph) restore(records []NodeRecord) {
	g.dirtyGen++
	g.dirty = false
	if err := g.replace(records); err != nil {
		g.logger.Warn("history snapshot restored partially", "err", err)
	}
	g.notifyChanged()
}
