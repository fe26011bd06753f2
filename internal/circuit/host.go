package circuit

import (
	"log/slog"

	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/scheduler"
)

// Host carries the services a graph and its nodes share: the tick scheduler,
// a logger and the event bus. One Host is passed explicitly to everything that
// needs it; there are no process-wide singletons.
type Host struct {
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger
	Bus       *event.Bus
	GraphID   string
}

// NewHost builds a Host. A nil logger falls back to slog.Default().
func NewHost(s *scheduler.Scheduler, logger *slog.Logger, bus *event.Bus, graphID string) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{Scheduler: s, Logger: logger.With("graph", graphID), Bus: bus, GraphID: graphID}
}

// Child returns a Host for a nested graph sharing the same scheduler and bus.
func (h *Host) Child(graphID string) *Host {
	return &Host{Scheduler: h.Scheduler, Logger: h.Logger.With("graph", graphID), Bus: h.Bus, GraphID: graphID}
}

// Publish stamps ev with the graph id and sends it to the bus.
func (h *Host) Publish(ev event.Event) {
	if h == nil || h.Bus == nil {
		return
	}
	ev.GraphID = h.GraphID
	h.Bus.Publish(ev)
}

func (h *Host) log() *slog.Logger {
	if h == nil || h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
