package circuit

import (
	"encoding/json"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// PortSpec declares the default port layout of a node kind.
type PortSpec struct {
	InputNames  []string
	InputTypes  []transition.Type
	OutputNames []string
	OutputTypes []transition.Type
}

// StateChange describes one input write delivered to a node's update rule.
// Index is -1 for the synthetic update some nodes request after initialization.
type StateChange struct {
	Index   int
	State   transition.Transition
	Changed bool
}

// IsNull reports whether the written value is null.
func (c StateChange) IsNull() bool { return c.State.IsNull() }

// Behavior is the per-kind update rule held by a Node.
type Behavior interface {
	// Ports returns the current port layout. Dynamic kinds may return a
	// different layout after their args change; call Node.Resize afterwards.
	Ports() PortSpec
	// StateUpdate reads the inputs and writes the outputs of n.
	StateUpdate(n *Node, change StateChange)
}

// ArgsBehavior persists node-specific data beyond port topology.
type ArgsBehavior interface {
	MarshalArgs() (json.RawMessage, error)
	UnmarshalArgs(data json.RawMessage) error
}

// OutputInitializer supplies output states for freshly built ports.
type OutputInitializer interface {
	InitialOutputs(types []transition.Type) []transition.Transition
}

// Initializer runs once the ports exist, before the node goes live.
type Initializer interface {
	OnAfterInit(n *Node)
}

// ArgsApplied runs after args were restored and the port layout refreshed.
type ArgsApplied interface {
	OnAfterSetArgs(n *Node)
}

// InitialUpdater asks for one StateUpdate with Index -1 when the node goes live.
type InitialUpdater interface {
	WantsInitialUpdate() bool
}

// ReplayHook runs after a saved graph was wired, before pending outputs replay.
type ReplayHook interface {
	OnBeforeReplayPending(n *Node)
}

// Remover runs first in the removal sequence.
type Remover interface {
	OnRemove(n *Node)
}

// Settable accepts values from outside the circuit, e.g. a switch toggled by
// a player or an API call.
type Settable interface {
	SetValue(n *Node, port int, v transition.Transition) error
}
