package nodes

import (
	"encoding/json"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// display shows the last value it received.
type display struct {
	Type transition.Type `json:"type"`

	last transition.Transition
}

func (d *display) Ports() circuit.PortSpec {
	return circuit.PortSpec{InputNames: []string{"A"}, InputTypes: []transition.Type{d.Type}}
}

func (d *display) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if ch.Index < 0 {
		d.last = n.Input(0).State()
		return
	}
	d.last = ch.State
}

func (d *display) WantsInitialUpdate() bool { return true }

// Last returns the value currently shown.
func (d *display) Last() transition.Transition { return d.last }

func (d *display) MarshalArgs() (json.RawMessage, error) { return json.Marshal(d) }

func (d *display) UnmarshalArgs(data json.RawMessage) error {
	if err := json.Unmarshal(data, d); err != nil {
		return err
	}
	d.Type = valueType(d.Type, transition.Bool)
	return nil
}

// sounder plays an audio cue when its input rises.
type sounder struct {
	Audio int `json:"audio"`
}

func (s *sounder) Ports() circuit.PortSpec {
	return circuit.PortSpec{InputNames: []string{"A"}, InputTypes: []transition.Type{transition.Bool}}
}

func (s *sounder) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if ch.Index == 0 && ch.Changed && ch.State.Truthy() {
		n.Sound(s.Audio)
	}
}

func (s *sounder) MarshalArgs() (json.RawMessage, error) { return json.Marshal(s) }

func (s *sounder) UnmarshalArgs(data json.RawMessage) error { return json.Unmarshal(data, s) }
