package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// valueSource is a settable constant: Switch, IntSwitch, FloatSwitch and
// StringInput differ only in the type they hold.
type valueSource struct {
	typ   transition.Type
	value transition.Transition
}

type valueArgs struct {
	Value transition.Transition `json:"value"`
}

func newValueSource(t transition.Type) *valueSource {
	return &valueSource{typ: t, value: transition.MustDefault(t)}
}

func (s *valueSource) Ports() circuit.PortSpec {
	return circuit.PortSpec{OutputNames: []string{"Y"}, OutputTypes: []transition.Type{s.typ}}
}

func (s *valueSource) StateUpdate(*circuit.Node, circuit.StateChange) {}

func (s *valueSource) InitialOutputs([]transition.Type) []transition.Transition {
	return []transition.Transition{s.value}
}

func (s *valueSource) OnAfterSetArgs(n *circuit.Node) { n.Push(0, s.value) }

// Value returns the held value.
func (s *valueSource) Value() transition.Transition { return s.value }

// SetValue converts v to the source's type and pushes it. A Pulse written to
// a Bool source toggles it.
func (s *valueSource) SetValue(n *circuit.Node, port int, v transition.Transition) error {
	if port != 0 {
		return fmt.Errorf("%s: port %d out of range", n.Type(), port)
	}
	if s.typ == transition.Bool && v.Type() == transition.Pulse {
		v = transition.OfBool(!s.value.Truthy())
	}
	cv, err := transition.Convert(v, s.typ)
	if err != nil {
		return err
	}
	if cv.Equal(s.value) {
		return nil
	}
	s.value = cv
	n.Push(0, cv)
	n.ReportChanges()
	return nil
}

func (s *valueSource) MarshalArgs() (json.RawMessage, error) {
	return json.Marshal(valueArgs{Value: s.value})
}

func (s *valueSource) UnmarshalArgs(data json.RawMessage) error {
	var a valueArgs
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Value.IsNone() {
		return nil
	}
	v, err := transition.Convert(a.Value, s.typ)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	s.value = v
	return nil
}

const defaultClockPeriod = 30

// clock toggles its output every Period ticks while the node is live.
type clock struct {
	Period int `json:"period"`

	on    bool
	count int
	gen   uint64
}

func (c *clock) Ports() circuit.PortSpec {
	return circuit.PortSpec{OutputNames: []string{"Y"}, OutputTypes: []transition.Type{transition.Bool}}
}

func (c *clock) InitialOutputs([]transition.Type) []transition.Transition {
	return []transition.Transition{transition.OfBool(c.on)}
}

func (c *clock) WantsInitialUpdate() bool { return true }

func (c *clock) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if ch.Index < 0 {
		c.start(n)
	}
}

func (c *clock) OnAfterSetArgs(n *circuit.Node) {
	c.Period = max(c.Period, 1)
	if n.Lifecycle() == circuit.Live {
		c.start(n)
	}
}

func (c *clock) OnRemove(*circuit.Node) { c.gen++ }

// start begins a fresh tick loop; older loops see a stale generation and stop.
func (c *clock) start(n *circuit.Node) {
	host := n.Host()
	if host == nil || host.Scheduler == nil {
		return
	}
	c.gen++
	gen := c.gen
	c.count = 0
	var step func()
	step = func() {
		if gen != c.gen {
			return
		}
		c.count++
		if c.count >= c.Period {
			c.count = 0
			c.on = !c.on
			n.Push(0, transition.OfBool(c.on))
		}
		host.Scheduler.Defer(step)
	}
	host.Scheduler.Defer(step)
}

func (c *clock) MarshalArgs() (json.RawMessage, error) { return json.Marshal(c) }

func (c *clock) UnmarshalArgs(data json.RawMessage) error { return json.Unmarshal(data, c) }
