package script

import (
	"context"
	"encoding/json"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Kind is the registry name of the scripted node.
const Kind = "Script"

const defaultTimeout = time.Second

// DefaultSource is the script a new node starts with.
const DefaultSource = `name = "AND Gate"
input_list = {"A", "B"}
output_list = {"Y"}
input_types = {"Bool", "Bool"}
output_types = {"Bool"}
is_async = false
auto_state_update_after_init = true

function state_update(inputs, index, state, is_changed, is_disconnected)
  output.apply({inputs[1] == true and inputs[2] == true})
end
`

// Register adds the Script kind to reg. Async scripts run on runner; with a
// nil runner they run on the tick goroutine like sync ones.
func Register(reg *circuit.Registry, runner *Runner) {
	reg.Register(Kind, func() circuit.Behavior { return New(runner) })
}

// Node is the behavior of a scripted node.
type Node struct {
	runner *Runner

	source string
	info   FieldInfo
	vm     *vm
	err    error

	started bool
	gen     uint64
	busy    bool
	pending []pendingCall
}

type args struct {
	Source string `json:"source"`
}

// New returns a Script behavior running DefaultSource.
func New(runner *Runner) *Node {
	s := &Node{runner: runner}
	s.load(DefaultSource)
	if s.err != nil {
		panic(s.err)
	}
	return s
}

// Source returns the current script text, which may have failed to compile.
func (s *Node) Source() string { return s.source }

// Info returns the fields of the last script that compiled.
func (s *Node) Info() FieldInfo { return s.info }

// Err returns the last compile error, or nil.
func (s *Node) Err() error { return s.err }

// load compiles source and swaps in its VM. On failure the node keeps the
// previous port layout and stops running any script.
func (s *Node) load(source string) {
	s.source = source
	s.gen++
	s.started = false
	s.busy = false
	s.pending = nil
	if s.vm != nil {
		s.vm.close()
		s.vm = nil
	}
	v, err := newVM(source)
	if err != nil {
		s.err = err
		return
	}
	s.err = nil
	s.vm = v
	s.info = v.info
}

func (s *Node) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  s.info.Inputs,
		InputTypes:  s.info.InputTypes,
		OutputNames: s.info.Outputs,
		OutputTypes: s.info.OutputTypes,
	}
}

func (s *Node) InitialOutputs(types []transition.Type) []transition.Transition {
	return transition.Nulls(types)
}

func (s *Node) WantsInitialUpdate() bool { return true }

func (s *Node) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if s.vm == nil {
		return
	}
	states := n.InputStates()
	if ch.Index < 0 && !s.started {
		s.started = true
		s.dispatch(n, "init", func(v *vm) []lua.LValue {
			return []lua.LValue{v.inputs(states)}
		})
		if !s.info.AutoUpdate {
			return
		}
	}

	index, disconnected := -1, false
	if ch.Index >= 0 {
		index = ch.Index + 1
		disconnected = n.Input(ch.Index).Connection() == nil
	}
	s.dispatch(n, "state_update", func(v *vm) []lua.LValue {
		state := lua.LValue(lua.LNil)
		if ch.Index >= 0 {
			state = v.toLua(ch.State)
		}
		return []lua.LValue{v.inputs(states), lua.LNumber(index), state, lua.LBool(ch.Changed), lua.LBool(disconnected)}
	})
}

type pendingCall struct {
	fn string
	in func() []lua.LValue
}

// dispatch runs fn now for sync scripts. Async calls go through the runner
// one at a time per node, in order, and their results are applied on a later
// tick.
func (s *Node) dispatch(n *circuit.Node, fn string, build func(*vm) []lua.LValue) {
	v := s.vm
	in := func() []lua.LValue { return build(v) }

	if !s.info.Async || s.runner == nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
		b, err := v.call(ctx, fn, in)
		cancel()
		s.apply(n, fn, "sync", b, err)
		return
	}
	s.pending = append(s.pending, pendingCall{fn: fn, in: in})
	if !s.busy {
		s.submitNext(n)
	}
}

func (s *Node) submitNext(n *circuit.Node) {
	for len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]

		v, gen := s.vm, s.gen
		sched := n.Host().Scheduler
		ok := s.runner.Submit(func(ctx context.Context) {
			b, err := v.call(ctx, c.fn, c.in)
			sched.Post(func() {
				if gen != s.gen || n.Lifecycle() == circuit.Removed {
					metrics.ScriptJobs.WithLabelValues("async", "stale").Inc()
					return
				}
				s.busy = false
				s.apply(n, c.fn, "async", b, err)
				s.submitNext(n)
			})
		})
		if ok {
			s.busy = true
			return
		}
		metrics.ScriptJobs.WithLabelValues("async", "dropped").Inc()
		n.Logger().Warn("script queue full, call dropped", "node_type", "script", "fn", c.fn)
	}
}

func (s *Node) apply(n *circuit.Node, fn, mode string, b batch, err error) {
	for _, line := range b.prints {
		n.Logger().Info("script print", "node_type", "script", "script", s.info.Name, "msg", line)
		n.Host().Publish(event.Event{Kind: event.KindScriptPrinted, NodeType: n.Type(), Data: line})
	}
	if err != nil {
		metrics.ScriptJobs.WithLabelValues(mode, "error").Inc()
		n.Logger().Error("script call failed", "node_type", "script", "fn", fn, "err", err)
		return
	}
	metrics.ScriptJobs.WithLabelValues(mode, "ok").Inc()
	for _, w := range b.writes {
		n.Push(w.index, w.value)
	}
}

func (s *Node) timeout() time.Duration {
	if s.runner != nil {
		return s.runner.Timeout()
	}
	return defaultTimeout
}

func (s *Node) OnAfterSetArgs(n *circuit.Node) {
	if s.err != nil {
		n.Logger().Error("script compile failed", "node_type", "script", "err", s.err)
		return
	}
	if s.info.Async && s.runner == nil {
		n.Logger().Warn("no script runner, async script runs on the tick goroutine", "node_type", "script", "script", s.info.Name)
	}
	if n.Lifecycle() == circuit.Live {
		n.Refresh()
	}
}

// OnRemove runs terminate synchronously and releases the VM. Async results
// still in flight are ignored.
func (s *Node) OnRemove(n *circuit.Node) {
	s.gen++
	s.pending = nil
	if s.vm == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
	b, err := s.vm.call(ctx, "terminate", nil)
	cancel()
	s.apply(n, "terminate", "sync", batch{prints: b.prints}, err)
	s.vm.close()
	s.vm = nil
}

func (s *Node) MarshalArgs() (json.RawMessage, error) {
	return json.Marshal(args{Source: s.source})
}

func (s *Node) UnmarshalArgs(data json.RawMessage) error {
	var a args
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Source == "" {
		a.Source = DefaultSource
	}
	s.load(a.Source)
	return nil
}
