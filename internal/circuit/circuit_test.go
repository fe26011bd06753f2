package circuit_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/scheduler"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// relay copies input i to output i and records every change it sees.
type relay struct {
	types   []transition.Type
	changes []circuit.StateChange
}

func (r *relay) Ports() circuit.PortSpec {
	return circuit.PortSpec{InputTypes: r.types, OutputTypes: r.types}
}

func (r *relay) StateUpdate(n *circuit.Node, c circuit.StateChange) {
	r.changes = append(r.changes, c)
	if c.Index >= 0 {
		n.Push(c.Index, c.State)
	}
}

func newHost() *circuit.Host {
	return circuit.NewHost(scheduler.New(), nil, event.NewBus(), "test")
}

func newRelay(h *circuit.Host, types ...transition.Type) (*circuit.Node, *relay) {
	if len(types) == 0 {
		types = []transition.Type{transition.Bool}
	}
	r := &relay{types: types}
	n := circuit.NewNode(h, "relay", r)
	n.Init()
	n.GoLive()
	return n, r
}

func link(t *testing.T, from, to *circuit.Node) *circuit.Connection {
	t.Helper()
	c, err := from.Output(0).LinkTo(to.Input(0), nil)
	require.NoError(t, err)
	return c
}

func TestConnection_DeferredPropagation(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, rb := newRelay(h)
	c := link(t, a, b)
	h.Scheduler.Tick() // initial catch-up flush
	rb.changes = nil
	flushes := c.Flushes()

	require.NoError(t, a.Output(0).SetState(transition.OfBool(true)))
	assert.True(t, a.Output(0).Pending())
	assert.False(t, b.Input(0).State().Truthy(), "target must not update in the same tick")

	h.Scheduler.Tick()
	assert.True(t, b.Input(0).State().Truthy())
	assert.False(t, a.Output(0).Pending())
	assert.Equal(t, flushes+1, c.Flushes())
}

func TestConnection_WritesCoalesceWithinTick(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h, transition.Int)
	b, rb := newRelay(h, transition.Int)
	c := link(t, a, b)
	h.Scheduler.Tick()
	rb.changes = nil
	before := c.Flushes()

	require.NoError(t, a.Output(0).SetState(transition.OfInt(1)))
	require.NoError(t, a.Output(0).SetState(transition.OfInt(2)))
	h.Scheduler.Tick()

	assert.Equal(t, before+1, c.Flushes())
	require.Len(t, rb.changes, 1)
	assert.True(t, rb.changes[0].State.Equal(transition.OfInt(2)))
	assert.True(t, rb.changes[0].Changed)
}

func TestConnection_ChainTakesOneTickPerHop(t *testing.T) {
	h := newHost()
	nodes := make([]*circuit.Node, 4)
	for i := range nodes {
		nodes[i], _ = newRelay(h)
	}
	for i := 0; i < len(nodes)-1; i++ {
		link(t, nodes[i], nodes[i+1])
	}
	h.Scheduler.RunUntilIdle(10)

	nodes[0].Push(0, transition.OfBool(true))
	for hop := 1; hop < len(nodes); hop++ {
		assert.False(t, nodes[hop].Input(0).State().Truthy(), "hop %d early", hop)
		h.Scheduler.Tick()
		assert.True(t, nodes[hop].Input(0).State().Truthy(), "hop %d late", hop)
	}
}

func TestConnection_DisconnectIsIdempotent(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)
	c := link(t, a, b)
	a.Push(0, transition.OfBool(true))
	h.Scheduler.RunUntilIdle(5)
	require.True(t, b.Input(0).State().Truthy())

	c.Disconnect()
	assert.NotPanics(t, c.Disconnect)

	assert.Nil(t, a.Output(0).Connection())
	assert.Nil(t, b.Input(0).Connection())
	assert.Nil(t, c.Source())
	assert.Nil(t, c.Target())
	assert.True(t, b.Input(0).State().Equal(transition.OfBool(false)))
}

func TestConnection_DisconnectVoidsInFlightFlush(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h, transition.Int)
	b, _ := newRelay(h, transition.Int)
	c := link(t, a, b)
	h.Scheduler.Tick()

	a.Push(0, transition.OfInt(9))
	c.Disconnect()
	h.Scheduler.Tick()

	assert.True(t, b.Input(0).State().Equal(transition.OfInt(0)))
}

func TestConnection_EndpointsBindOnce(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)
	c := circuit.NewConnection(h)

	require.NoError(t, c.SetSource(a.Output(0)))
	err := c.SetSource(b.Output(0))
	assert.ErrorIs(t, err, circuit.ErrAlreadyBound)
	assert.Same(t, a.Output(0), c.Source())
}

func TestConnection_TypeFixedByFirstEndpoint(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h, transition.Int)
	b, _ := newRelay(h, transition.Bool)
	c := circuit.NewConnection(h)

	require.NoError(t, c.SetSource(a.Output(0)))
	assert.ErrorIs(t, c.SetTarget(b.Input(0)), circuit.ErrTypeMismatch)

	_, err := a.Output(0).LinkTo(b.Input(0), nil)
	assert.ErrorIs(t, err, circuit.ErrTypeMismatch)
}

func TestConnection_LineEdges(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)
	b.Position = circuit.Point{X: 10, Y: 0}
	c := link(t, a, b)

	edges := c.LineEdges()
	require.Len(t, edges, 2)
	assert.Equal(t, a.Output(0).Position(), edges[0])
	assert.Equal(t, b.Input(0).Position(), edges[1])

	assert.Error(t, c.SetLineEdges([]circuit.Point{{X: 1}}))
	pts := []circuit.Point{{X: 1}, {X: 5, Y: 5}, {X: 9}}
	require.NoError(t, c.SetLineEdges(pts))
	assert.Equal(t, pts, c.LineEdges())
}

func TestLinkTo_ReplacesExistingConnection(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)
	d, _ := newRelay(h)
	first := link(t, a, b)

	second, err := a.Output(0).LinkTo(d.Input(0), nil)
	require.NoError(t, err)

	assert.True(t, first.Disconnected())
	assert.Nil(t, b.Input(0).Connection())
	assert.Same(t, second, a.Output(0).Connection())
}

func TestLinkTo_FromInputSide(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)

	c, err := b.Input(0).LinkTo(a.Output(0), nil)
	require.NoError(t, err)
	assert.Same(t, a.Output(0), c.Source())
	assert.Same(t, b.Input(0), c.Target())
}

func TestLinkTo_Rejects(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)

	_, err := a.Output(0).LinkTo(a.Input(0), nil)
	assert.ErrorIs(t, err, circuit.ErrSameNode)

	_, err = a.Output(0).LinkTo(b.Output(0), nil)
	assert.ErrorIs(t, err, circuit.ErrSameDirection)
}

func TestAcceptLink_BlockConnect(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)
	b.Input(0).SetBlockConnect(true)

	c, err := a.Output(0).LinkTo(b.Input(0), nil)
	require.NoError(t, err)

	assert.True(t, c.Disconnected())
	assert.Nil(t, a.Output(0).Connection())
	assert.Nil(t, b.Input(0).Connection())
}

func TestInputPort_ChangeFlagAndDeserializing(t *testing.T) {
	h := newHost()
	n, r := newRelay(h, transition.Int)
	in := n.Input(0)

	require.NoError(t, in.SetState(transition.OfInt(3)))
	require.NoError(t, in.SetState(transition.OfInt(3)))
	require.Len(t, r.changes, 2)
	assert.True(t, r.changes[0].Changed)
	assert.False(t, r.changes[1].Changed)

	in.SetDeserializing(true)
	require.NoError(t, in.SetState(transition.OfInt(4)))
	assert.Len(t, r.changes, 2)

	err := in.SetState(transition.OfBool(true))
	assert.True(t, errors.Is(err, circuit.ErrTypeMismatch))
}

func TestNode_RemoveSequence(t *testing.T) {
	h := newHost()
	a, _ := newRelay(h)
	b, _ := newRelay(h)
	c := link(t, a, b)

	removed := 0
	h.Bus.Subscribe(event.KindNodeRemoved, func(event.Event) { removed++ })

	var sawConnected bool
	b.OnRemoved(func(n *circuit.Node) {
		sawConnected = !c.Disconnected() || len(n.Inputs()) != 0
	})
	b.Remove()
	b.Remove()

	assert.False(t, sawConnected, "listeners must run after ports are disconnected and released")
	assert.Equal(t, circuit.Removed, b.Lifecycle())
	assert.Nil(t, a.Output(0).Connection())
	assert.Equal(t, 1, removed)
}

func TestNode_OnRemovedUnsubscribe(t *testing.T) {
	h := newHost()
	n, _ := newRelay(h)
	calls := 0
	unsub := n.OnRemoved(func(*circuit.Node) { calls++ })
	unsub()
	n.Remove()
	assert.Equal(t, 0, calls)
}

// sized has a configurable number of Bool inputs.
type sized struct{ n int }

func (s *sized) Ports() circuit.PortSpec {
	types := make([]transition.Type, s.n)
	for i := range types {
		types[i] = transition.Bool
	}
	return circuit.PortSpec{InputTypes: types, OutputTypes: []transition.Type{transition.Bool}}
}

func (s *sized) StateUpdate(*circuit.Node, circuit.StateChange) {}

func TestNode_ResizeKeepsSurvivingConnections(t *testing.T) {
	h := newHost()
	src, _ := newRelay(h)
	src2, _ := newRelay(h)
	s := &sized{n: 3}
	n := circuit.NewNode(h, "sized", s)
	n.GoLive()

	keep, err := src.Output(0).LinkTo(n.Input(0), nil)
	require.NoError(t, err)
	drop, err := src2.Output(0).LinkTo(n.Input(2), nil)
	require.NoError(t, err)

	s.n = 2
	n.Resize()

	assert.Equal(t, 2, n.InputCount())
	assert.False(t, keep.Disconnected())
	assert.True(t, drop.Disconnected())

	s.n = 4
	n.Resize()
	assert.Equal(t, 4, n.InputCount())
	assert.Equal(t, "in3", n.Input(3).Name())
}

func TestRegistry(t *testing.T) {
	reg := circuit.NewRegistry()
	reg.Register("relay", func() circuit.Behavior { return &relay{} })

	b, err := reg.New("relay")
	require.NoError(t, err)
	assert.IsType(t, &relay{}, b)

	_, err = reg.New("missing")
	assert.ErrorIs(t, err, circuit.ErrUnknownNodeType)

	assert.Panics(t, func() {
		reg.Register("relay", func() circuit.Behavior { return &relay{} })
	})
	assert.Equal(t, []string{"relay"}, reg.Types())
}
