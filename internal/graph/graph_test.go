package graph_test

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
	"github.com/gyaneshwarpardhi/circuitflow/internal/scheduler"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// pass forwards its single Bool input and carries an optional label as args.
type pass struct {
	Label string `json:"label"`
}

func (p *pass) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputTypes:  []transition.Type{transition.Bool},
		OutputTypes: []transition.Type{transition.Bool},
	}
}

func (p *pass) StateUpdate(n *circuit.Node, _ circuit.StateChange) {
	n.Push(0, n.Input(0).State())
}

func (p *pass) MarshalArgs() (json.RawMessage, error) {
	if p.Label == "" {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *pass) UnmarshalArgs(data json.RawMessage) error { return json.Unmarshal(data, p) }

func newGraph(t *testing.T, opts ...graph.Option) *graph.Graph {
	t.Helper()
	reg := circuit.NewRegistry()
	reg.Register("pass", func() circuit.Behavior { return &pass{} })
	host := circuit.NewHost(scheduler.New(), nil, event.NewBus(), t.Name())
	return graph.New(host, reg, opts...)
}

func addPass(t *testing.T, g *graph.Graph, x float64) *circuit.Node {
	t.Helper()
	n, err := g.AddNode("pass", circuit.Point{X: x, Y: 2})
	require.NoError(t, err)
	return n
}

func settle(g *graph.Graph) { g.Host().Scheduler.RunUntilIdle(50) }

func passRecord(in, out []*graph.ConnectionRecord) graph.NodeRecord {
	return graph.NodeRecord{
		Type:           "pass",
		InTypes:        []transition.Type{transition.Bool},
		OutTypes:       []transition.Type{transition.Bool},
		InConnections:  in,
		OutConnections: out,
	}
}

func assertSameRecords(t *testing.T, want, got []graph.NodeRecord) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Type, g.Type, "record %d type", i)
		assert.Equal(t, w.Position, g.Position, "record %d position", i)
		assert.Equal(t, string(w.Args), string(g.Args), "record %d args", i)
		assert.Equal(t, w.InTypes, g.InTypes, "record %d in types", i)
		assert.Equal(t, w.OutTypes, g.OutTypes, "record %d out types", i)
		assert.Equal(t, w.StatePending, g.StatePending, "record %d pending", i)
		assert.Equal(t, w.InConnections, g.InConnections, "record %d in edges", i)
		assert.Equal(t, w.OutConnections, g.OutConnections, "record %d out edges", i)
		require.Len(t, g.InStates, len(w.InStates))
		for j := range w.InStates {
			assert.True(t, w.InStates[j].Equal(g.InStates[j]), "record %d in state %d", i, j)
		}
		require.Len(t, g.OutStates, len(w.OutStates))
		for j := range w.OutStates {
			assert.True(t, w.OutStates[j].Equal(g.OutStates[j]), "record %d out state %d", i, j)
		}
	}
}

func TestSerialize_RoundTripWithForwardEdge(t *testing.T) {
	g := newGraph(t)
	nodes := make([]*circuit.Node, 4)
	for i := range nodes {
		nodes[i] = addPass(t, g, float64(i))
	}
	nodes[0].Behavior().(*pass).Label = "first"

	_, err := g.Connect(nodes[0].Output(0), nodes[2].Input(0))
	require.NoError(t, err)
	c, err := g.Connect(nodes[3].Output(0), nodes[1].Input(0))
	require.NoError(t, err)
	pts := []circuit.Point{{X: 1}, {X: 2, Y: 3}, {X: 4}}
	require.NoError(t, c.SetLineEdges(pts))
	settle(g)

	recs := g.Serialize()
	require.Len(t, recs, 4)
	assert.Equal(t, &graph.ConnectionRecord{NodeIndex: 3, PortIndex: 0, Vertices: pts}, recs[1].InConnections[0])
	assert.Equal(t, 1, recs[3].OutConnections[0].NodeIndex)
	assert.JSONEq(t, `{"label":"first"}`, string(recs[0].Args))

	data, err := json.Marshal(recs)
	require.NoError(t, err)
	var back []graph.NodeRecord
	require.NoError(t, json.Unmarshal(data, &back))

	g2 := newGraph(t)
	require.NoError(t, g2.ApplySerialized(back))
	assertSameRecords(t, recs, g2.Serialize())

	src := g2.Node(1).Input(0).Connection().Source()
	assert.Same(t, g2.Node(3).Output(0), src)
	assert.Equal(t, pts, g2.Node(1).Input(0).Connection().LineEdges())
	assert.Equal(t, "first", g2.Node(0).Behavior().(*pass).Label)
}

func TestApplySerialized_SignalsFlowAfterLoad(t *testing.T) {
	g := newGraph(t)
	a, b := addPass(t, g, 0), addPass(t, g, 1)
	_, err := g.Connect(a.Output(0), b.Input(0))
	require.NoError(t, err)
	settle(g)

	g2 := newGraph(t)
	require.NoError(t, g2.ApplySerialized(g.Serialize()))
	a2, b2 := g2.Node(0), g2.Node(1)
	assert.Equal(t, circuit.Live, a2.Lifecycle())

	require.NoError(t, a2.Input(0).SetState(transition.OfBool(true)))
	settle(g2)
	assert.True(t, b2.Output(0).State().Truthy())
}

func TestApplySerialized_DropsOutOfRangeEdge(t *testing.T) {
	before := testutil.ToFloat64(metrics.EdgesDropped)
	records := []graph.NodeRecord{
		passRecord([]*graph.ConnectionRecord{nil}, []*graph.ConnectionRecord{{NodeIndex: 5, PortIndex: 0}}),
		passRecord([]*graph.ConnectionRecord{nil}, []*graph.ConnectionRecord{{NodeIndex: 2, PortIndex: 0}}),
		passRecord([]*graph.ConnectionRecord{{NodeIndex: 1, PortIndex: 0}}, []*graph.ConnectionRecord{nil}),
	}

	g := newGraph(t)
	require.NoError(t, g.ApplySerialized(records))

	assert.Equal(t, 3, g.Len())
	assert.Nil(t, g.Node(0).Output(0).Connection())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EdgesDropped))

	c := g.Node(2).Input(0).Connection()
	require.NotNil(t, c, "the valid edge still loads")
	assert.Same(t, g.Node(1).Output(0), c.Source())
}

func TestApplySerialized_BadGatewayArgsFallBackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		kind string
		args string
	}{
		{"input none type", graph.KindExternalInput, `{"types":["None"]}`},
		{"output none type", graph.KindExternalOutput, `{"types":["Bool","None"]}`},
		{"too many ports", graph.KindExternalInput,
			`{"types":["Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool","Bool"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t)
			require.NotPanics(t, func() {
				require.NoError(t, g.ApplySerialized([]graph.NodeRecord{{Type: tt.kind, Args: json.RawMessage(tt.args)}}))
			})
			require.Equal(t, 1, g.Len())
			n := g.Node(0)
			assert.Equal(t, 2, n.InputCount()+n.OutputCount(), "default gateway has two Bool ports")
		})
	}
}

func TestGateways_RejectNoneTypeArgs(t *testing.T) {
	g := newGraph(t, graph.WithGateways(1, 1))
	in := g.ExternalInputNode()

	assert.Error(t, in.ApplyArgs(json.RawMessage(`{"types":["None"]}`)))
	assert.Equal(t, []transition.Type{transition.Bool}, in.OutputTypes())

	require.NoError(t, in.ApplyArgs(json.RawMessage(`{"types":["Int","Float"]}`)))
	assert.Equal(t, []transition.Type{transition.Int, transition.Float}, in.OutputTypes())
}

func TestApplySerialized_CountMismatchBlocksUntilComplete(t *testing.T) {
	records := []graph.NodeRecord{
		passRecord([]*graph.ConnectionRecord{nil}, []*graph.ConnectionRecord{{NodeIndex: 1, PortIndex: 0}}),
		passRecord([]*graph.ConnectionRecord{{NodeIndex: 0, PortIndex: 0}, nil}, []*graph.ConnectionRecord{nil}),
	}

	g := newGraph(t)
	require.NoError(t, g.ApplySerialized(records))

	in := g.Node(1).Input(0)
	assert.Nil(t, in.Connection(), "edge into a mismatched group is dropped")
	assert.Nil(t, g.Node(0).Output(0).Connection())
	assert.False(t, in.BlockConnect(), "blocking is lifted once loading completes")

	_, err := g.Connect(g.Node(0).Output(0), in)
	require.NoError(t, err)
	assert.NotNil(t, in.Connection())
}

func TestApplySerialized_UnknownTypeIsSkipped(t *testing.T) {
	records := []graph.NodeRecord{
		passRecord([]*graph.ConnectionRecord{nil}, []*graph.ConnectionRecord{{NodeIndex: 2, PortIndex: 0}}),
		{Type: "Nope"},
		passRecord([]*graph.ConnectionRecord{{NodeIndex: 0, PortIndex: 0}}, []*graph.ConnectionRecord{{NodeIndex: 1, PortIndex: 0}}),
	}

	g := newGraph(t)
	err := g.ApplySerialized(records)
	assert.ErrorIs(t, err, graph.ErrPartialLoad)

	require.Equal(t, 2, g.Len())
	assert.Same(t, g.Node(1).Input(0), g.Node(0).Output(0).Connection().Target())
	assert.Nil(t, g.Node(1).Output(0).Connection())
}

func TestSerializeSubset_AndAppend(t *testing.T) {
	g := newGraph(t)
	a, b, c := addPass(t, g, 0), addPass(t, g, 1), addPass(t, g, 2)
	_, err := g.Connect(a.Output(0), b.Input(0))
	require.NoError(t, err)
	_, err = g.Connect(b.Output(0), c.Input(0))
	require.NoError(t, err)
	settle(g)

	recs, err := g.SerializeSubset([]*circuit.Node{b, c})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Nil(t, recs[0].InConnections[0], "edge from outside the subset is dropped")
	assert.True(t, recs[0].InStates[0].IsNull())
	assert.Equal(t, 1, recs[0].OutConnections[0].NodeIndex)

	pasted, err := g.AppendSerialized(recs, circuit.Point{X: 5, Y: 5})
	require.NoError(t, err)
	require.Len(t, pasted, 2)
	assert.Equal(t, 5, g.Len())
	assert.Equal(t, circuit.Point{X: 6, Y: 7}, pasted[0].Position)
	assert.Same(t, pasted[1].Input(0), pasted[0].Output(0).Connection().Target())
	assert.Same(t, c.Input(0), b.Output(0).Connection().Target(), "originals untouched")

	other := newGraph(t)
	stranger := addPass(t, other, 0)
	_, err = g.SerializeSubset([]*circuit.Node{stranger})
	assert.ErrorIs(t, err, graph.ErrNotInGraph)
}

func TestHistory_UndoRedo(t *testing.T) {
	g := newGraph(t, graph.WithoutInitialRecord())
	g.RecordHistory()
	addPass(t, g, 0)
	g.RecordHistory()

	require.True(t, g.Undo())
	assert.Equal(t, 0, g.Len())

	settle(g)
	assert.Equal(t, 2, g.History().Len(), "a pending change must not be recorded over the undone state")
	assert.True(t, g.History().CanRedo())

	require.True(t, g.Redo())
	require.Equal(t, 1, g.Len())
	assert.Equal(t, "pass", g.Node(0).Type())

	require.True(t, g.Undo())
	assert.False(t, g.Undo(), "undo at the oldest snapshot is a no-op")
	assert.Equal(t, 0, g.Len())
}

func TestHistory_RecordVoidsPendingChange(t *testing.T) {
	g := newGraph(t, graph.WithoutInitialRecord())
	calls := 0
	g.OnChanged(func() { calls++ })

	g.RecordHistory()
	addPass(t, g, 0)
	g.RecordHistory()
	g.Host().Scheduler.Tick()

	assert.Equal(t, 2, g.History().Len())
	assert.Equal(t, 1, calls)
	require.True(t, g.Undo())
	assert.Equal(t, 0, g.Len())
}

func TestHistory_CoalescesChangesPerTick(t *testing.T) {
	g := newGraph(t)
	require.Equal(t, 1, g.History().Len())
	calls := 0
	g.OnChanged(func() { calls++ })

	for i := 0; i < 3; i++ {
		addPass(t, g, float64(i))
	}
	g.Host().Scheduler.Tick()

	assert.Equal(t, 2, g.History().Len())
	assert.Equal(t, 1, calls)
}

func TestHistory_Block(t *testing.T) {
	g := newGraph(t)
	calls := 0
	g.OnChanged(func() { calls++ })

	g.BlockHistory()
	addPass(t, g, 0)
	g.Host().Scheduler.Tick()
	assert.Equal(t, 1, g.History().Len())
	assert.Equal(t, 1, calls)

	g.UnblockHistory()
	addPass(t, g, 1)
	g.Host().Scheduler.Tick()
	assert.Equal(t, 2, g.History().Len())
}

func TestHistory_CapacityBound(t *testing.T) {
	g := newGraph(t, graph.WithHistoryCapacity(3))
	for i := 0; i < 5; i++ {
		addPass(t, g, float64(i))
		g.Host().Scheduler.Tick()
	}
	assert.Equal(t, 3, g.History().Len())

	g.SetHistoryCapacity(2)
	assert.Equal(t, 2, g.History().Len())
}

func TestRemoveNode(t *testing.T) {
	g := newGraph(t)
	a, b := addPass(t, g, 0), addPass(t, g, 1)
	_, err := g.Connect(a.Output(0), b.Input(0))
	require.NoError(t, err)

	require.NoError(t, g.RemoveNode(a))
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, -1, g.IndexOf(a))
	assert.Nil(t, b.Input(0).Connection())
	assert.ErrorIs(t, g.RemoveNode(a), graph.ErrNotInGraph)
}

func TestGateways(t *testing.T) {
	g := newGraph(t, graph.WithGateways(2, 1))
	require.Equal(t, 2, g.Len())
	in, out := g.ExternalInputNode(), g.ExternalOutputNode()
	require.NotNil(t, in)
	require.NotNil(t, out)
	assert.Equal(t, 2, in.OutputCount())
	assert.Equal(t, 1, out.InputCount())

	relay := addPass(t, g, 0)
	_, err := g.Connect(in.Output(0), relay.Input(0))
	require.NoError(t, err)
	_, err = g.Connect(relay.Output(0), out.Input(0))
	require.NoError(t, err)

	var seen []transition.Transition
	g.OnExternalOutput(func(i int, v transition.Transition) {
		if i == 0 {
			seen = append(seen, v)
		}
	})
	settle(g)

	require.NoError(t, g.SetExternalInput(0, transition.OfBool(true)))
	settle(g)
	require.NotEmpty(t, seen)
	assert.True(t, seen[len(seen)-1].Truthy())
	assert.True(t, g.ExternalOutputStates()[0].Truthy())

	assert.ErrorIs(t, g.RemoveNode(in), graph.ErrGatewayRemoval)
	assert.ErrorIs(t, g.SetExternalInput(7, transition.OfBool(true)), graph.ErrGatewayIndex)

	g.Reset()
	assert.Equal(t, 2, g.Len())
	assert.Nil(t, in.Output(0).Connection())

	require.NoError(t, g.ApplySerialized(g.Serialize()))
	assert.Equal(t, 2, g.Len())
	ins, outs := g.GatewayTypes()
	assert.Len(t, ins, 2)
	assert.Len(t, outs, 1)
}

func TestGateways_Disabled(t *testing.T) {
	g := newGraph(t)
	assert.ErrorIs(t, g.SetExternalInput(0, transition.OfBool(true)), graph.ErrGatewaysDisabled)
	assert.Equal(t, 0, g.Len())
}

func TestGateways_PasteIgnoresGatewayRecords(t *testing.T) {
	g := newGraph(t, graph.WithGateways(1, 1))
	relay := addPass(t, g, 0)
	_, err := g.Connect(g.ExternalInputNode().Output(0), relay.Input(0))
	require.NoError(t, err)
	settle(g)

	pasted, err := g.AppendSerialized(g.Serialize(), circuit.Point{})
	require.NoError(t, err)
	require.Len(t, pasted, 1)
	assert.Equal(t, "pass", pasted[0].Type())
	assert.Nil(t, pasted[0].Input(0).Connection())
	assert.Equal(t, 4, g.Len())
}

func TestConnectIndex_Errors(t *testing.T) {
	g := newGraph(t)
	addPass(t, g, 0)
	addPass(t, g, 1)

	_, err := g.ConnectIndex(0, 0, 7, 0)
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
	_, err = g.ConnectIndex(0, 3, 1, 0)
	assert.ErrorIs(t, err, graph.ErrPortOutOfRange)
	_, err = g.ConnectIndex(0, 0, 1, 0)
	assert.NoError(t, err)
}
