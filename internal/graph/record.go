package graph

import (
	"encoding/json"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// NodeRecord is the persisted form of one node. Connection indices refer to
// positions in the same record list, so forward references are allowed.
type NodeRecord struct {
	Type           string                  `json:"type"`
	Position       circuit.Point           `json:"position"`
	Args           json.RawMessage         `json:"args,omitempty"`
	InTypes        []transition.Type       `json:"in_types"`
	OutTypes       []transition.Type       `json:"out_types"`
	InStates       []transition.Transition `json:"in_states"`
	OutStates      []transition.Transition `json:"out_states"`
	StatePending   []bool                  `json:"state_pending"`
	InConnections  []*ConnectionRecord     `json:"in_connections"`
	OutConnections []*ConnectionRecord     `json:"out_connections"`
}

// ConnectionRecord points at the port on the far side of an edge. A nil entry
// means the port was unconnected.
type ConnectionRecord struct {
	NodeIndex int             `json:"node_index"`
	PortIndex int             `json:"port_index"`
	Vertices  []circuit.Point `json:"vertices,omitempty"`
}

func (c *ConnectionRecord) clone() *ConnectionRecord {
	if c == nil {
		return nil
	}
	out := *c
	if c.Vertices != nil {
		out.Vertices = append([]circuit.Point(nil), c.Vertices...)
	}
	return &out
}

// Clone returns a deep copy of r.
func (r NodeRecord) Clone() NodeRecord {
	out := r
	if r.Args != nil {
		out.Args = append(json.RawMessage(nil), r.Args...)
	}
	out.InTypes = append([]transition.Type(nil), r.InTypes...)
	out.OutTypes = append([]transition.Type(nil), r.OutTypes...)
	out.InStates = append([]transition.Transition(nil), r.InStates...)
	out.OutStates = append([]transition.Transition(nil), r.OutStates...)
	out.StatePending = append([]bool(nil), r.StatePending...)
	out.InConnections = make([]*ConnectionRecord, len(r.InConnections))
	for i, c := range r.InConnections {
		out.InConnections[i] = c.clone()
	}
	out.OutConnections = make([]*ConnectionRecord, len(r.OutConnections))
	for i, c := range r.OutConnections {
		out.OutConnections[i] = c.clone()
	}
	return out
}

// CloneRecords deep-copies a record list.
func CloneRecords(rs []NodeRecord) []NodeRecord {
	if rs == nil {
		return nil
	}
	out := make([]NodeRecord, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// recordNode captures n. Connections are mapped through index; edges to nodes
// that index does not know about are dropped together with the state they
// carried. An args error still yields a usable record without args.
func recordNode(n *circuit.Node, index map[*circuit.Node]int) (NodeRecord, error) {
	args, err := n.Args()
	rec := NodeRecord{
		Type:           n.Type(),
		Position:       n.Position,
		Args:           args,
		InTypes:        n.InputTypes(),
		OutTypes:       n.OutputTypes(),
		InStates:       n.InputStates(),
		OutStates:      n.OutputStates(),
		StatePending:   make([]bool, n.OutputCount()),
		InConnections:  make([]*ConnectionRecord, n.InputCount()),
		OutConnections: make([]*ConnectionRecord, n.OutputCount()),
	}

	for i, p := range n.Inputs() {
		c := p.Connection()
		if c == nil || c.Source() == nil {
			continue
		}
		far, ok := index[c.Source().Node()]
		if !ok {
			rec.InStates[i] = transition.MustNull(p.Type())
			continue
		}
		rec.InConnections[i] = &ConnectionRecord{NodeIndex: far, PortIndex: c.Source().Index(), Vertices: c.StoredLineEdges()}
	}
	for i, p := range n.Outputs() {
		c := p.Connection()
		if c == nil || c.Target() == nil {
			continue
		}
		far, ok := index[c.Target().Node()]
		if !ok {
			continue
		}
		rec.StatePending[i] = p.Pending()
		rec.OutConnections[i] = &ConnectionRecord{NodeIndex: far, PortIndex: c.Target().Index(), Vertices: c.StoredLineEdges()}
	}
	return rec, err
}

// withoutKinds removes records whose type matches skip and remaps the
// remaining connection indices. Edges into removed records are cleared, the
// input side falling back to a null state.
func withoutKinds(records []NodeRecord, skip func(kind string) bool) []NodeRecord {
	remap := make(map[int]int, len(records))
	kept := make([]NodeRecord, 0, len(records))
	for i, r := range records {
		if skip(r.Type) {
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, r.Clone())
	}
	if len(kept) == len(records) {
		return kept
	}
	for ri := range kept {
		r := &kept[ri]
		for i, c := range r.InConnections {
			if c == nil {
				continue
			}
			if idx, ok := remap[c.NodeIndex]; ok {
				c.NodeIndex = idx
				continue
			}
			r.InConnections[i] = nil
			if i < len(r.InTypes) && i < len(r.InStates) {
				if v, err := transition.Null(r.InTypes[i]); err == nil {
					r.InStates[i] = v
				}
			}
		}
		for i, c := range r.OutConnections {
			if c == nil {
				continue
			}
			if idx, ok := remap[c.NodeIndex]; ok {
				c.NodeIndex = idx
				continue
			}
			r.OutConnections[i] = nil
			if i < len(r.StatePending) {
				r.StatePending[i] = false
			}
		}
	}
	return kept
}
