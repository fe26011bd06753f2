package circuit

import (
	"fmt"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Direction tells inputs from outputs.
type Direction uint8

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "input"
	}
	return "output"
}

// Point is a 2D location used for node positions and connection geometry.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Port is the closed set {*InputPort, *OutputPort}.
type Port interface {
	Index() int
	Name() string
	Type() transition.Type
	State() transition.Transition
	Connection() *Connection
	Node() *Node
	Direction() Direction
	BlockConnect() bool
	SetBlockConnect(bool)
	Position() Point

	// LinkTo connects this port to target, creating a Connection when c is nil.
	LinkTo(target Port, c *Connection) (*Connection, error)
	// AcceptLink binds an offered connection to this port.
	AcceptLink(c *Connection) error
	// ClearConnection forgets the connection without disconnecting it.
	ClearConnection()

	isPort()
}

type port struct {
	index        int
	name         string
	typ          transition.Type
	state        transition.Transition
	conn         *Connection
	node         *Node
	blockConnect bool
}

func (p *port) Index() int                   { return p.index }
func (p *port) Name() string                 { return p.name }
func (p *port) Type() transition.Type        { return p.typ }
func (p *port) State() transition.Transition { return p.state }
func (p *port) Connection() *Connection      { return p.conn }
func (p *port) Node() *Node                  { return p.node }
func (p *port) BlockConnect() bool           { return p.blockConnect }
func (p *port) SetBlockConnect(b bool)       { p.blockConnect = b }
func (p *port) ClearConnection()             { p.conn = nil }
func (p *port) isPort()                      {}

func (p *port) checkType(v transition.Transition) error {
	if v.Type() != p.typ {
		return fmt.Errorf("%w: port %q is %s, value is %s", ErrTypeMismatch, p.name, p.typ, v.Type())
	}
	return nil
}

func (p *port) position(dx float64) Point {
	if p.node == nil {
		return Point{}
	}
	return Point{X: p.node.Position.X + dx, Y: p.node.Position.Y - float64(p.index)}
}

// resetValue is the value an input falls back to when it loses its source.
// Pulse resets to null so that a disconnect never fires a pulse.
func resetValue(t transition.Type) transition.Transition {
	if t == transition.Pulse {
		return transition.MustNull(t)
	}
	v, err := transition.Default(t)
	if err != nil {
		return transition.Transition{}
	}
	return v
}

// -----------------------------------------------------------------------
// InputPort
// -----------------------------------------------------------------------

// InputPort receives a state from at most one Connection and notifies its node.
type InputPort struct {
	port
	deserializing bool
}

func newInputPort(n *Node, index int, name string, t transition.Type) *InputPort {
	return &InputPort{port: port{index: index, name: name, typ: t, state: resetValue(t), node: n}}
}

func (p *InputPort) Direction() Direction { return In }
func (p *InputPort) Position() Point      { return p.position(-1) }

// Deserializing reports whether state writes are currently silent.
func (p *InputPort) Deserializing() bool     { return p.deserializing }
func (p *InputPort) SetDeserializing(b bool) { p.deserializing = b }

// SetState stores v and, unless the port is deserializing, tells the owning
// node whether the value actually changed.
func (p *InputPort) SetState(v transition.Transition) error {
	if err := p.checkType(v); err != nil {
		return err
	}
	changed := !p.state.Equal(v)
	p.state = v
	if p.deserializing || p.node == nil {
		return nil
	}
	p.node.inputChanged(StateChange{Index: p.index, State: v, Changed: changed})
	return nil
}

// SetType retypes the port, dropping a connection of the old type.
func (p *InputPort) SetType(t transition.Type) {
	if t == p.typ {
		return
	}
	if p.conn != nil {
		p.conn.Disconnect()
	}
	p.typ = t
	p.state = resetValue(t)
}

// LinkTo connects this input to an output port. Any existing connection on
// this input is disconnected first; the output decides whether to accept.
func (p *InputPort) LinkTo(target Port, c *Connection) (*Connection, error) {
	out, ok := target.(*OutputPort)
	if !ok {
		return nil, ErrSameDirection
	}
	c, err := prepareLink(out, p, c)
	if err != nil {
		return nil, err
	}
	if p.conn != nil && p.conn != c {
		p.conn.Disconnect()
	}
	p.conn = c
	if err := c.SetTarget(p); err != nil {
		p.conn = nil
		return nil, err
	}
	if err := out.AcceptLink(c); err != nil {
		p.conn = nil
		return nil, err
	}
	return c, nil
}

// AcceptLink drops any existing connection and binds c as this port's source
// link. A port with BlockConnect set immediately disconnects c instead.
func (p *InputPort) AcceptLink(c *Connection) error {
	if p.conn != nil && p.conn != c {
		p.conn.Disconnect()
	}
	p.conn = c
	if err := c.SetTarget(p); err != nil {
		p.conn = nil
		return err
	}
	if p.blockConnect {
		c.Disconnect()
	}
	return nil
}

// -----------------------------------------------------------------------
// OutputPort
// -----------------------------------------------------------------------

// OutputPort pushes every written state to its Connection synchronously.
type OutputPort struct {
	port
}

func newOutputPort(n *Node, index int, name string, t transition.Type, initial transition.Transition) *OutputPort {
	return &OutputPort{port: port{index: index, name: name, typ: t, state: initial, node: n}}
}

func (p *OutputPort) Direction() Direction { return Out }
func (p *OutputPort) Position() Point      { return p.position(1) }

// Pending reports whether the last write is still waiting to be flushed.
func (p *OutputPort) Pending() bool {
	return p.conn != nil && p.conn.Flushing()
}

// SetState stores v and forwards it to the connection, if any.
func (p *OutputPort) SetState(v transition.Transition) error {
	if err := p.checkType(v); err != nil {
		return err
	}
	p.state = v
	if p.conn != nil {
		return p.conn.SetState(v)
	}
	return nil
}

// SetType retypes the port, dropping a connection of the old type.
func (p *OutputPort) SetType(t transition.Type) {
	if t == p.typ {
		return
	}
	if p.conn != nil {
		p.conn.Disconnect()
	}
	p.typ = t
	p.state = transition.MustNull(t)
}

// Replay pushes the current state to the connection again.
func (p *OutputPort) Replay() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.SetState(p.state)
}

// LinkTo connects this output to an input port. Any existing connection on
// this output is disconnected first.
func (p *OutputPort) LinkTo(target Port, c *Connection) (*Connection, error) {
	in, ok := target.(*InputPort)
	if !ok {
		return nil, ErrSameDirection
	}
	c, err := prepareLink(p, in, c)
	if err != nil {
		return nil, err
	}
	if p.conn != nil && p.conn != c {
		p.conn.Disconnect()
	}
	p.conn = c
	if err := c.SetSource(p); err != nil {
		p.conn = nil
		return nil, err
	}
	if err := in.AcceptLink(c); err != nil {
		p.conn = nil
		return nil, err
	}
	return c, nil
}

// AcceptLink binds c with this output as its source.
func (p *OutputPort) AcceptLink(c *Connection) error {
	if p.conn != nil && p.conn != c {
		p.conn.Disconnect()
	}
	p.conn = c
	if err := c.SetSource(p); err != nil {
		p.conn = nil
		return err
	}
	if p.blockConnect {
		c.Disconnect()
	}
	return nil
}

// prepareLink validates an out->in link and returns the connection to use.
func prepareLink(out *OutputPort, in *InputPort, c *Connection) (*Connection, error) {
	if out.node == nil || in.node == nil {
		return nil, ErrDetached
	}
	if out.node == in.node {
		return nil, ErrSameNode
	}
	if in.typ != out.typ {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTypeMismatch, out.typ, in.typ)
	}
	if c == nil {
		return NewConnection(out.node.host), nil
	}
	if c.typeSet && c.typ != out.typ {
		return nil, fmt.Errorf("%w: connection is %s, port is %s", ErrTypeMismatch, c.typ, out.typ)
	}
	return c, nil
}
