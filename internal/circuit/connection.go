package circuit

import (
	"fmt"

	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Connection is a single-use directed link from an OutputPort to an InputPort.
// Writes are buffered and delivered to the target on the next tick; several
// writes within one tick coalesce into one flush carrying the latest value.
type Connection struct {
	host *Host

	typ     transition.Type
	typeSet bool

	source *OutputPort
	target *InputPort

	state    transition.Transition // last value delivered to the target
	buffered transition.Transition // latest value written by the source

	flushing     bool
	disableFlush bool
	initialized  bool
	disconnected bool
	generation   uint64
	flushes      int

	lines []Point
}

// NewConnection creates an unbound connection scheduled through host.
func NewConnection(host *Host) *Connection {
	return &Connection{host: host}
}

func (c *Connection) Source() *OutputPort          { return c.source }
func (c *Connection) Target() *InputPort           { return c.target }
func (c *Connection) Type() transition.Type        { return c.typ }
func (c *Connection) State() transition.Transition { return c.state }
func (c *Connection) Flushing() bool               { return c.flushing }
func (c *Connection) Initialized() bool            { return c.initialized }
func (c *Connection) Disconnected() bool           { return c.disconnected }
func (c *Connection) Generation() uint64           { return c.generation }

// Flushes returns how many times a value has been delivered to the target.
func (c *Connection) Flushes() int { return c.flushes }

// DisableFlush makes writes update the connection state without scheduling
// delivery. It is raised while a saved graph is being wired.
func (c *Connection) DisableFlush() bool     { return c.disableFlush }
func (c *Connection) SetDisableFlush(b bool) { c.disableFlush = b }

// SetSource binds the source end. The first bound end fixes the type.
func (c *Connection) SetSource(p *OutputPort) error {
	if c.source != nil {
		if c.source == p {
			return nil
		}
		return fmt.Errorf("%w: source", ErrAlreadyBound)
	}
	if c.disconnected {
		return fmt.Errorf("%w: connection was disconnected", ErrAlreadyBound)
	}
	if err := c.bindType(p.typ); err != nil {
		return err
	}
	c.source = p
	c.initializeCheck()
	return nil
}

// SetTarget binds the target end. The first bound end fixes the type.
func (c *Connection) SetTarget(p *InputPort) error {
	if c.target != nil {
		if c.target == p {
			return nil
		}
		return fmt.Errorf("%w: target", ErrAlreadyBound)
	}
	if c.disconnected {
		return fmt.Errorf("%w: connection was disconnected", ErrAlreadyBound)
	}
	if err := c.bindType(p.typ); err != nil {
		return err
	}
	c.target = p
	c.initializeCheck()
	return nil
}

func (c *Connection) bindType(t transition.Type) error {
	if !c.typeSet {
		c.typ = t
		c.typeSet = true
		c.state = transition.MustNull(t)
		c.buffered = c.state
		return nil
	}
	if c.typ != t {
		return fmt.Errorf("%w: connection is %s, port is %s", ErrTypeMismatch, c.typ, t)
	}
	return nil
}

func (c *Connection) initializeCheck() {
	if c.initialized || c.source == nil || c.target == nil {
		return
	}
	c.initialized = true
	_ = c.SetState(c.source.state)
	c.publishLines()
}

// SetState buffers v and schedules one flush to the target if none is pending.
func (c *Connection) SetState(v transition.Transition) error {
	if v.Type() != c.typ {
		return fmt.Errorf("%w: connection is %s, value is %s", ErrTypeMismatch, c.typ, v.Type())
	}
	if c.disableFlush {
		c.state = v
		c.buffered = v
		return nil
	}
	c.buffered = v
	if c.target == nil {
		return nil
	}
	if c.flushing {
		metrics.WritesCoalesced.Inc()
		return nil
	}
	c.flushing = true
	gen := c.generation
	c.host.Scheduler.Defer(func() { c.flush(gen) })
	return nil
}

func (c *Connection) flush(gen uint64) {
	if gen != c.generation || c.target == nil {
		return
	}
	c.flushing = false
	c.state = c.buffered
	c.flushes++
	metrics.Flushes.Inc()
	if err := c.target.SetState(c.state); err != nil {
		c.host.log().Error("connection flush failed", "err", err)
	}
}

// Disconnect tears the link down. It is a no-op when either end is already
// unbound. The target falls back to its type's default value and any
// in-flight flush is voided.
func (c *Connection) Disconnect() {
	if c.source == nil || c.target == nil || c.disconnected {
		return
	}
	c.generation++
	c.flushing = false
	c.disconnected = true

	src, dst := c.source, c.target
	if src.conn == c {
		src.ClearConnection()
	}
	if dst.conn == c {
		dst.ClearConnection()
	}
	c.source = nil
	c.target = nil

	if err := dst.SetState(resetValue(c.typ)); err != nil {
		c.host.log().Error("connection reset target failed", "err", err)
	}

	if c.lines != nil || c.initialized {
		c.lines = nil
		if c.host != nil {
			c.host.Publish(event.Event{Kind: event.KindLinesChanged, Data: LinesUpdate{Conn: c, Removed: true}})
		}
	}
}

// LinesUpdate is the payload of KindLinesChanged events.
type LinesUpdate struct {
	Conn    *Connection `json:"-"`
	Points  []Point     `json:"points,omitempty"`
	Removed bool        `json:"removed,omitempty"`
}

// LineEdges returns the stored polyline, or a straight line between the two
// endpoints when fewer than two points are stored.
func (c *Connection) LineEdges() []Point {
	if len(c.lines) >= 2 {
		out := make([]Point, len(c.lines))
		copy(out, c.lines)
		return out
	}
	c.lines = nil
	if c.source == nil || c.target == nil {
		return nil
	}
	return []Point{c.source.Position(), c.target.Position()}
}

// SetLineEdges stores presentation geometry. Fewer than two points are rejected.
func (c *Connection) SetLineEdges(pts []Point) error {
	if len(pts) < 2 {
		return fmt.Errorf("circuit: line needs at least 2 points, got %d", len(pts))
	}
	c.lines = make([]Point, len(pts))
	copy(c.lines, pts)
	c.publishLines()
	return nil
}

// StoredLineEdges returns the raw stored geometry, nil when none was set.
func (c *Connection) StoredLineEdges() []Point {
	if len(c.lines) < 2 {
		return nil
	}
	out := make([]Point, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Connection) publishLines() {
	if !c.initialized || c.host == nil {
		return
	}
	c.host.Publish(event.Event{Kind: event.KindLinesChanged, Data: LinesUpdate{Conn: c, Points: c.LineEdges()}})
}
