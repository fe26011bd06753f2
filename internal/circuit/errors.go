package circuit

import "errors"

var (
	// ErrTypeMismatch indicates a link or write between different transition types.
	ErrTypeMismatch = errors.New("circuit: type mismatch")

	// ErrSameDirection indicates an attempt to link two inputs or two outputs.
	ErrSameDirection = errors.New("circuit: ports have the same direction")

	// ErrSameNode indicates an attempt to link a node to itself.
	ErrSameNode = errors.New("circuit: ports belong to the same node")

	// ErrAlreadyBound indicates a connection endpoint that was already set.
	ErrAlreadyBound = errors.New("circuit: connection endpoint already bound")

	// ErrDetached indicates an operation on a port whose node was removed.
	ErrDetached = errors.New("circuit: port is detached from its node")

	// ErrUnknownNodeType is returned by Registry.New for unregistered types.
	ErrUnknownNodeType = errors.New("circuit: unknown node type")

	// ErrNotSettable indicates a node that does not accept external values.
	ErrNotSettable = errors.New("circuit: node does not accept external values")
)
