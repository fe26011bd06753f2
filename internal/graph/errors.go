package graph

import "errors"

var (
	ErrNotInGraph       = errors.New("graph: node does not belong to this graph")
	ErrNodeNotFound     = errors.New("graph: node index out of range")
	ErrPortOutOfRange   = errors.New("graph: port index out of range")
	ErrGatewayRemoval   = errors.New("graph: gateway nodes cannot be removed")
	ErrGatewaysDisabled = errors.New("graph: gateways are not enabled")
	ErrGatewayIndex     = errors.New("graph: gateway port index out of range")
	ErrPartialLoad      = errors.New("graph: some records could not be loaded")
)
