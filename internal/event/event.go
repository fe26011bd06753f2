package event

import (
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Kind names a notification published on a Bus.
type Kind string

const (
	KindGraphChanged  Kind = "graph.changed"    // structural or args change, coalesced per tick
	KindNodeRemoved   Kind = "node.removed"     // a node finished its removal sequence
	KindSounded       Kind = "node.sounded"     // a node asked for an audio cue
	KindGatewayOutput Kind = "gateway.output"   // an external output gateway port changed
	KindLinesChanged  Kind = "connection.lines" // connection geometry changed or was removed
	KindScriptPrinted Kind = "script.print"
	KindAll           Kind = "*"
)

// Event is the canonical notification model shared by the circuit core,
// the engine and API consumers.
type Event struct {
	Kind     Kind                  `json:"kind"`
	GraphID  string                `json:"graph_id"`
	NodeType string                `json:"node_type,omitempty"`
	Port     int                   `json:"port"`
	Value    transition.Transition `json:"value"`
	Data     any                   `json:"data,omitempty"`
	At       time.Time             `json:"at"`
}

type subscription struct {
	id int
	fn func(Event)
}

// Bus is a synchronous publish/subscribe hub. Handlers run on the publishing
// goroutine, which for circuit events is the tick goroutine.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[Kind][]subscription
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers fn for kind (KindAll receives everything). The returned
// function removes the subscription and must be called before fn's owner goes away.
func (b *Bus) Subscribe(kind Kind, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[kind] = append(b.subs[kind], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[kind]
			for i, s := range list {
				if s.id == id {
					b.subs[kind] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber of ev.Kind and of KindAll, in
// subscription order.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs[ev.Kind])+len(b.subs[KindAll]))
	for _, s := range b.subs[ev.Kind] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range b.subs[KindAll] {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	return n
}
