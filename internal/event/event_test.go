package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
)

func TestBus_PublishOrderAndWildcard(t *testing.T) {
	bus := event.NewBus()
	var got []string
	bus.Subscribe(event.KindSounded, func(e event.Event) { got = append(got, "a:"+string(e.Kind)) })
	bus.Subscribe(event.KindAll, func(e event.Event) { got = append(got, "all:"+string(e.Kind)) })
	bus.Subscribe(event.KindSounded, func(e event.Event) { got = append(got, "b:"+string(e.Kind)) })

	bus.Publish(event.Event{Kind: event.KindSounded})
	bus.Publish(event.Event{Kind: event.KindNodeRemoved})

	assert.Equal(t, []string{
		"a:node.sounded",
		"b:node.sounded",
		"all:node.sounded",
		"all:node.removed",
	}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := event.NewBus()
	calls := 0
	unsub := bus.Subscribe(event.KindGraphChanged, func(event.Event) { calls++ })

	bus.Publish(event.Event{Kind: event.KindGraphChanged})
	unsub()
	unsub() // second call is a no-op
	bus.Publish(event.Event{Kind: event.KindGraphChanged})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_NilPublish(t *testing.T) {
	var bus *event.Bus
	assert.NotPanics(t, func() { bus.Publish(event.Event{Kind: event.KindSounded}) })
}
