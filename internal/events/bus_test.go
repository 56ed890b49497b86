package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/types"
)

func TestBus_PublishToSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	bus.Publish(types.Event{Type: types.EventProgress, Applied: 1})

	for _, ch := range []<-chan types.Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, types.EventProgress, e.Type)
			assert.Equal(t, uint(1), e.Applied)
			assert.False(t, e.At.IsZero(), "timestamp is filled in")
		default:
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.Publish(types.Event{Type: types.EventStatus, Text: "first"})
	bus.Publish(types.Event{Type: types.EventStatus, Text: "second"})

	e := <-ch
	assert.Equal(t, "first", e.Text)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(types.Event{Type: types.EventError, Text: "nobody listening"})
	})
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(0)
	require.Equal(t, 1, bus.Subscribers())

	bus.Unsubscribe(ch)
	assert.Equal(t, 0, bus.Subscribers())

	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { bus.Unsubscribe(ch) })
}
