package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishFanOut(t *testing.T) {
	b := NewBroker[int](2)
	id1, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	b.Publish(7)
	assert.Equal(t, 7, <-ch1)
	assert.Equal(t, 7, <-ch2)

	b.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "unsubscribed channel should be closed")
	assert.Equal(t, 1, b.Subscribers())

	// unknown ids are ignored
	b.Unsubscribe("nope")
}

func TestBroker_SlowSubscriberDrops(t *testing.T) {
	b := NewBroker[string](1)
	_, ch := b.Subscribe()

	b.Publish("a")
	b.Publish("b")
	b.Publish("c")

	assert.Equal(t, "a", <-ch)
	assert.Equal(t, uint64(2), b.Dropped())
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %q", v)
	default:
	}
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker[int](0)
	_, ch := b.Subscribe()
	b.Close()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	_, late := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscriptions after close receive a closed channel")

	b.Publish(1)
	assert.Equal(t, 0, b.Subscribers())
}
