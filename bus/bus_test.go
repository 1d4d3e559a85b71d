package bus_test

import (
	"testing"

	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/stretchr/testify/require"
)

var testPair = token.Pair{AccessToken: "access", RefreshToken: "refresh"}

func TestBus_PublishReachesSubscribersInOrder(t *testing.T) {
	b := bus.New()

	var order []string
	b.Subscribe(func(ev bus.Event) { order = append(order, "first:"+ev.SessionID) })
	b.Subscribe(func(ev bus.Event) { order = append(order, "second:"+ev.SessionID) })

	b.Publish("s1", testPair)

	require.Equal(t, []string{"first:s1", "second:s1"}, order)
}

func TestBus_EventCarriesNameAndPair(t *testing.T) {
	b := bus.New()

	var got bus.Event
	b.Subscribe(func(ev bus.Event) { got = ev })
	b.Publish("s1", testPair)

	require.Equal(t, bus.EventTokenRefreshed, got.Name)
	require.Equal(t, testPair, got.Pair)
	require.Empty(t, got.Origin)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := bus.New()

	calls := 0
	sub := b.Subscribe(func(bus.Event) { calls++ })
	require.Equal(t, 1, b.Len())

	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second call is a no-op
	require.Zero(t, b.Len())

	b.Publish("s1", testPair)
	require.Zero(t, calls)
}

func TestBus_LateSubscriberMissesEarlierEvents(t *testing.T) {
	b := bus.New()
	b.Publish("s1", testPair)

	calls := 0
	b.Subscribe(func(bus.Event) { calls++ })
	require.Zero(t, calls)
}

func TestBus_HandlerMayUnsubscribeItself(t *testing.T) {
	b := bus.New()

	calls := 0
	var sub bus.Subscription
	sub = b.Subscribe(func(bus.Event) {
		calls++
		b.Unsubscribe(sub)
	})

	b.Publish("s1", testPair)
	b.Publish("s1", testPair)

	require.Equal(t, 1, calls)
	require.Zero(t, b.Len())
}
