package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/events"
)

// Concrete event types used across the bus tests.
type OrderPlaced struct {
	events.Base
	OrderID string
}

type OrderShipped struct {
	events.Base
	OrderID string
}

func placed(orderID string) OrderPlaced {
	return OrderPlaced{Base: events.NewBase("checkout"), OrderID: orderID}
}

func shipped(orderID string) OrderShipped {
	return OrderShipped{Base: events.NewBase("warehouse"), OrderID: orderID}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := events.NewBus()

	var received []string
	bus.Subscribe(OrderPlaced{}, func(e events.Event) error {
		received = append(received, e.(OrderPlaced).OrderID)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), placed("42")))

	require.Len(t, received, 1)
	assert.Equal(t, "42", received[0])
}

func TestBus_ExactTypeMatching(t *testing.T) {
	bus := events.NewBus()

	var placedCount, shippedCount int
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		placedCount++
		return nil
	})
	bus.Subscribe(OrderShipped{}, func(events.Event) error {
		shippedCount++
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), placed("1")))
	require.NoError(t, bus.Publish(context.Background(), placed("2")))
	require.NoError(t, bus.Publish(context.Background(), shipped("1")))

	assert.Equal(t, 2, placedCount)
	assert.Equal(t, 1, shippedCount)
}

func TestBus_SubscriptionOrder(t *testing.T) {
	bus := events.NewBus()

	var order []string
	for _, name := range []string{"h1", "h2", "h3"} {
		name := name
		bus.Subscribe(OrderPlaced{}, func(events.Event) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, bus.Publish(context.Background(), placed("42")))
	assert.Equal(t, []string{"h1", "h2", "h3"}, order)
}

func TestBus_HandlerErrorIsolation(t *testing.T) {
	bus := events.NewBus()

	var after []string
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		return errors.New("first handler fails")
	})
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		after = append(after, "second")
		return nil
	})
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		after = append(after, "third")
		return nil
	})

	// The publisher never sees handler failures.
	require.NoError(t, bus.Publish(context.Background(), placed("42")))
	assert.Equal(t, []string{"second", "third"}, after)
}

func TestBus_HandlerPanicIsolation(t *testing.T) {
	bus := events.NewBus()

	var delivered bool
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		panic("handler exploded")
	})
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		delivered = true
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), placed("42")))
	assert.True(t, delivered)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus()

	var count int
	id := bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		count++
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), placed("1")))
	bus.Unsubscribe(id)
	require.NoError(t, bus.Publish(context.Background(), placed("2")))

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.SubscriptionCount(OrderPlaced{}))

	// Unknown ids are a no-op.
	bus.Unsubscribe(events.SubscriptionID(9999))
}

func TestBus_SubscriptionCount(t *testing.T) {
	bus := events.NewBus()
	assert.Equal(t, 0, bus.SubscriptionCount(OrderPlaced{}))

	bus.Subscribe(OrderPlaced{}, func(events.Event) error { return nil })
	bus.Subscribe(OrderPlaced{}, func(events.Event) error { return nil })
	bus.Subscribe(OrderShipped{}, func(events.Event) error { return nil })

	assert.Equal(t, 2, bus.SubscriptionCount(OrderPlaced{}))
	assert.Equal(t, 1, bus.SubscriptionCount(OrderShipped{}))
}

func TestBus_Filter(t *testing.T) {
	bus := events.NewBus()

	var received []string
	bus.SubscribeWithFilter(OrderPlaced{},
		func(e events.Event) error {
			received = append(received, e.(OrderPlaced).OrderID)
			return nil
		},
		func(e events.Event) bool {
			return e.(OrderPlaced).OrderID == "42"
		},
	)

	require.NoError(t, bus.Publish(context.Background(), placed("1")))
	require.NoError(t, bus.Publish(context.Background(), placed("42")))
	require.NoError(t, bus.Publish(context.Background(), placed("7")))

	assert.Equal(t, []string{"42"}, received)
}

func TestBus_FilterPanicMeansNoMatch(t *testing.T) {
	bus := events.NewBus()

	var count int
	bus.SubscribeWithFilter(OrderPlaced{},
		func(events.Event) error {
			count++
			return nil
		},
		func(events.Event) bool {
			panic("bad filter")
		},
	)

	require.NoError(t, bus.Publish(context.Background(), placed("42")))
	assert.Equal(t, 0, count)
}

func TestBus_EnvelopeValidation(t *testing.T) {
	bus := events.NewBus()

	t.Run("nil event", func(t *testing.T) {
		err := bus.Publish(context.Background(), nil)
		assert.ErrorIs(t, err, events.ErrNilEvent)
	})

	t.Run("missing id", func(t *testing.T) {
		evt := OrderPlaced{Base: events.NewBase("checkout")}
		evt.ID = ""
		err := bus.Publish(context.Background(), evt)
		assert.ErrorIs(t, err, events.ErrMissingEventID)
	})

	t.Run("missing source", func(t *testing.T) {
		evt := OrderPlaced{Base: events.NewBase("")}
		err := bus.Publish(context.Background(), evt)
		assert.ErrorIs(t, err, events.ErrMissingSource)
	})
}

func TestBus_Middleware(t *testing.T) {
	t.Run("veto skips delivery", func(t *testing.T) {
		var count int
		bus := events.NewBus(events.WithMiddleware(events.MiddlewareFuncs{
			BeforeFunc: func(e events.Event) events.Event {
				return nil // drop everything
			},
		}))
		bus.Subscribe(OrderPlaced{}, func(events.Event) error {
			count++
			return nil
		})

		require.NoError(t, bus.Publish(context.Background(), placed("42")))
		assert.Equal(t, 0, count)
	})

	t.Run("after observes delivered count", func(t *testing.T) {
		var delivered int
		bus := events.NewBus(events.WithMiddleware(events.MiddlewareFuncs{
			AfterFunc: func(_ events.Event, n int) {
				delivered = n
			},
		}))
		bus.Subscribe(OrderPlaced{}, func(events.Event) error { return nil })
		bus.Subscribe(OrderPlaced{}, func(events.Event) error {
			return errors.New("failed")
		})
		bus.Subscribe(OrderPlaced{}, func(events.Event) error { return nil })

		require.NoError(t, bus.Publish(context.Background(), placed("42")))
		assert.Equal(t, 2, delivered)
	})
}

func TestBus_RemoveAfterFailures(t *testing.T) {
	bus := events.NewBus(events.RemoveAfterFailures(3))

	var attempts int
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		attempts++
		return errors.New("always fails")
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), placed("42")))
	}

	// Removed after the third consecutive failure.
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, bus.SubscriptionCount(OrderPlaced{}))
}

func TestBus_SuccessResetsFailureCount(t *testing.T) {
	bus := events.NewBus(events.RemoveAfterFailures(2))

	var calls int
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		calls++
		if calls%2 == 1 {
			return errors.New("every other call fails")
		}
		return nil
	})

	// fail, ok, fail, ok: never two consecutive failures.
	for i := 0; i < 4; i++ {
		require.NoError(t, bus.Publish(context.Background(), placed("42")))
	}

	assert.Equal(t, 4, calls)
	assert.Equal(t, 1, bus.SubscriptionCount(OrderPlaced{}))
}

func TestBus_CancelledContextStopsDelivery(t *testing.T) {
	bus := events.NewBus()

	var count int
	bus.Subscribe(OrderPlaced{}, func(events.Event) error {
		count++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, bus.Publish(ctx, placed("42")))
	assert.Equal(t, 0, count)
}

func TestOn_TypedHandler(t *testing.T) {
	bus := events.NewBus()

	var received []string
	events.On(bus, func(e OrderPlaced) error {
		received = append(received, e.OrderID)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), placed("42")))
	require.NoError(t, bus.Publish(context.Background(), shipped("42")))

	assert.Equal(t, []string{"42"}, received)
}

func TestBus_EndToEnd(t *testing.T) {
	bus := events.NewBus()

	var got OrderPlaced
	events.On(bus, func(e OrderPlaced) error {
		got = e
		return nil
	})

	evt := placed("42")
	require.NoError(t, bus.Publish(context.Background(), evt))

	assert.Equal(t, "42", got.OrderID)
	assert.Equal(t, "checkout", got.Source())
	assert.Equal(t, evt.EventID(), got.EventID())
	assert.False(t, got.OccurredAt().IsZero())
}
