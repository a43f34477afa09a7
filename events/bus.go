package events

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler processes one event. A returned error (or a panic) is logged and
// isolated; it never reaches the publisher or other handlers.
type Handler func(Event) error

// Filter gates delivery to one subscription. A panicking filter counts as
// "does not match".
type Filter func(Event) bool

// SubscriptionID identifies a subscription for the life of a bus. IDs are
// monotonically increasing and never reused; an unsubscribed ID is
// permanently inert.
type SubscriptionID uint64

// subscription is one (id, handler, optional filter) entry in an event
// type's delivery list.
type subscription struct {
	id      SubscriptionID
	handler Handler
	filter  Filter

	// consecutive handler failures, for the auto-remove policy
	failures atomic.Int32
}

// Bus is a synchronous publish/subscribe dispatcher keyed by exact event
// runtime type. Handlers for one type run in subscription order on the
// publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type][]*subscription
	nextID SubscriptionID

	logger             *zap.Logger
	middleware         []Middleware
	removeAfterFailure int // 0 disables auto-removal
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the structured logger used for handler and filter
// failures. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// RemoveAfterFailures enables auto-removal: a subscription whose handler
// fails n consecutive times is dropped (and the removal logged). The default
// policy is retain-and-log.
func RemoveAfterFailures(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.removeAfterFailure = n
		}
	}
}

// WithMiddleware appends middleware hooks, run in the given order around
// every publish.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) {
		b.middleware = append(b.middleware, mw...)
	}
}

// NewBus creates a synchronous event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[reflect.Type][]*subscription),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for the exact runtime type of prototype and
// returns the subscription's identifier. Handlers for one event type are
// invoked in subscription order.
func (b *Bus) Subscribe(prototype Event, handler Handler) SubscriptionID {
	return b.subscribe(reflect.TypeOf(prototype), handler, nil)
}

// SubscribeWithFilter registers a handler invoked only for events the filter
// accepts. A filter that panics is treated as not matching.
func (b *Bus) SubscribeWithFilter(prototype Event, handler Handler, filter Filter) SubscriptionID {
	return b.subscribe(reflect.TypeOf(prototype), handler, filter)
}

func (b *Bus) subscribe(eventType reflect.Type, handler Handler, filter Filter) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler, filter: filter}
	b.subs[eventType] = append(b.subs[eventType], sub)
	return sub.id
}

// Unsubscribe removes the subscription with the given id from whichever
// event type holds it. Unknown ids are a no-op.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, list := range b.subs {
		for i, sub := range list {
			if sub.id == id {
				b.subs[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscriptionCount returns the number of active subscriptions for the exact
// runtime type of prototype.
func (b *Bus) SubscriptionCount(prototype Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeOf(prototype)])
}

// Publish delivers event to every subscription registered for its exact
// runtime type, in subscription order, on the caller's goroutine.
//
// Publish returns an error only for envelope violations (nil or invalid
// event). Handler errors and panics are logged and swallowed so delivery
// always continues; a middleware veto skips delivery and is not an error.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if err := Validate(event); err != nil {
		return err
	}

	for _, mw := range b.middleware {
		event = mw.Before(event)
		if event == nil {
			return nil // vetoed, not an error
		}
	}

	eventType := reflect.TypeOf(event)

	// Deliver against a snapshot so handlers may subscribe or unsubscribe
	// without affecting the in-flight publish.
	b.mu.RLock()
	list := make([]*subscription, len(b.subs[eventType]))
	copy(list, b.subs[eventType])
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range list {
		if ctx != nil && ctx.Err() != nil {
			break
		}

		if sub.filter != nil && !b.matches(sub, event, eventType) {
			continue
		}

		if b.deliver(sub, event, eventType) {
			delivered++
		}
	}

	for _, mw := range b.middleware {
		mw.After(event, delivered)
	}

	return nil
}

// matches runs the subscription's filter, treating a panic as no match.
func (b *Bus) matches(sub *subscription, event Event, eventType reflect.Type) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			b.logger.Warn("event filter panicked; treating as no match",
				zap.Uint64("subscription_id", uint64(sub.id)),
				zap.String("event_type", eventType.String()),
				zap.Any("panic", r))
		}
	}()
	return sub.filter(event)
}

// deliver invokes one handler with full isolation: errors and panics are
// logged, counted against the auto-remove policy, and never propagated.
func (b *Bus) deliver(sub *subscription, event Event, eventType reflect.Type) bool {
	err := b.invoke(sub, event)
	if err == nil {
		sub.failures.Store(0)
		b.logger.Debug("event delivered",
			zap.Uint64("subscription_id", uint64(sub.id)),
			zap.String("event_type", eventType.String()),
			zap.String("event_id", event.EventID()))
		return true
	}

	b.logger.Error("event handler failed",
		zap.Uint64("subscription_id", uint64(sub.id)),
		zap.String("event_type", eventType.String()),
		zap.String("event_id", event.EventID()),
		zap.Error(err))

	failures := int(sub.failures.Add(1))
	if b.removeAfterFailure > 0 && failures >= b.removeAfterFailure {
		b.Unsubscribe(sub.id)
		b.logger.Warn("subscription removed after repeated handler failures",
			zap.Uint64("subscription_id", uint64(sub.id)),
			zap.String("event_type", eventType.String()),
			zap.Int("failures", failures))
	}

	return false
}

func (b *Bus) invoke(sub *subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.handler(event)
}

// On registers a typed handler for events of type T, sparing callers the
// Event type assertion.
func On[T Event](b *Bus, handler func(T) error) SubscriptionID {
	eventType := reflect.TypeOf((*T)(nil)).Elem()
	return b.subscribe(eventType, func(e Event) error {
		return handler(e.(T))
	}, nil)
}
