package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AsyncBus decouples publishing from delivery: Publish enqueues onto a FIFO
// queue and returns immediately; a single background worker drains the queue
// through the wrapped bus's synchronous delivery path. Publish order is
// therefore delivery order, and a slow handler for one event delays the
// next.
//
// Shutdown is best-effort: Close stops the worker and drops anything still
// queued.
type AsyncBus struct {
	bus    *Bus
	queue  chan Event
	stop   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	closed  bool
}

// DefaultQueueSize is the queue capacity used when NewAsyncBus is given a
// non-positive size.
const DefaultQueueSize = 256

// NewAsyncBus wraps bus with a queue of the given capacity and starts the
// delivery worker.
func NewAsyncBus(bus *Bus, queueSize int) *AsyncBus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	a := &AsyncBus{
		bus:    bus,
		queue:  make(chan Event, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: bus.logger,
	}
	a.idle = sync.NewCond(&a.mu)

	go a.work()
	return a
}

// Publish validates the envelope, enqueues the event, and returns. It blocks
// only when the queue is full. Publishing on a closed bus is an error.
func (a *AsyncBus) Publish(event Event) error {
	if err := Validate(event); err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrBusClosed
	}
	a.pending++
	a.mu.Unlock()

	select {
	case a.queue <- event:
		return nil
	case <-a.stop:
		a.finish()
		return ErrBusClosed
	}
}

// WaitForAll blocks until every queued event has been delivered or the
// timeout elapses, reporting whether the queue drained in time.
func (a *AsyncBus) WaitForAll(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	// Wake waiters at the deadline so the timeout is honored even while the
	// worker is busy inside a handler.
	timer := time.AfterFunc(timeout, func() {
		a.idle.Broadcast()
	})
	defer timer.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	for a.pending > 0 {
		if time.Now().After(deadline) {
			return false
		}
		a.idle.Wait()
	}
	return true
}

// Pending returns the number of events enqueued but not yet delivered.
func (a *AsyncBus) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Close stops accepting events, signals the worker, and joins it with a
// bounded timeout. Events still queued when the worker stops are dropped and
// counted in the log.
func (a *AsyncBus) Close(timeout time.Duration) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrBusClosed
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stop)

	select {
	case <-a.done:
	case <-time.After(timeout):
		a.logger.Warn("async bus worker did not stop within timeout",
			zap.Duration("timeout", timeout))
	}

	dropped := 0
	for {
		select {
		case <-a.queue:
			dropped++
			a.finish()
		default:
			if dropped > 0 {
				a.logger.Warn("dropped undelivered events at shutdown",
					zap.Int("dropped", dropped))
			}
			return nil
		}
	}
}

// work is the single delivery worker: strict FIFO, one event at a time.
func (a *AsyncBus) work() {
	defer close(a.done)

	for {
		select {
		case event := <-a.queue:
			a.dispatch(event)
		case <-a.stop:
			return
		}
	}
}

func (a *AsyncBus) dispatch(event Event) {
	defer a.finish()

	if err := a.bus.Publish(context.Background(), event); err != nil {
		a.logger.Error("async delivery failed",
			zap.String("event_id", event.EventID()),
			zap.Error(err))
	}
}

func (a *AsyncBus) finish() {
	a.mu.Lock()
	a.pending--
	if a.pending <= 0 {
		a.idle.Broadcast()
	}
	a.mu.Unlock()
}
