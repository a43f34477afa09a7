// Package events provides a typed in-process event bus. Publishers and
// subscribers are decoupled by the event's runtime type; one handler's
// failure never affects delivery to the others or reaches the publisher.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every published value must carry: a unique
// identifier, a creation timestamp, and the identifier of the component that
// produced it. Events are immutable values; construct them fully and never
// mutate them afterwards.
type Event interface {
	// EventID returns the event's unique identifier.
	EventID() string

	// OccurredAt returns when the event was created.
	OccurredAt() time.Time

	// Source returns the identifier of the originating component.
	Source() string
}

// Base implements the Event envelope. Embed it in concrete event types:
//
//	type OrderPlaced struct {
//	    events.Base
//	    OrderID string
//	}
//
//	evt := OrderPlaced{Base: events.NewBase("checkout"), OrderID: "42"}
type Base struct {
	ID        string
	Timestamp time.Time
	Origin    string
}

// NewBase stamps a fresh envelope: a UUID, the current UTC time, and the
// originating component's identifier.
func NewBase(source string) Base {
	return Base{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Origin:    source,
	}
}

func (b Base) EventID() string       { return b.ID }
func (b Base) OccurredAt() time.Time { return b.Timestamp }
func (b Base) Source() string        { return b.Origin }

// Envelope validation errors.
var (
	ErrNilEvent         = errors.New("event cannot be nil")
	ErrBusClosed        = errors.New("event bus is closed")
	ErrMissingEventID   = errors.New("missing event id")
	ErrMissingTimestamp = errors.New("missing event timestamp")
	ErrMissingSource    = errors.New("missing event source")
)

// Validate checks the envelope invariants: non-empty identifier and source,
// non-zero timestamp.
func Validate(e Event) error {
	if e == nil {
		return ErrNilEvent
	}
	if e.EventID() == "" {
		return fmt.Errorf("%T: %w", e, ErrMissingEventID)
	}
	if e.OccurredAt().IsZero() {
		return fmt.Errorf("%T: %w", e, ErrMissingTimestamp)
	}
	if e.Source() == "" {
		return fmt.Errorf("%T: %w", e, ErrMissingSource)
	}
	return nil
}
