package events

// Middleware hooks run around every publish. Before may veto delivery by
// returning nil; the returned event (possibly replaced) is what gets
// delivered. After observes how many handlers were successfully invoked.
type Middleware interface {
	Before(event Event) Event
	After(event Event, delivered int)
}

// MiddlewareFuncs adapts plain functions to the Middleware interface. Either
// field may be nil.
type MiddlewareFuncs struct {
	BeforeFunc func(Event) Event
	AfterFunc  func(Event, int)
}

func (m MiddlewareFuncs) Before(event Event) Event {
	if m.BeforeFunc == nil {
		return event
	}
	return m.BeforeFunc(event)
}

func (m MiddlewareFuncs) After(event Event, delivered int) {
	if m.AfterFunc != nil {
		m.AfterFunc(event, delivered)
	}
}
