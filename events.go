package isdnsig

import "github.com/pascaldekloe/isdnsig/q931"

// EventKind classifies a Controller-level notification. See spec.md §4.6
// for the per-call kinds this wraps (q931.EventKind) and the Controller-
// level additions (DCHAN-UP/DOWN, RESTART, CONFIG-ERR) the distilled
// spec left for the Controller layer to define.
type EventKind int

const (
	// EventCall wraps a q931.Event produced by one Call; inspect the
	// Call field for the per-call EventKind and payload, and CallRef
	// for which call it belongs to.
	EventCall EventKind = iota
	// EventDChanUp reports Q.921 multi-frame establishment, own or peer
	// initiated.
	EventDChanUp
	// EventDChanDown reports Q.921 link release, own or peer initiated,
	// or establishment failure after N200 retries.
	EventDChanDown
	// EventRestart reports an inbound RESTART, after the named calls
	// have already been cleared.
	EventRestart
	// EventConfigErr reports an inbound Q.931 message that failed to
	// parse; Err carries the cause. Facility decode failures are only
	// logged, not reported as events.
	EventConfigErr
)

func (k EventKind) String() string {
	switch k {
	case EventCall:
		return "CALL"
	case EventDChanUp:
		return "DCHAN-UP"
	case EventDChanDown:
		return "DCHAN-DOWN"
	case EventRestart:
		return "RESTART"
	case EventConfigErr:
		return "CONFIG-ERR"
	default:
		return "EVENT?"
	}
}

// Event is one entry in Controller.Events.
type Event struct {
	Kind    EventKind
	CallRef q931.CallRef // valid for EventCall
	Call    q931.Event   // valid for EventCall
	Channel uint8        // valid for EventRestart naming a single channel
	Err     error        // valid for EventConfigErr
}

// TakeEvents returns and clears every Event accumulated since the last
// call, the Controller-level counterpart of draining a q931.Call's own
// Events slice.
func (c *Controller) TakeEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Events) == 0 {
		return nil
	}
	out := c.Events
	c.Events = nil
	return out
}
