package sim

import "fmt"

// EventKind identifies what a popped event asks the driver to do.
// The numeric value doubles as the tie-break priority for events that
// fire at the same time: arrivals are handled before the frame boundary
// so that a request arriving exactly on a boundary can be served in it.
type EventKind int

const (
	EventArrivalURLLC EventKind = iota
	EventArrivalMMTC
	EventFrameBoundary
	EventMeasurement
)

var eventKindNames = map[EventKind]string{
	EventArrivalURLLC:  "ArrivalURLLC",
	EventArrivalMMTC:   "ArrivalMMTC",
	EventFrameBoundary: "FrameBoundary",
	EventMeasurement:   "Measurement",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ArrivalKind returns the arrival event kind for a traffic class.
func ArrivalKind(c TrafficClass) EventKind {
	if c == ClassURLLC {
		return EventArrivalURLLC
	}
	return EventArrivalMMTC
}

// Event is an entry of the event queue. It is immutable once pushed.
type Event struct {
	Kind     EventKind
	FireTime float64
	// DeadTime is the absolute deadline carried by arrival events; nil otherwise.
	DeadTime *float64
	SourceID int
	// Sequence is assigned by the queue on push and breaks ties between
	// events with equal (FireTime, Kind) in push order.
	Sequence uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s{t=%.4f src=%d seq=%d}", e.Kind, e.FireTime, e.SourceID, e.Sequence)
}

// before reports whether e must be processed before o.
// Order by: fire time → kind priority → push sequence.
func (e *Event) before(o *Event) bool {
	if e.FireTime != o.FireTime {
		return e.FireTime < o.FireTime
	}
	if e.Kind != o.Kind {
		return e.Kind < o.Kind
	}
	return e.Sequence < o.Sequence
}
