// Defines the Request struct that models one pilot request in the simulation.
// Tracks the owning source, arrival and deadline times, and the terminal outcome.

package sim

import (
	"fmt"
)

// TrafficClass partitions sources and their requests.
type TrafficClass int

const (
	// ClassURLLC is the latency-critical class (alarm traffic in the factory scenario).
	ClassURLLC TrafficClass = iota
	// ClassMMTC is the bulk, massive-machine-type class (control traffic).
	ClassMMTC

	numClasses = 2
)

// Classes lists the traffic classes in allocation order.
var Classes = []TrafficClass{ClassURLLC, ClassMMTC}

func (c TrafficClass) String() string {
	switch c {
	case ClassURLLC:
		return "urllc"
	case ClassMMTC:
		return "mmtc"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ParseTrafficClass resolves a class name ("urllc" or "mmtc").
func ParseTrafficClass(name string) (TrafficClass, error) {
	for _, c := range Classes {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown traffic class %q", name)
}

// RequestState represents the lifecycle state of a request.
// Transitions are strictly Unresolved → {Satisfied | Lost}.
type RequestState string

const (
	StateUnresolved RequestState = "unresolved"
	StateSatisfied  RequestState = "satisfied"
	StateLost       RequestState = "lost"
)

// Request models a single pending demand for resource units.
type Request struct {
	Class    TrafficClass
	SourceID int
	// Counter is the per-source arrival counter (1 for the first request of a source).
	Counter int64
	// Sequence is the event sequence number of the arrival that created the request.
	Sequence uint64

	ArrivalTime  float64
	DeadlineTime float64
	ResourceCost int

	State        RequestState
	ResolvedTime float64 // set when State leaves StateUnresolved
	Pilot        int     // first pilot index used when satisfied, -1 otherwise

	// Attempts counts collided transmissions (contention strategies only).
	Attempts int

	// position inside the store's class ordering; -1 when not stored
	slot int
}

// NewRequest creates an Unresolved request.
func NewRequest(class TrafficClass, sourceID int, counter int64, arrival, deadline float64, cost int) *Request {
	return &Request{
		Class:        class,
		SourceID:     sourceID,
		Counter:      counter,
		ArrivalTime:  arrival,
		DeadlineTime: deadline,
		ResourceCost: cost,
		State:        StateUnresolved,
		Pilot:        -1,
		slot:         -1,
	}
}

// Resolved reports whether the request has reached a terminal state.
func (r *Request) Resolved() bool {
	return r.State != StateUnresolved
}

// Wait returns the time the request has been (or was) waiting at time now.
func (r *Request) Wait(now float64) float64 {
	if r.Resolved() {
		return r.ResolvedTime - r.ArrivalTime
	}
	return now - r.ArrivalTime
}

func (r *Request) resolve(state RequestState, at float64) {
	if r.Resolved() {
		panic(fmt.Sprintf("request %s resolved twice", r))
	}
	r.State = state
	r.ResolvedTime = at
}

// This method returns a human-readable string representation of a Request.
func (r Request) String() string {
	return fmt.Sprintf("Request: (%s/%d #%d, State: %s, Arrival: %.4f, Deadline: %.4f)",
		r.Class, r.SourceID, r.Counter, r.State, r.ArrivalTime, r.DeadlineTime)
}
