// Package trace provides outcome recording for pilot-allocation simulations.
// This package has no dependencies on sim/; it stores pure data types and
// the sinks that persist them.
package trace

import "fmt"

// OutcomeRecord captures the resolution of a single request.
type OutcomeRecord struct {
	Event     string  // traffic class of the request ("urllc", "mmtc")
	Node      int     // source id
	Counter   int64   // per-source request counter
	Arrival   float64 // arrival time
	Dead      float64 // absolute deadline
	Departure float64 // time the request was satisfied or declared lost
	Pilot     int     // first pilot used, -1 when lost
	Satisfied bool
}

// Wait returns the time the request spent pending.
func (r OutcomeRecord) Wait() float64 {
	return r.Departure - r.Arrival
}

func (r OutcomeRecord) String() string {
	state := "lost"
	if r.Satisfied {
		state = "satisfied"
	}
	return fmt.Sprintf("%s[%d#%d] %s at %.4f (arrival %.4f, deadline %.4f, pilot %d)",
		r.Event, r.Node, r.Counter, state, r.Departure, r.Arrival, r.Dead, r.Pilot)
}

// csvHeader is the column layout shared by the CSV sink and its readers.
var csvHeader = []string{"Event", "Node", "Counter", "Arrival", "Dead", "Departure", "Pilot"}
