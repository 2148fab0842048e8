// Tracks simulation-wide and per-class allocation statistics such as:
// arrivals, satisfied and missed requests, waiting time and pilot usage.

package sim

import (
	"fmt"
	"io"
)

// ClassStats aggregates the outcomes of one traffic class.
type ClassStats struct {
	Arrivals     int64   // requests created
	Satisfied    int64   // requests granted or delivered before their deadline
	Missed       int64   // requests lost, expired or dropped
	BufferDrops  int64   // of Missed, requests dropped by a full source buffer
	WaitSum      float64 // sum of waiting times of satisfied requests
	MaxWait      float64 // longest waiting time of a satisfied request
	PendingAtEnd int64   // requests still unresolved when the run completed

	waits []float64
}

// LossRate returns Missed / Arrivals, or 0 without arrivals.
func (c *ClassStats) LossRate() float64 {
	if c.Arrivals == 0 {
		return 0
	}
	return float64(c.Missed) / float64(c.Arrivals)
}

// AvgWait returns the mean waiting time of satisfied requests.
func (c *ClassStats) AvgWait() float64 {
	if c.Satisfied == 0 {
		return 0
	}
	return c.WaitSum / float64(c.Satisfied)
}

// Measurement is a periodic sample of the pending-request store.
type Measurement struct {
	Time    float64             `json:"time"`
	Pending [numClasses]int     `json:"pending"`
	AvgWait [numClasses]float64 `json:"avg_wait"`
	MaxWait [numClasses]float64 `json:"max_wait"`
}

// Stats aggregates statistics about the simulation for final reporting.
// It is owned by exactly one Simulator.
type Stats struct {
	Classes [numClasses]ClassStats

	Frames                int64 // frame boundaries handled
	UnitsTotal            int64 // resource units offered over all frames
	UnitsUsed             int64 // units that carried a successful transmission
	UnitsWasted           int64 // units granted to idle sources, collided, or stranded by a blocked strategy
	UnitsIdle             int64 // units nobody asked for
	Collisions            int64 // pilots with two or more transmitters
	CollidedTransmissions int64 // transmissions lost in a collision
	SequenceExhaustions   int64 // retries beyond a Huffman sequence length

	Measurements []Measurement
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

// Class returns the statistics of one class.
func (s *Stats) Class(c TrafficClass) *ClassStats {
	return &s.Classes[c]
}

// Resolved returns the number of satisfied plus missed requests of a class.
func (s *Stats) Resolved(c TrafficClass) int64 {
	return s.Classes[c].Satisfied + s.Classes[c].Missed
}

// Print displays aggregated statistics at the end of the simulation.
func (s *Stats) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Frames               : %d\n", s.Frames)
	for _, c := range Classes {
		cs := &s.Classes[c]
		fmt.Fprintf(w, "--- %s ---\n", c)
		fmt.Fprintf(w, "Arrivals             : %d\n", cs.Arrivals)
		fmt.Fprintf(w, "Satisfied            : %d\n", cs.Satisfied)
		fmt.Fprintf(w, "Missed               : %d (buffer drops %d)\n", cs.Missed, cs.BufferDrops)
		fmt.Fprintf(w, "Pending at end       : %d\n", cs.PendingAtEnd)
		fmt.Fprintf(w, "Loss rate            : %.6f\n", cs.LossRate())
		if cs.Satisfied > 0 {
			fmt.Fprintf(w, "Average wait         : %.4f\n", cs.AvgWait())
			fmt.Fprintf(w, "P95 wait             : %.4f\n", cs.WaitPercentile(95))
			fmt.Fprintf(w, "Max wait             : %.4f\n", cs.MaxWait)
		}
	}
	fmt.Fprintln(w, "--- pilots ---")
	fmt.Fprintf(w, "Units offered        : %d\n", s.UnitsTotal)
	fmt.Fprintf(w, "Units used           : %d\n", s.UnitsUsed)
	fmt.Fprintf(w, "Units wasted         : %d\n", s.UnitsWasted)
	fmt.Fprintf(w, "Units idle           : %d\n", s.UnitsIdle)
	if s.Collisions > 0 || s.SequenceExhaustions > 0 {
		fmt.Fprintf(w, "Collisions           : %d (%d transmissions)\n", s.Collisions, s.CollidedTransmissions)
		fmt.Fprintf(w, "Sequence exhaustions : %d\n", s.SequenceExhaustions)
	}
}
