package sim

import (
	"fmt"
	"math/rand/v2"
)

// pilotSlot is the state of one resource unit during a frame.
type pilotSlot struct {
	reserved   bool       // held back for a class, may still carry transmissions
	granted    *Request   // collision-free grant
	idleGrant  bool       // granted to a source that had nothing to send
	contenders []*Request // contention transmissions, resolved at frame end
}

func (p *pilotSlot) free() bool {
	return !p.reserved && p.granted == nil && !p.idleGrant && len(p.contenders) == 0
}

// Frame is the allocation context handed to strategies at a frame boundary.
// It tracks which resource units are still free so that strategies for
// several classes can run one after the other on the residual budget.
type Frame struct {
	Index int64   // 1-based frame counter
	Now   float64 // frame boundary time

	sim         *Simulator
	pilots      []pilotSlot
	remaining   int
	blocked     bool
	transmitted map[*Request]bool
}

func newFrame(s *Simulator, index int64, now float64, units int) *Frame {
	return &Frame{
		Index:       index,
		Now:         now,
		sim:         s,
		pilots:      make([]pilotSlot, units),
		remaining:   units,
		transmitted: make(map[*Request]bool),
	}
}

// Units returns the number of resource units available this frame.
func (f *Frame) Units() int { return len(f.pilots) }

// Remaining returns the number of still unclaimed resource units.
func (f *Frame) Remaining() int { return f.remaining }

// Store returns the pending-request store.
func (f *Frame) Store() *PendingStore { return f.sim.store }

// Sources returns the sources of a class in id order.
func (f *Frame) Sources(c TrafficClass) []*Source { return f.sim.sources[c] }

// FrameLength returns the configured frame length.
func (f *Frame) FrameLength() float64 { return f.sim.cfg.Simulation.FrameLength }

// Rand returns the RNG stream used for random pilot selection.
func (f *Frame) Rand() *rand.Rand { return f.sim.rng.ForSubsystem(SubsystemPilots) }

// Stats returns the run statistics.
func (f *Frame) Stats() *Stats { return f.sim.stats }

// Serve grants r collision-free resource units and resolves it as satisfied.
// It returns false, and marks the frame as blocked, when r's cost exceeds
// the remaining budget.
func (f *Frame) Serve(r *Request) bool {
	if r.Resolved() {
		panic(fmt.Sprintf("Serve: %s is already resolved", r))
	}
	if r.ResourceCost > f.remaining {
		f.blocked = true
		return false
	}
	first := -1
	need := r.ResourceCost
	for i := range f.pilots {
		if need == 0 {
			break
		}
		if !f.pilots[i].free() {
			continue
		}
		f.pilots[i].granted = r
		f.remaining--
		need--
		if first < 0 {
			first = i
		}
	}
	f.sim.satisfy(r, first)
	return true
}

// GrantIdle hands units resource units to a source that turned out to have
// nothing to send. The units are counted as wasted. It returns false, and
// marks the frame as blocked, when not enough units remain.
func (f *Frame) GrantIdle(units int) bool {
	if units > f.remaining {
		f.blocked = true
		return false
	}
	for i := range f.pilots {
		if units == 0 {
			break
		}
		if f.pilots[i].free() {
			f.pilots[i].idleGrant = true
			f.remaining--
			units--
		}
	}
	return true
}

// Reserve holds pilot back from later free-pilot queries.
func (f *Frame) Reserve(pilot int) {
	p := &f.pilots[pilot]
	if p.free() {
		f.remaining--
	}
	p.reserved = true
}

// FreePilots returns the indices of all free pilots in ascending order.
func (f *Frame) FreePilots() []int {
	var out []int
	for i := range f.pilots {
		if f.pilots[i].free() {
			out = append(out, i)
		}
	}
	return out
}

// Transmit makes r contend on pilot. The outcome is decided when the frame
// settles: a lone transmitter is satisfied, two or more collide.
func (f *Frame) Transmit(r *Request, pilot int) {
	if r.Resolved() {
		panic(fmt.Sprintf("Transmit: %s is already resolved", r))
	}
	if f.transmitted[r] {
		panic(fmt.Sprintf("Transmit: %s already transmitted in frame %d", r, f.Index))
	}
	p := &f.pilots[pilot]
	if p.granted != nil || p.idleGrant {
		panic(fmt.Sprintf("Transmit: pilot %d is granted in frame %d", pilot, f.Index))
	}
	if p.free() {
		f.remaining--
	}
	p.contenders = append(p.contenders, r)
	f.transmitted[r] = true
}

// settle resolves contention and accounts every resource unit of the frame.
func (f *Frame) settle() {
	st := f.sim.stats
	st.UnitsTotal += int64(len(f.pilots))
	for i := range f.pilots {
		p := &f.pilots[i]
		switch {
		case p.granted != nil:
			st.UnitsUsed++
		case p.idleGrant:
			st.UnitsWasted++
		case len(p.contenders) == 1:
			st.UnitsUsed++
			f.sim.satisfy(p.contenders[0], i)
		case len(p.contenders) > 1:
			st.UnitsWasted++
			st.Collisions++
			for _, r := range p.contenders {
				r.Attempts++
				st.CollidedTransmissions++
			}
			f.sim.sink.RecordCounter("collisions", 1)
		case p.free() && f.blocked:
			st.UnitsWasted++
		default:
			st.UnitsIdle++
		}
	}
}
