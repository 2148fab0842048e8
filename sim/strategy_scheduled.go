package sim

import "sort"

// deadlineScheduler implements fcfs and edf: requests of the class are
// sorted by deadline (soonest first), then source id, then arrival
// sequence, and served greedily until the next one no longer fits.
type deadlineScheduler struct {
	noHooks
	kind StrategyKind
}

func (d *deadlineScheduler) Kind() StrategyKind { return d.kind }

func (d *deadlineScheduler) Allocate(f *Frame, class TrafficClass) {
	reqs := f.Store().Class(class)
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].DeadlineTime != reqs[j].DeadlineTime {
			return reqs[i].DeadlineTime < reqs[j].DeadlineTime
		}
		if reqs[i].SourceID != reqs[j].SourceID {
			return reqs[i].SourceID < reqs[j].SourceID
		}
		return reqs[i].Sequence < reqs[j].Sequence
	})
	serveInOrder(f, reqs)
}

// fifoScheduler serves requests in arrival order, then source id, then sequence.
type fifoScheduler struct {
	noHooks
}

func (*fifoScheduler) Kind() StrategyKind { return StrategyFIFO }

func (*fifoScheduler) Allocate(f *Frame, class TrafficClass) {
	reqs := f.Store().Class(class)
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].ArrivalTime != reqs[j].ArrivalTime {
			return reqs[i].ArrivalTime < reqs[j].ArrivalTime
		}
		if reqs[i].SourceID != reqs[j].SourceID {
			return reqs[i].SourceID < reqs[j].SourceID
		}
		return reqs[i].Sequence < reqs[j].Sequence
	})
	serveInOrder(f, reqs)
}

func serveInOrder(f *Frame, reqs []*Request) {
	for _, r := range reqs {
		if !f.Serve(r) {
			return
		}
	}
}

// roundRobin walks the sources of the class in id order every frame and
// serves every queued request of an active source before moving on. It
// stops as soon as a request does not fit; the source stays active.
type roundRobin struct {
	noHooks
}

func (*roundRobin) Kind() StrategyKind { return StrategyRoundRobin }

func (*roundRobin) Allocate(f *Frame, class TrafficClass) {
	store := f.Store()
	for _, src := range f.Sources(class) {
		for _, r := range store.Source(class, src.ID) {
			if !f.Serve(r) {
				return
			}
		}
	}
}

// roundRobinNoInfo has no view of per-source backlogs. It hands the
// source under the cursor its resource cost, serving the oldest request
// if one is queued and wasting the units otherwise, then advances the
// cursor. The cursor persists across frames, so each source is visited at
// most once per pass. A new pass starts at the first frame of a cycle of
// frameLoops frames, and only once the previous pass reached every source;
// an unfinished pass carries into the next cycle.
//
// Idle grants draw on the shared frame budget, so a class allocating after
// this one gets only what the idle grants leave over.
type roundRobinNoInfo struct {
	noHooks
	frameLoops int64
	cursor     int
}

func (*roundRobinNoInfo) Kind() StrategyKind { return StrategyRoundRobinNoInfo }

func (rr *roundRobinNoInfo) Allocate(f *Frame, class TrafficClass) {
	sources := f.Sources(class)
	if (f.Index-1)%rr.frameLoops == 0 && rr.cursor >= len(sources) {
		rr.cursor = 0
	}
	store := f.Store()
	for rr.cursor < len(sources) {
		src := sources[rr.cursor]
		if r := store.Oldest(class, src.ID); r != nil {
			if !f.Serve(r) {
				return
			}
		} else if !f.GrantIdle(src.ResourceCost) {
			return
		}
		rr.cursor++
	}
}

// Cursor returns the next source position to visit.
func (rr *roundRobinNoInfo) Cursor() int { return rr.cursor }
