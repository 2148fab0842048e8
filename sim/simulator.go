// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/trace"
	"github.com/HaoruiPeng/massive-mimo-slicing/sim/workload"
)

// ErrQueueStarved is returned by Run when the event queue empties before
// the horizon. Periodic handlers always reschedule themselves, so this
// indicates a broken handler rather than a finished workload.
var ErrQueueStarved = errors.New("event queue starved before horizon")

// SimState is the driver lifecycle state.
type SimState int

const (
	SimInitializing SimState = iota
	SimRunning
	SimComplete
)

func (s SimState) String() string {
	switch s {
	case SimInitializing:
		return "initializing"
	case SimRunning:
		return "running"
	case SimComplete:
		return "complete"
	default:
		return fmt.Sprintf("SimState(%d)", int(s))
	}
}

// Simulator is the core object that holds simulation time, the pending
// requests, and the event loop. One Simulator runs exactly once.
type Simulator struct {
	Clock float64

	cfg        *Config
	queue      *EventQueue
	store      *PendingStore
	sources    [numClasses][]*Source
	byID       [numClasses]map[int]*Source
	strategies [numClasses]Strategy
	stats      *Stats
	sink       trace.Sink
	rng        *PartitionedRNG
	state      SimState
	frameIndex int64
}

// NewSimulator creates a simulator over explicitly constructed sources.
// The configured node counts and arrival specs are not used; deadlines in
// cfg only set the round-robin cycle length. A nil sink discards outcomes.
func NewSimulator(cfg *Config, sources []*Source, sink trace.Sink) (*Simulator, error) {
	return newSimulator(cfg, sources, sink, NewPartitionedRNG(NewSimulationKey(cfg.Simulation.Seed)))
}

// NewSimulatorFromConfig builds every source described by cfg, each with
// its own generator stream, and creates the simulator.
func NewSimulatorFromConfig(cfg *Config, sink trace.Sink) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Simulation.Seed))
	sources, err := BuildSources(cfg, rng)
	if err != nil {
		return nil, err
	}
	return newSimulator(cfg, sources, sink, rng)
}

// BuildSources creates the sources of every class followed by the sources
// of every group. Ids are assigned per class in that order, starting at 0.
func BuildSources(cfg *Config, rng *PartitionedRNG) ([]*Source, error) {
	var sources []*Source
	next := [numClasses]int{}
	add := func(tc TrafficClass, profile SourceProfile, spec workload.DistSpec) error {
		id := next[tc]
		next[tc]++
		gen, err := workload.NewGenerator(spec, rng.ForSubsystem(SubsystemSource(tc, id)))
		if err != nil {
			return fmt.Errorf("%w: %s source %d: %v", ErrInvalidConfig, tc, id, err)
		}
		src, err := NewSource(id, tc, profile, gen)
		if err != nil {
			return err
		}
		sources = append(sources, src)
		return nil
	}
	for _, tc := range Classes {
		cc := cfg.Classes.Class(tc)
		for i := 0; i < cc.Nodes; i++ {
			if err := add(tc, cc.Profile(), cc.Arrival); err != nil {
				return nil, err
			}
		}
	}
	for gi, g := range cfg.Groups {
		tc, err := ParseTrafficClass(g.Class)
		if err != nil {
			return nil, fmt.Errorf("%w: group %d: %v", ErrInvalidConfig, gi, err)
		}
		for i := 0; i < g.Nodes; i++ {
			if err := add(tc, g.Profile(*cfg.Classes.Class(tc)), g.Arrival); err != nil {
				return nil, err
			}
		}
	}
	return sources, nil
}

func newSimulator(cfg *Config, sources []*Source, sink trace.Sink, rng *PartitionedRNG) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = trace.NopSink{}
	}
	s := &Simulator{
		cfg:   cfg,
		queue: NewEventQueue(),
		store: NewPendingStore(),
		stats: NewStats(),
		sink:  sink,
		rng:   rng,
		state: SimInitializing,
	}
	for _, tc := range Classes {
		s.byID[tc] = make(map[int]*Source)
	}
	for _, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("%w: nil source", ErrInvalidConfig)
		}
		if _, dup := s.byID[src.Class][src.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate %s source id %d", ErrInvalidConfig, src.Class, src.ID)
		}
		s.byID[src.Class][src.ID] = src
		s.sources[src.Class] = append(s.sources[src.Class], src)
	}
	for _, tc := range Classes {
		list := s.sources[tc]
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })

		kind, err := ParseStrategy(cfg.Policy.Strategy(tc))
		if err != nil {
			return nil, err
		}
		strategy, err := NewStrategy(kind, StrategyEnv{
			Class:       tc,
			Sources:     list,
			FrameLength: cfg.Simulation.FrameLength,
			FrameLoops:  cfg.FrameLoops(tc),
			BaseShare:   cfg.Policy.BaseShare,
			PilotStride: cfg.Policy.PilotStride,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s strategy: %w", tc, err)
		}
		s.strategies[tc] = strategy
	}
	return s, nil
}

// Config returns the run configuration.
func (s *Simulator) Config() *Config { return s.cfg }

// Stats returns the run statistics.
func (s *Simulator) Stats() *Stats { return s.stats }

// Store returns the pending-request store.
func (s *Simulator) Store() *PendingStore { return s.store }

// State returns the lifecycle state.
func (s *Simulator) State() SimState { return s.state }

// Strategy returns the strategy bound to a class.
func (s *Simulator) Strategy(tc TrafficClass) Strategy { return s.strategies[tc] }

// Sources returns the sources of a class in id order.
func (s *Simulator) Sources(tc TrafficClass) []*Source { return s.sources[tc] }

// FrameIndex returns the number of frame boundaries handled so far.
func (s *Simulator) FrameIndex() int64 { return s.frameIndex }

// Run drives the event loop until the clock reaches the horizon. The event
// that first reaches or passes the horizon is still handled.
func (s *Simulator) Run() error {
	if s.state != SimInitializing {
		return fmt.Errorf("simulator is %s, it can only run once", s.state)
	}
	s.initialize()
	s.state = SimRunning
	logrus.Infof("Starting simulation: horizon=%v frame_length=%v units=%d strategies=%s/%s sources=%d/%d",
		s.cfg.Simulation.Horizon, s.cfg.Simulation.FrameLength, s.cfg.Simulation.ResourceUnits,
		s.strategies[ClassURLLC].Kind(), s.strategies[ClassMMTC].Kind(),
		len(s.sources[ClassURLLC]), len(s.sources[ClassMMTC]))
	return s.loop()
}

// loop pops and dispatches events until the horizon, then completes the run.
func (s *Simulator) loop() error {
	for s.Clock < s.cfg.Simulation.Horizon {
		ev, err := s.queue.Pop()
		if err != nil {
			return fmt.Errorf("%w at t=%.4f: %v", ErrQueueStarved, s.Clock, err)
		}
		s.Clock = ev.FireTime
		logrus.Debugf("[t %012.4f] Executing %s", s.Clock, ev.Kind)
		s.dispatch(ev)
	}

	for _, tc := range Classes {
		s.stats.Classes[tc].PendingAtEnd = int64(s.store.Len(tc))
	}
	if next, ok := s.queue.Peek(); ok {
		logrus.Debugf("[t %012.4f] %d events left past the horizon, next %s", s.Clock, s.queue.Len(), next)
	}
	s.state = SimComplete
	logrus.Infof("[t %012.4f] Simulation ended after %d frames", s.Clock, s.frameIndex)
	return nil
}

func (s *Simulator) initialize() {
	for _, tc := range Classes {
		for _, src := range s.sources[tc] {
			s.scheduleArrival(src, sanitizeInterval(src.Generator.InitInterval()))
		}
	}
	s.queue.Push(EventFrameBoundary, s.cfg.Simulation.FrameLength, nil, 0)
	s.queue.Push(EventMeasurement, s.cfg.Simulation.MeasurementPeriod, nil, 0)
}

func (s *Simulator) scheduleArrival(src *Source, at float64) {
	dead := at + src.DeadlineOffset
	s.queue.Push(ArrivalKind(src.Class), at, &dead, src.ID)
}

func (s *Simulator) dispatch(ev Event) {
	switch ev.Kind {
	case EventArrivalURLLC:
		s.handleArrival(ClassURLLC, ev)
	case EventArrivalMMTC:
		s.handleArrival(ClassMMTC, ev)
	case EventFrameBoundary:
		s.handleFrame()
	case EventMeasurement:
		s.handleMeasurement()
	default:
		panic(fmt.Sprintf("unhandled event kind %s", ev.Kind))
	}
}

// handleArrival stores the new request and schedules the source's next arrival.
func (s *Simulator) handleArrival(tc TrafficClass, ev Event) {
	src := s.byID[tc][ev.SourceID]
	r := src.nextRequest(s.Clock, ev.Sequence)
	if ev.DeadTime != nil {
		r.DeadlineTime = *ev.DeadTime
	}
	s.stats.Classes[tc].Arrivals++

	if src.BufferSize > 0 && s.store.LenSource(tc, src.ID) >= src.BufferSize {
		oldest := s.store.Oldest(tc, src.ID)
		s.store.Remove(oldest)
		s.lose(oldest)
		s.stats.Classes[tc].BufferDrops++
		s.sink.RecordCounter("buffer_drops", 1)
		logrus.Debugf("[t %012.4f] %s source %d buffer full, dropped request #%d", s.Clock, tc, src.ID, oldest.Counter)
	}

	s.store.Insert(r)
	s.strategies[tc].HandleArrival(r)
	s.scheduleArrival(src, s.Clock+sanitizeInterval(src.Generator.NextInterval()))
}

// handleFrame expires overdue requests, then lets each class allocate on
// the residual budget, then settles contention.
func (s *Simulator) handleFrame() {
	s.frameIndex++
	s.stats.Frames++
	now := s.Clock

	for _, r := range s.store.DrainMatching(func(r *Request) bool { return r.DeadlineTime < now }) {
		s.lose(r)
		s.strategies[r.Class].HandleExpired(r)
	}

	f := newFrame(s, s.frameIndex, now, s.cfg.Simulation.ResourceUnits)
	for _, tc := range Classes {
		s.strategies[tc].Allocate(f, tc)
	}
	f.settle()

	s.queue.Push(EventFrameBoundary, now+s.cfg.Simulation.FrameLength, nil, 0)
}

// handleMeasurement samples the pending store.
func (s *Simulator) handleMeasurement() {
	m := Measurement{Time: s.Clock}
	for _, tc := range Classes {
		reqs := s.store.Class(tc)
		m.Pending[tc] = len(reqs)
		if len(reqs) == 0 {
			continue
		}
		sum := 0.0
		for _, r := range reqs {
			w := r.Wait(s.Clock)
			sum += w
			m.MaxWait[tc] = max(m.MaxWait[tc], w)
		}
		m.AvgWait[tc] = sum / float64(len(reqs))
	}
	s.stats.Measurements = append(s.stats.Measurements, m)
	s.queue.Push(EventMeasurement, s.Clock+s.cfg.Simulation.MeasurementPeriod, nil, 0)
}

// satisfy resolves a stored request as satisfied on pilot.
func (s *Simulator) satisfy(r *Request, pilot int) {
	if !s.store.Remove(r) {
		panic(fmt.Sprintf("satisfy: %s is not pending", r))
	}
	r.resolve(StateSatisfied, s.Clock)
	r.Pilot = pilot
	s.stats.Classes[r.Class].Satisfied++
	s.stats.Classes[r.Class].recordWait(r.Wait(s.Clock))
	s.sink.RecordOutcome(outcome(r))
	logrus.Debugf("[t %012.4f] satisfied %s on pilot %d", s.Clock, r, pilot)
}

// lose resolves a request that has already left the store as lost.
func (s *Simulator) lose(r *Request) {
	r.resolve(StateLost, s.Clock)
	s.stats.Classes[r.Class].Missed++
	s.sink.RecordOutcome(outcome(r))
	logrus.Debugf("[t %012.4f] lost %s", s.Clock, r)
}

func outcome(r *Request) trace.OutcomeRecord {
	return trace.OutcomeRecord{
		Event:     r.Class.String(),
		Node:      r.SourceID,
		Counter:   r.Counter,
		Arrival:   r.ArrivalTime,
		Dead:      r.DeadlineTime,
		Departure: r.ResolvedTime,
		Pilot:     r.Pilot,
		Satisfied: r.State == StateSatisfied,
	}
}
