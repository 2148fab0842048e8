package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/trace"
)

// fixedGenerator replays scripted intervals, then repeats fallback forever.
type fixedGenerator struct {
	init     float64
	next     []float64
	fallback float64
	i        int
	mean     float64
}

func (g *fixedGenerator) InitInterval() float64 { return g.init }

func (g *fixedGenerator) NextInterval() float64 {
	if g.i < len(g.next) {
		v := g.next[g.i]
		g.i++
		return v
	}
	return g.fallback
}

func (g *fixedGenerator) MeanInterval() float64 { return g.mean }

// periodic returns a generator that first fires at init and then every period.
func periodic(init, period float64) *fixedGenerator {
	return &fixedGenerator{init: init, fallback: period, mean: period}
}

// testConfig returns a valid configuration without configured nodes, for
// simulators built from explicit sources.
func testConfig(units int, horizon float64, urllc, mmtc string) *Config {
	cfg := DefaultConfig()
	cfg.Simulation.Horizon = horizon
	cfg.Simulation.FrameLength = 1
	cfg.Simulation.MeasurementPeriod = 10
	cfg.Simulation.ResourceUnits = units
	cfg.Policy.URLLC = urllc
	cfg.Policy.MMTC = mmtc
	cfg.Classes.URLLC.Nodes = 0
	cfg.Classes.MMTC.Nodes = 0
	return cfg
}

func mustSource(t *testing.T, id int, class TrafficClass, cost int, deadline float64, gen TrafficGenerator) *Source {
	t.Helper()
	src, err := NewSource(id, class, SourceProfile{ResourceCost: cost, DeadlineOffset: deadline}, gen)
	require.NoError(t, err)
	return src
}

func mustSimulator(t *testing.T, cfg *Config, sources ...*Source) (*Simulator, *trace.MemorySink) {
	t.Helper()
	sink := trace.NewMemorySink()
	s, err := NewSimulator(cfg, sources, sink)
	require.NoError(t, err)
	return s, sink
}

// frameAt builds a frame on s with pending requests already inserted.
func frameAt(s *Simulator, index int64, now float64, reqs ...*Request) *Frame {
	s.Clock = now
	for _, r := range reqs {
		s.store.Insert(r)
	}
	return newFrame(s, index, now, s.cfg.Simulation.ResourceUnits)
}

// checkConservation verifies that every arrival is satisfied, lost, or still pending.
func checkConservation(t *testing.T, s *Simulator) {
	t.Helper()
	for _, tc := range Classes {
		cs := s.Stats().Class(tc)
		require.Equal(t, cs.Arrivals, cs.Satisfied+cs.Missed+int64(s.Store().Len(tc)),
			"%s: arrivals must equal satisfied + missed + pending", tc)
	}
}
