package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/trace"
	"github.com/HaoruiPeng/massive-mimo-slicing/sim/workload"
)

func TestSimulator_SingleSource_ServedAtFirstFrame(t *testing.T) {
	// GIVEN one urllc source arriving at t=0.5, one pilot and a deadline of 2
	s, sink := mustSimulator(t, testConfig(1, 3, "fcfs", "fcfs"),
		mustSource(t, 0, ClassURLLC, 1, 2, periodic(0.5, 100)))

	// WHEN the simulation runs to t=3
	require.NoError(t, s.Run())

	// THEN the request is satisfied at the first frame boundary on pilot 0
	require.Len(t, sink.Outcomes, 1)
	got := sink.Outcomes[0]
	assert.Equal(t, trace.OutcomeRecord{
		Event: "urllc", Node: 0, Counter: 1,
		Arrival: 0.5, Dead: 2.5, Departure: 1, Pilot: 0, Satisfied: true,
	}, got)
	cs := s.Stats().Class(ClassURLLC)
	assert.Equal(t, int64(1), cs.Satisfied)
	assert.InDelta(t, 0.5, cs.AvgWait(), 1e-12)
	assert.Equal(t, int64(3), s.Stats().Frames)
	assert.Equal(t, SimComplete, s.State())
	checkConservation(t, s)
}

func TestSimulator_TwoSources_OnePilot_LowerIDFirst(t *testing.T) {
	// GIVEN two sources arriving together with equal deadlines and one pilot
	s, sink := mustSimulator(t, testConfig(1, 2.5, "fcfs", "fcfs"),
		mustSource(t, 1, ClassURLLC, 1, 2, periodic(0.5, 100)),
		mustSource(t, 0, ClassURLLC, 1, 2, periodic(0.5, 100)))

	// WHEN the simulation runs
	require.NoError(t, s.Run())

	// THEN source 0 is served at t=1 and source 1 at t=2, still before its deadline
	require.Len(t, sink.Outcomes, 2)
	assert.Equal(t, 0, sink.Outcomes[0].Node)
	assert.Equal(t, 1.0, sink.Outcomes[0].Departure)
	assert.Equal(t, 1, sink.Outcomes[1].Node)
	assert.Equal(t, 2.0, sink.Outcomes[1].Departure)
	assert.Zero(t, s.Stats().Class(ClassURLLC).Missed)
	assert.InDelta(t, 1.5, s.Stats().Class(ClassURLLC).MaxWait, 1e-12)
}

func TestSimulator_Expiration_IsStrict(t *testing.T) {
	// GIVEN a request that can never fit (cost 2, one pilot) with deadline t=2
	newSim := func(horizon float64) (*Simulator, *trace.MemorySink) {
		return mustSimulator(t, testConfig(1, horizon, "fcfs", "fcfs"),
			mustSource(t, 0, ClassURLLC, 2, 1, periodic(1, 100)))
	}

	t.Run("deadline equal to boundary is not expired", func(t *testing.T) {
		s, _ := newSim(2)
		require.NoError(t, s.Run())

		cs := s.Stats().Class(ClassURLLC)
		assert.Zero(t, cs.Missed)
		assert.Equal(t, int64(1), cs.PendingAtEnd)
		checkConservation(t, s)
	})

	t.Run("next boundary expires it", func(t *testing.T) {
		s, sink := newSim(3)
		require.NoError(t, s.Run())

		cs := s.Stats().Class(ClassURLLC)
		assert.Equal(t, int64(1), cs.Missed)
		assert.Equal(t, 1.0, cs.LossRate())
		require.Len(t, sink.Outcomes, 1)
		assert.False(t, sink.Outcomes[0].Satisfied)
		assert.Equal(t, 3.0, sink.Outcomes[0].Departure)
		assert.Equal(t, -1, sink.Outcomes[0].Pilot)
		checkConservation(t, s)
	})
}

func TestSimulator_BlockedPilotCountsAsWasted(t *testing.T) {
	s, _ := mustSimulator(t, testConfig(1, 1, "fcfs", "fcfs"),
		mustSource(t, 0, ClassURLLC, 2, 5, periodic(0.5, 100)))

	require.NoError(t, s.Run())

	assert.Equal(t, int64(1), s.Stats().UnitsWasted)
	assert.Zero(t, s.Stats().UnitsIdle)
}

func TestSimulator_EmptyQueue_ReturnsErrQueueStarved(t *testing.T) {
	// GIVEN a running simulator whose queue was never seeded
	s, _ := mustSimulator(t, testConfig(1, 10, "fcfs", "fcfs"))
	s.state = SimRunning

	// WHEN the loop runs
	err := s.loop()

	// THEN it reports starvation
	assert.True(t, errors.Is(err, ErrQueueStarved))
}

func TestSimulator_RunTwice_Fails(t *testing.T) {
	s, _ := mustSimulator(t, testConfig(1, 2, "fcfs", "fcfs"))
	require.NoError(t, s.Run())

	assert.Error(t, s.Run())
}

func TestSimulator_BufferOverflow_DropsOldest(t *testing.T) {
	// GIVEN an mmtc source with a 2-request buffer that is never served
	src, err := NewSource(0, ClassMMTC, SourceProfile{ResourceCost: 2, DeadlineOffset: 50, BufferSize: 2}, periodic(0.25, 0.25))
	require.NoError(t, err)
	s, sink := mustSimulator(t, testConfig(1, 1, "fcfs", "fcfs"), src)

	// WHEN four requests arrive before t=1
	require.NoError(t, s.Run())

	// THEN the two oldest are dropped and counted as missed
	cs := s.Stats().Class(ClassMMTC)
	assert.Equal(t, int64(4), cs.Arrivals)
	assert.Equal(t, int64(2), cs.Missed)
	assert.Equal(t, int64(2), cs.BufferDrops)
	assert.Equal(t, int64(2), cs.PendingAtEnd)
	assert.Equal(t, int64(2), sink.Counters["buffer_drops"])
	require.Len(t, sink.Outcomes, 2)
	assert.Equal(t, int64(1), sink.Outcomes[0].Counter)
	assert.Equal(t, int64(2), sink.Outcomes[1].Counter)
	pending := s.Store().Source(ClassMMTC, 0)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(3), pending[0].Counter)
	assert.Equal(t, int64(4), pending[1].Counter)
	checkConservation(t, s)
}

func TestSimulator_Measurements(t *testing.T) {
	// GIVEN an mmtc request that waits forever from t=5
	s, _ := mustSimulator(t, testConfig(1, 25, "fcfs", "fcfs"),
		mustSource(t, 0, ClassMMTC, 2, 50, periodic(5, 1000)))

	require.NoError(t, s.Run())

	// THEN samples are taken every 10 time units
	ms := s.Stats().Measurements
	require.Len(t, ms, 2)
	assert.Equal(t, 10.0, ms[0].Time)
	assert.Equal(t, 1, ms[0].Pending[ClassMMTC])
	assert.Equal(t, 5.0, ms[0].AvgWait[ClassMMTC])
	assert.Equal(t, 20.0, ms[1].Time)
	assert.Equal(t, 15.0, ms[1].MaxWait[ClassMMTC])
	assert.Zero(t, ms[1].Pending[ClassURLLC])
}

func TestNewSimulator_RejectsDuplicateSourceIDs(t *testing.T) {
	_, err := NewSimulator(testConfig(1, 10, "fcfs", "fcfs"), []*Source{
		mustSource(t, 3, ClassURLLC, 1, 2, periodic(1, 1)),
		mustSource(t, 3, ClassURLLC, 1, 2, periodic(1, 1)),
	}, nil)

	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewSimulator_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(0, 10, "fcfs", "fcfs")

	_, err := NewSimulator(cfg, nil, nil)

	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func smallConfig(urllc, mmtc string) *Config {
	cfg := DefaultConfig()
	cfg.Simulation.Horizon = 300
	cfg.Simulation.MeasurementPeriod = 50
	cfg.Policy.URLLC = urllc
	cfg.Policy.MMTC = mmtc
	return cfg
}

func TestSimulator_SameSeed_IdenticalOutcomes(t *testing.T) {
	run := func() (*Simulator, *trace.MemorySink) {
		sink := trace.NewMemorySink()
		s, err := NewSimulatorFromConfig(smallConfig("backoff", "backoff"), sink)
		require.NoError(t, err)
		require.NoError(t, s.Run())
		return s, sink
	}

	a, sinkA := run()
	b, sinkB := run()

	assert.NotEmpty(t, sinkA.Outcomes)
	assert.Equal(t, sinkA.Outcomes, sinkB.Outcomes)
	assert.Equal(t, sinkA.Counters, sinkB.Counters)
	assert.Equal(t, a.Stats().Results(a.Config()), b.Stats().Results(b.Config()))
}

func TestSimulator_DifferentSeeds_DifferentOutcomes(t *testing.T) {
	outcomes := func(seed int64) []trace.OutcomeRecord {
		cfg := smallConfig("fcfs", "fcfs")
		cfg.Simulation.Seed = seed
		sink := trace.NewMemorySink()
		s, err := NewSimulatorFromConfig(cfg, sink)
		require.NoError(t, err)
		require.NoError(t, s.Run())
		return sink.Outcomes
	}

	assert.NotEqual(t, outcomes(1), outcomes(2))
}

func TestSimulator_AllStrategies_ConserveRequestsAndUnits(t *testing.T) {
	for _, name := range StrategyNames() {
		t.Run(name, func(t *testing.T) {
			// GIVEN the default scenario with the strategy on both classes
			cfg := smallConfig(name, name)
			sink := trace.NewMemorySink()
			s, err := NewSimulatorFromConfig(cfg, sink)
			require.NoError(t, err)

			// WHEN it runs
			require.NoError(t, s.Run())

			// THEN every arrival is accounted for and so is every pilot
			checkConservation(t, s)
			st := s.Stats()
			assert.Equal(t, int64(300), st.Frames)
			assert.Equal(t, st.Frames*int64(cfg.Simulation.ResourceUnits), st.UnitsTotal)
			assert.Equal(t, st.UnitsTotal, st.UnitsUsed+st.UnitsWasted+st.UnitsIdle)
			for _, tc := range Classes {
				assert.Equal(t, st.Resolved(tc), int64(countEvent(sink.Outcomes, tc.String())))
			}

			// AND no request is satisfied after its deadline or lost before it
			for _, o := range sink.Outcomes {
				if o.Satisfied {
					assert.LessOrEqual(t, o.Departure, o.Dead, "%s", o)
				} else {
					assert.Greater(t, o.Departure, o.Dead, "%s", o)
				}
			}
		})
	}
}

func countEvent(records []trace.OutcomeRecord, event string) int {
	n := 0
	for _, r := range records {
		if r.Event == event {
			n++
		}
	}
	return n
}

func onOffSpec() workload.DistSpec {
	return workload.DistSpec{Type: workload.DistOnOff, Params: map[string]float64{"mean": 2, "on": 10, "off": 90}}
}

func TestNewSimulatorFromConfig_BuildsConfiguredSources(t *testing.T) {
	// GIVEN the defaults plus a group of 5 bursty urllc sources
	cfg := smallConfig("rr", "fcfs")
	deadline := 4.0
	cfg.Groups = []GroupConfig{{Class: "urllc", Nodes: 5, Deadline: &deadline, Arrival: onOffSpec()}}

	s, err := NewSimulatorFromConfig(cfg, nil)
	require.NoError(t, err)

	// THEN ids continue after the class sources and the group overrides apply
	urllc := s.Sources(ClassURLLC)
	require.Len(t, urllc, 15)
	assert.Equal(t, 14, urllc[14].ID)
	assert.Equal(t, 4.0, urllc[14].DeadlineOffset)
	assert.Equal(t, 2.0, urllc[0].DeadlineOffset)
	assert.Len(t, s.Sources(ClassMMTC), 50)
	assert.Equal(t, StrategyRoundRobin, s.Strategy(ClassURLLC).Kind())
}
