package workload

import (
	"math"
	"math/rand/v2"
	"testing"
)

func newSrc(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed)
}

func sampleMean(g Generator, n int) (mean, lowest float64) {
	lowest = math.Inf(1)
	sum := 0.0
	for i := 0; i < n; i++ {
		v := g.NextInterval()
		sum += v
		lowest = math.Min(lowest, v)
	}
	return sum / float64(n), lowest
}

func mustGenerator(t *testing.T, spec DistSpec, seed uint64) Generator {
	t.Helper()
	g, err := NewGenerator(spec, newSrc(seed))
	if err != nil {
		t.Fatalf("NewGenerator(%s): %v", spec, err)
	}
	return g
}

func TestExponentialGenerator_MeanMatches(t *testing.T) {
	// GIVEN an exponential generator with mean 20
	g := mustGenerator(t, DistSpec{Type: DistExponential, Params: map[string]float64{"mean": 20}}, 42)

	// WHEN 20000 intervals are sampled
	mean, lowest := sampleMean(g, 20000)

	// THEN the sample mean is within 5% and no interval is negative
	if math.Abs(mean-20)/20 > 0.05 {
		t.Errorf("mean interval = %.3f, want ≈ 20", mean)
	}
	if lowest < 0 {
		t.Errorf("negative interval %v", lowest)
	}
	if g.MeanInterval() != 20 {
		t.Errorf("MeanInterval() = %v, want 20", g.MeanInterval())
	}
}

func TestConstantGenerator_JitterAroundPeriod(t *testing.T) {
	// GIVEN a constant generator with period 60 and the default 5% jitter
	g := mustGenerator(t, DistSpec{Type: DistConstant, Params: map[string]float64{"period": 60}}, 7)

	// WHEN sampled
	mean, lowest := sampleMean(g, 5000)

	// THEN intervals stay close to the period
	if math.Abs(mean-60) > 0.5 {
		t.Errorf("mean interval = %.3f, want ≈ 60", mean)
	}
	if lowest < 30 {
		t.Errorf("interval %v is implausibly far from the period", lowest)
	}
}

func TestConstantGenerator_InitIntervalIsWiderButNonNegative(t *testing.T) {
	g := mustGenerator(t, DistSpec{Type: DistConstant, Params: map[string]float64{"period": 10, "init_jitter": 3}}, 3)

	var sawZero bool
	for i := 0; i < 2000; i++ {
		v := g.InitInterval()
		if v < 0 {
			t.Fatalf("negative initial interval %v", v)
		}
		if v == 0 {
			sawZero = true
		}
	}
	// with sigma = 3 periods roughly a third of the draws clamp to 0
	if !sawZero {
		t.Error("expected clamped initial intervals with a wide jitter")
	}
}

func TestUniformGenerator_Bounds(t *testing.T) {
	g := mustGenerator(t, DistSpec{Type: DistUniform, Params: map[string]float64{"max": 4}}, 11)

	for i := 0; i < 5000; i++ {
		if v := g.NextInterval(); v < 0 || v >= 4 {
			t.Fatalf("interval %v outside [0, 4)", v)
		}
	}
	if g.MeanInterval() != 2 {
		t.Errorf("MeanInterval() = %v, want 2", g.MeanInterval())
	}
}

func TestOnOffGenerator_ConstantWindows(t *testing.T) {
	// GIVEN constant 10-unit ON windows separated by 90-unit OFF gaps
	spec := DistSpec{Type: DistOnOff, Params: map[string]float64{"mean": 1, "on": 10, "off": 90, "alpha": 0}}
	g := mustGenerator(t, spec, 5)

	// WHEN arrival times are accumulated
	now := g.InitInterval()
	if now < 90 {
		t.Fatalf("first arrival at %v, want after the initial OFF gap of 90", now)
	}
	arrivals := []float64{now}
	for now < 10000 {
		now += g.NextInterval()
		arrivals = append(arrivals, now)
	}

	// THEN roughly one arrival per time unit happens during each ON tenth
	rate := float64(len(arrivals)) / now
	if math.Abs(rate-0.1) > 0.02 {
		t.Errorf("long-run rate = %.4f, want ≈ 0.1", rate)
	}
	if g.MeanInterval() != 10 {
		t.Errorf("MeanInterval() = %v, want 10", g.MeanInterval())
	}
}

func TestOnOffGenerator_HeavyTailedWindowsNonNegative(t *testing.T) {
	spec := DistSpec{Type: DistOnOff, Params: map[string]float64{"mean": 2, "on": 5, "off": 20}}
	g := mustGenerator(t, spec, 9)

	if v := g.InitInterval(); v < 20 {
		t.Errorf("first arrival at %v, want after an OFF gap of at least 20", v)
	}
	for i := 0; i < 2000; i++ {
		if v := g.NextInterval(); v < 0 {
			t.Fatalf("negative interval %v", v)
		}
	}
}

func TestOnOffGenerator_RejectsSmallAlpha(t *testing.T) {
	spec := DistSpec{Type: DistOnOff, Params: map[string]float64{"mean": 2, "on": 5, "off": 20, "alpha": 0.4}}

	if _, err := NewGenerator(spec, newSrc(1)); err == nil {
		t.Error("expected an error for alpha <= 0.5")
	}
}

func TestNewGenerator_SameSeedSameStream(t *testing.T) {
	spec := DistSpec{Type: DistExponential, Params: map[string]float64{"mean": 3}}
	a := mustGenerator(t, spec, 77)
	b := mustGenerator(t, spec, 77)

	for i := 0; i < 100; i++ {
		if va, vb := a.NextInterval(), b.NextInterval(); va != vb {
			t.Fatalf("draw %d differs: %v vs %v", i, va, vb)
		}
	}
}
