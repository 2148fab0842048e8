package workload

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Generator produces inter-arrival intervals for one traffic source.
type Generator interface {
	// NextInterval returns the time until the next arrival.
	NextInterval() float64
	// InitInterval returns the time until the first arrival. It is drawn
	// from a more dispersed distribution so that sources start out of phase.
	InitInterval() float64
	// MeanInterval returns the long-run mean of NextInterval.
	MeanInterval() float64
}

// NewGenerator creates a Generator from a spec. src must be owned by the
// caller's source alone so streams stay independent.
func NewGenerator(spec DistSpec, src rand.Source) (Generator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Type {
	case DistExponential:
		mean := spec.Params["mean"]
		return &ExponentialGenerator{
			mean: mean,
			dist: distuv.Exponential{Rate: 1 / mean, Src: src},
		}, nil
	case DistConstant:
		period := spec.Params["period"]
		return &ConstantGenerator{
			period: period,
			next:   distuv.Normal{Mu: period, Sigma: period * spec.Param("jitter", 0.05), Src: src},
			init:   distuv.Normal{Mu: period, Sigma: period * spec.Param("init_jitter", 0.5), Src: src},
		}, nil
	case DistUniform:
		return &UniformGenerator{
			dist: distuv.Uniform{Min: 0, Max: spec.Params["max"], Src: src},
		}, nil
	case DistOnOff:
		return newOnOffGenerator(spec, src)
	default:
		return nil, fmt.Errorf("unhandled distribution %q", spec.Type)
	}
}

// ExponentialGenerator produces exponentially distributed intervals (Poisson arrivals).
type ExponentialGenerator struct {
	mean float64
	dist distuv.Exponential
}

func (g *ExponentialGenerator) NextInterval() float64 { return g.dist.Rand() }
func (g *ExponentialGenerator) InitInterval() float64 { return g.dist.Rand() }
func (g *ExponentialGenerator) MeanInterval() float64 { return g.mean }

// ConstantGenerator produces periodic intervals with Gaussian jitter. The
// first interval uses a much wider jitter to desynchronize sources.
// Intervals are never negative.
type ConstantGenerator struct {
	period float64
	next   distuv.Normal
	init   distuv.Normal
}

func (g *ConstantGenerator) NextInterval() float64 { return math.Max(g.next.Rand(), 0) }
func (g *ConstantGenerator) InitInterval() float64 { return math.Max(g.init.Rand(), 0) }
func (g *ConstantGenerator) MeanInterval() float64 { return g.period }

// UniformGenerator produces intervals uniform on [0, max).
type UniformGenerator struct {
	dist distuv.Uniform
}

func (g *UniformGenerator) NextInterval() float64 { return g.dist.Rand() }
func (g *UniformGenerator) InitInterval() float64 { return g.dist.Rand() }
func (g *UniformGenerator) MeanInterval() float64 { return g.dist.Mean() }

// OnOffGenerator switches between ON windows, during which arrivals are
// exponential, and silent OFF gaps. Window lengths are Pareto distributed
// with the configured on/off length as their minimum, or constant when
// alpha is 0. Every source starts OFF.
type OnOffGenerator struct {
	mean     float64
	on, off  float64
	arrivals distuv.Exponential
	onDist   *distuv.Pareto
	offDist  *distuv.Pareto
	initOff  *distuv.Pareto
	onLeft   float64
}

func newOnOffGenerator(spec DistSpec, src rand.Source) (*OnOffGenerator, error) {
	g := &OnOffGenerator{
		mean:     spec.Params["mean"],
		on:       spec.Params["on"],
		off:      spec.Params["off"],
		arrivals: distuv.Exponential{Rate: 1 / spec.Params["mean"], Src: src},
	}
	alpha := spec.Param("alpha", 1.5)
	if alpha > 0 {
		if alpha <= 0.5 {
			return nil, fmt.Errorf("onoff distribution: alpha must exceed 0.5, got %v", alpha)
		}
		g.onDist = &distuv.Pareto{Xm: g.on, Alpha: alpha, Src: src}
		g.offDist = &distuv.Pareto{Xm: g.off, Alpha: alpha, Src: src}
		g.initOff = &distuv.Pareto{Xm: g.off, Alpha: alpha - 0.5, Src: src}
	}
	return g, nil
}

func (g *OnOffGenerator) onLength() float64 {
	if g.onDist == nil {
		return g.on
	}
	return g.onDist.Rand()
}

func (g *OnOffGenerator) offLength() float64 {
	if g.offDist == nil {
		return g.off
	}
	return g.offDist.Rand()
}

// advance returns elapsed plus the time to the next arrival, skipping over
// the remainder of the current window and any OFF gaps.
func (g *OnOffGenerator) advance(elapsed float64) float64 {
	for {
		gap := g.arrivals.Rand()
		if gap <= g.onLeft {
			g.onLeft -= gap
			return elapsed + gap
		}
		elapsed += g.onLeft + g.offLength()
		g.onLeft = g.onLength()
	}
}

func (g *OnOffGenerator) NextInterval() float64 { return g.advance(0) }

func (g *OnOffGenerator) InitInterval() float64 {
	first := g.off
	if g.initOff != nil {
		first = g.initOff.Rand()
	}
	g.onLeft = g.onLength()
	return g.advance(first)
}

// MeanInterval returns the mean interval assuming constant windows.
func (g *OnOffGenerator) MeanInterval() float64 {
	return g.mean * (g.on + g.off) / g.on
}

