package sim

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// TrafficGenerator produces inter-arrival intervals for one source.
// Implementations live in sim/workload; the engine only pulls floats.
type TrafficGenerator interface {
	// NextInterval returns the time until the next arrival.
	NextInterval() float64
	// InitInterval returns the time until the first arrival. It is usually
	// drawn from a more dispersed distribution to desynchronize sources.
	InitInterval() float64
}

// MeanIntervaler is implemented by generators that know their mean
// inter-arrival time. Used to derive contention probabilities.
type MeanIntervaler interface {
	MeanInterval() float64
}

// SourceProfile holds the per-source parameters shared by a group of sources.
type SourceProfile struct {
	ResourceCost   int     // resource units needed per request (>= 1)
	DeadlineOffset float64 // deadline relative to arrival (>= 0)
	BufferSize     int     // max pending requests per source, 0 = unbounded (bulk class only)
	// ContentionProb is the per-frame probability that the source transmits.
	// Zero means "derive it from the generator mean".
	ContentionProb float64
}

// Source is a long-lived traffic-generating node.
type Source struct {
	ID    int
	Class TrafficClass
	SourceProfile
	Generator TrafficGenerator

	arrivals int64
}

// NewSource validates the profile and creates a source.
func NewSource(id int, class TrafficClass, profile SourceProfile, gen TrafficGenerator) (*Source, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: source %s/%d has no traffic generator", ErrInvalidConfig, class, id)
	}
	if profile.ResourceCost < 1 {
		return nil, fmt.Errorf("%w: source %s/%d resource cost must be >= 1, got %d", ErrInvalidConfig, class, id, profile.ResourceCost)
	}
	if profile.DeadlineOffset < 0 || math.IsNaN(profile.DeadlineOffset) {
		return nil, fmt.Errorf("%w: source %s/%d deadline must be >= 0, got %v", ErrInvalidConfig, class, id, profile.DeadlineOffset)
	}
	if profile.BufferSize < 0 {
		return nil, fmt.Errorf("%w: source %s/%d buffer must be >= 0, got %d", ErrInvalidConfig, class, id, profile.BufferSize)
	}
	if profile.BufferSize > 0 && class != ClassMMTC {
		return nil, fmt.Errorf("%w: source %s/%d: per-source buffers apply to the %s class only", ErrInvalidConfig, class, id, ClassMMTC)
	}
	if profile.ContentionProb < 0 || profile.ContentionProb > 1 {
		return nil, fmt.Errorf("%w: source %s/%d contention probability must be in [0, 1], got %v", ErrInvalidConfig, class, id, profile.ContentionProb)
	}
	return &Source{ID: id, Class: class, SourceProfile: profile, Generator: gen}, nil
}

// contentionProbability returns the per-frame transmit probability of the source.
func (s *Source) contentionProbability(frameLength float64) float64 {
	if s.ContentionProb > 0 {
		return s.ContentionProb
	}
	if m, ok := s.Generator.(MeanIntervaler); ok && m.MeanInterval() > 0 {
		return math.Min(1, frameLength/m.MeanInterval())
	}
	return 1
}

// nextRequest materializes the arrival that fired at now.
func (s *Source) nextRequest(now float64, seq uint64) *Request {
	s.arrivals++
	r := NewRequest(s.Class, s.ID, s.arrivals, now, now+s.DeadlineOffset, s.ResourceCost)
	r.Sequence = seq
	return r
}

func sanitizeInterval(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
