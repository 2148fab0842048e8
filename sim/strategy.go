package sim

import (
	"fmt"
	"sort"
)

// Strategy decides, once per frame and per traffic class, which pending
// requests get resource units. A strategy is selected once at construction
// and bound to one class.
//
// Allocate is called after the expiration sweep, so it never sees an
// expired request. It must only claim units through the Frame, which
// enforces the per-frame budget and lets the next class run on the residual.
type Strategy interface {
	Kind() StrategyKind
	// HandleArrival is called after r was inserted into the store.
	HandleArrival(r *Request)
	// HandleExpired is called after r was swept out as lost.
	HandleExpired(r *Request)
	Allocate(f *Frame, class TrafficClass)
}

// StrategyKind enumerates the allocation strategies.
type StrategyKind int

const (
	// StrategyFCFS serves the soonest-to-expire request first.
	StrategyFCFS StrategyKind = iota
	// StrategyEDF is earliest-deadline-first; same ordering as StrategyFCFS.
	StrategyEDF
	// StrategyFIFO serves in literal arrival order.
	StrategyFIFO
	// StrategyRoundRobin walks sources in id order and drains each active one.
	StrategyRoundRobin
	// StrategyRoundRobinNoInfo grants one request per source visit from a
	// cursor that persists across frames, without backlog visibility.
	StrategyRoundRobinNoInfo
	// StrategyBackoff is random-access contention with exponential back-off
	// of the latency-critical pilot share.
	StrategyBackoff
	// StrategyHuffman is contention with Huffman-coded retry pilots.
	StrategyHuffman
)

// strategyNames maps accepted strategy names. Empty defaults to fcfs.
var strategyNames = map[string]StrategyKind{
	"":          StrategyFCFS,
	"fcfs":      StrategyFCFS,
	"edf":       StrategyEDF,
	"fifo":      StrategyFIFO,
	"rr":        StrategyRoundRobin,
	"rr-noinfo": StrategyRoundRobinNoInfo,
	"backoff":   StrategyBackoff,
	"huffman":   StrategyHuffman,
}

func (k StrategyKind) String() string {
	for name, kind := range strategyNames {
		if kind == k && name != "" {
			return name
		}
	}
	return fmt.Sprintf("StrategyKind(%d)", int(k))
}

// Contention reports whether the strategy lets requests collide.
func (k StrategyKind) Contention() bool {
	return k == StrategyBackoff || k == StrategyHuffman
}

// IsValidStrategy returns true if name is a recognized strategy name.
func IsValidStrategy(name string) bool {
	_, ok := strategyNames[name]
	return ok
}

// StrategyNames returns the recognized strategy names, sorted, excluding "".
func StrategyNames() []string {
	names := make([]string, 0, len(strategyNames))
	for name := range strategyNames {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ParseStrategy resolves a strategy name.
func ParseStrategy(name string) (StrategyKind, error) {
	kind, ok := strategyNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown strategy %q (valid: %v)", ErrInvalidConfig, name, StrategyNames())
	}
	return kind, nil
}

// StrategyEnv carries what a strategy may need at construction.
type StrategyEnv struct {
	Class       TrafficClass
	Sources     []*Source
	FrameLength float64
	// FrameLoops is the round-robin cursor reset period in frames.
	FrameLoops int64
	// BaseShare is the initial latency-critical pilot share for back-off.
	BaseShare float64
	// PilotStride separates the Huffman retry pilot groups.
	PilotStride int
}

// NewStrategy creates a strategy of the given kind bound to env.Class.
func NewStrategy(kind StrategyKind, env StrategyEnv) (Strategy, error) {
	switch kind {
	case StrategyFCFS, StrategyEDF:
		return &deadlineScheduler{kind: kind}, nil
	case StrategyFIFO:
		return &fifoScheduler{}, nil
	case StrategyRoundRobin:
		return &roundRobin{}, nil
	case StrategyRoundRobinNoInfo:
		loops := env.FrameLoops
		if loops < 1 {
			loops = 1
		}
		return &roundRobinNoInfo{frameLoops: loops}, nil
	case StrategyBackoff:
		if env.BaseShare <= 0 || env.BaseShare > 1 {
			return nil, fmt.Errorf("%w: base share must be in (0, 1], got %v", ErrInvalidConfig, env.BaseShare)
		}
		return &backoffContention{baseShare: env.BaseShare}, nil
	case StrategyHuffman:
		return newHuffmanContention(env)
	default:
		return nil, fmt.Errorf("%w: unhandled strategy %d", ErrInvalidConfig, int(kind))
	}
}

// noHooks provides no-op arrival and expiry hooks.
type noHooks struct{}

func (noHooks) HandleArrival(*Request) {}
func (noHooks) HandleExpired(*Request) {}
