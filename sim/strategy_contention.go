package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/pilot"
)

// The contention strategies do not grant pilots. Every source with a
// pending request transmits its oldest request on a pilot it picks itself;
// the frame settles transmissions at its end, satisfying lone transmitters
// and counting collisions. Each transmission occupies one pilot whatever
// the request's resource cost.

// missedAttempts returns the highest attempt count among pending
// latency-critical requests, capped at pilot.MaxBackoffAttempts.
func missedAttempts(store *PendingStore) int {
	missed := 0
	for _, r := range store.Class(ClassURLLC) {
		missed = max(missed, r.Attempts)
	}
	return min(missed, pilot.MaxBackoffAttempts)
}

// contenders returns the oldest pending request of every source of the class.
func contenders(f *Frame, class TrafficClass) []*Request {
	var out []*Request
	store := f.Store()
	for _, src := range f.Sources(class) {
		if r := store.Oldest(class, src.ID); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// contendable reports whether pilot may carry a transmission from a class
// that does not own its reservation.
func (f *Frame) contendable(pilot int) bool {
	p := &f.pilots[pilot]
	return !p.reserved && p.granted == nil && !p.idleGrant
}

func pick(rng *rand.Rand, candidates []int) int {
	return candidates[rng.IntN(len(candidates))]
}

// backoffContention dedicates an exponentially growing share of the pilots
// to latency-critical traffic once latency-critical requests have collided.
// Without collisions both classes draw uniformly from all pilots.
type backoffContention struct {
	noHooks
	baseShare float64
}

func (*backoffContention) Kind() StrategyKind { return StrategyBackoff }

func (b *backoffContention) Allocate(f *Frame, class TrafficClass) {
	missed := missedAttempts(f.Store())
	dedicated := 0
	if missed > 0 {
		dedicated = pilot.BackoffPilots(b.baseShare, missed, f.Units())
	}

	var candidates []int
	switch {
	case class == ClassURLLC && missed > 0:
		for p := 0; p < dedicated; p++ {
			if f.contendable(p) {
				f.Reserve(p)
				candidates = append(candidates, p)
			}
		}
	default:
		for p := dedicated; p < f.Units(); p++ {
			if f.contendable(p) {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return
	}
	rng := f.Rand()
	for _, r := range contenders(f, class) {
		f.Transmit(r, pick(rng, candidates))
	}
}

// huffmanContention moves collided latency-critical requests through the
// pilot groups given by their source's Huffman sequence. Requests of any
// other class transmit on a random pilot that is still free.
type huffmanContention struct {
	noHooks
	class  TrafficClass
	tree   *pilot.Tree
	stride int
	warned map[int]bool
}

func newHuffmanContention(env StrategyEnv) (*huffmanContention, error) {
	h := &huffmanContention{class: env.Class, stride: env.PilotStride, warned: make(map[int]bool)}
	if h.stride < 1 {
		h.stride = 2
	}
	if env.Class != ClassURLLC || len(env.Sources) == 0 {
		return h, nil
	}
	probs := make([]float64, len(env.Sources))
	for i, src := range env.Sources {
		probs[i] = src.contentionProbability(env.FrameLength)
	}
	tree, err := pilot.Build(probs)
	if err != nil {
		return nil, fmt.Errorf("building huffman tree: %w", err)
	}
	h.tree = tree
	logrus.Debugf("huffman tree over %d sources, root probability %.4f", tree.Len(), tree.RootProb())
	return h, nil
}

func (*huffmanContention) Kind() StrategyKind { return StrategyHuffman }

// Tree returns the assignment tree, nil for non latency-critical classes.
func (h *huffmanContention) Tree() *pilot.Tree { return h.tree }

func (h *huffmanContention) Allocate(f *Frame, class TrafficClass) {
	if f.Units() == 0 {
		return
	}
	if class != ClassURLLC || h.tree == nil {
		h.allocateRandom(f, class)
		return
	}

	// one pilot is always held for latency-critical traffic
	if f.contendable(0) {
		f.Reserve(0)
	}
	for i, src := range f.Sources(class) {
		r := f.Store().Oldest(class, src.ID)
		if r == nil {
			continue
		}
		idx, exhausted := h.tree.PilotIndex(i, r.Attempts)
		if exhausted {
			f.Stats().SequenceExhaustions++
			if !h.warned[src.ID] {
				h.warned[src.ID] = true
				logrus.Warnf("huffman sequence of %s source %d exhausted after %d attempts, collisions can no longer be avoided",
					class, src.ID, r.Attempts)
			}
		}
		p := (h.stride*r.Attempts + idx) % f.Units()
		pl := &f.pilots[p]
		if pl.granted != nil || pl.idleGrant {
			continue
		}
		f.Reserve(p)
		f.Transmit(r, p)
	}
}

func (h *huffmanContention) allocateRandom(f *Frame, class TrafficClass) {
	free := f.FreePilots()
	if len(free) == 0 {
		return
	}
	rng := f.Rand()
	for _, r := range contenders(f, class) {
		f.Transmit(r, pick(rng, free))
	}
}
