// Package pilot builds deterministic pilot assignments for contention-based
// access: the Huffman retry tree and the exponential back-off pilot share.
// It has no dependencies on sim/.
package pilot

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

// ErrNoSources is returned when a tree is requested for zero sources.
var ErrNoSources = errors.New("pilot: at least one source probability is required")

// node is a Huffman tree node. Leaves carry the source index.
type node struct {
	prob   float64
	source int // leaf source index, -1 for internal nodes
	order  int // creation order, breaks probability ties
	left   *node
	right  *node
	parent *node
	bit    uint8 // edge label from parent: 0 left, 1 right
}

// nodeHeap orders nodes by probability, then creation order.
type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].prob != h[j].prob {
		return h[i].prob < h[j].prob
	}
	return h[i].order < h[j].order
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Tree is a strict binary tree with one leaf per source. The root-to-leaf
// path of a source is its pilot sequence: at retry k a collided source
// moves to the pilot group selected by the k-th bit, so sources that keep
// colliding are split apart one tree level per retry.
type Tree struct {
	root      *node
	leaves    []*node
	sequences [][]uint8
}

// CombineProb is the probability that at least one of two independent
// contenders transmits.
func CombineProb(a, b float64) float64 {
	return 1 - (1-a)*(1-b)
}

// Build creates the tree from per-source contention probabilities.
// The two least likely subtrees are merged first; ties go to the subtree
// created first.
func Build(probabilities []float64) (*Tree, error) {
	if len(probabilities) == 0 {
		return nil, ErrNoSources
	}
	t := &Tree{leaves: make([]*node, len(probabilities))}
	h := make(nodeHeap, 0, len(probabilities))
	for i, p := range probabilities {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("pilot: probability of source %d must be in [0, 1], got %v", i, p)
		}
		leaf := &node{prob: p, source: i, order: i}
		t.leaves[i] = leaf
		h = append(h, leaf)
	}
	heap.Init(&h)

	order := len(probabilities)
	for h.Len() > 1 {
		n1 := heap.Pop(&h).(*node)
		n2 := heap.Pop(&h).(*node)
		parent := &node{
			prob:   CombineProb(n1.prob, n2.prob),
			source: -1,
			order:  order,
			right:  n1,
			left:   n2,
		}
		order++
		n1.parent, n1.bit = parent, 1
		n2.parent, n2.bit = parent, 0
		heap.Push(&h, parent)
	}
	t.root = heap.Pop(&h).(*node)
	t.sequences = t.extractSequences()
	return t, nil
}

// extractSequences walks every leaf up to the root, collecting edge bits in
// leaf-to-root order, then reverses them so index 0 is the root-adjacent bit.
func (t *Tree) extractSequences() [][]uint8 {
	seqs := make([][]uint8, len(t.leaves))
	for i, leaf := range t.leaves {
		var bits []uint8
		for n := leaf; n.parent != nil; n = n.parent {
			bits = append(bits, n.bit)
		}
		for l, r := 0, len(bits)-1; l < r; l, r = l+1, r-1 {
			bits[l], bits[r] = bits[r], bits[l]
		}
		seqs[i] = bits
	}
	return seqs
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return len(t.leaves) }

// RootProb returns the probability that at least one source contends.
func (t *Tree) RootProb() float64 { return t.root.prob }

// Sequence returns the pilot sequence of source i, root bit first.
func (t *Tree) Sequence(i int) []uint8 {
	out := make([]uint8, len(t.sequences[i]))
	copy(out, t.sequences[i])
	return out
}

// Sequences returns the pilot sequences of all sources.
func (t *Tree) Sequences() [][]uint8 {
	out := make([][]uint8, len(t.sequences))
	for i := range t.sequences {
		out[i] = t.Sequence(i)
	}
	return out
}

// Depth returns the code length of source i.
func (t *Tree) Depth(i int) int { return len(t.sequences[i]) }

// PilotIndex returns the dedicated pilot index of source i for its
// attempt-th retry. Retries beyond the code length wrap around; exhausted
// reports that case, since deeper contention than the tree depth can no
// longer be separated by this scheme. A single-source tree has an empty
// sequence and always maps to index 0.
func (t *Tree) PilotIndex(i, attempt int) (index int, exhausted bool) {
	seq := t.sequences[i]
	if len(seq) == 0 {
		return 0, false
	}
	if attempt < 0 {
		attempt = 0
	}
	return int(seq[attempt%len(seq)]), attempt >= len(seq)
}
