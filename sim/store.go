// Implements the PendingStore, which holds all unresolved requests.
// Requests are inserted on arrival and moved out when satisfied or lost.

package sim

import (
	"fmt"
	"strings"
)

// compaction kicks in once a class ordering holds this many slots
// and fewer than half of them are live.
const minCompactSlots = 64

// classQueue keeps one traffic class in insertion order and indexed by source.
type classQueue struct {
	order    []*Request         // insertion order; removed entries are nil
	live     int                // number of non-nil entries in order
	bySource map[int][]*Request // per-source FIFO of live requests
}

func newClassQueue() *classQueue {
	return &classQueue{bySource: make(map[int][]*Request)}
}

// PendingStore owns all Unresolved requests, partitioned by traffic class
// and indexed by (class, source id). Insertion order within a class is
// preserved; strategies that need another order sort a copy.
//
// Not safe for concurrent use; one simulator owns one store.
type PendingStore struct {
	classes [numClasses]*classQueue
}

// NewPendingStore creates an empty store.
func NewPendingStore() *PendingStore {
	s := &PendingStore{}
	for i := range s.classes {
		s.classes[i] = newClassQueue()
	}
	return s
}

// Insert adds an unresolved request at the back of its class.
func (s *PendingStore) Insert(r *Request) {
	if r == nil {
		panic("Insert: request must not be nil")
	}
	if r.slot >= 0 {
		panic(fmt.Sprintf("Insert: %s is already stored", r))
	}
	cq := s.classes[r.Class]
	r.slot = len(cq.order)
	cq.order = append(cq.order, r)
	cq.live++
	cq.bySource[r.SourceID] = append(cq.bySource[r.SourceID], r)
}

// Remove takes a request out of the store. It returns false if the
// request was not stored.
func (s *PendingStore) Remove(r *Request) bool {
	if r == nil || r.slot < 0 {
		return false
	}
	cq := s.classes[r.Class]
	if r.slot >= len(cq.order) || cq.order[r.slot] != r {
		return false
	}
	cq.order[r.slot] = nil
	cq.live--
	r.slot = -1

	queued := cq.bySource[r.SourceID]
	for i, q := range queued {
		if q == r {
			queued = append(queued[:i], queued[i+1:]...)
			break
		}
	}
	if len(queued) == 0 {
		delete(cq.bySource, r.SourceID)
	} else {
		cq.bySource[r.SourceID] = queued
	}

	if len(cq.order) >= minCompactSlots && cq.live*2 < len(cq.order) {
		cq.compact()
	}
	return true
}

func (cq *classQueue) compact() {
	kept := make([]*Request, 0, cq.live)
	for _, r := range cq.order {
		if r != nil {
			r.slot = len(kept)
			kept = append(kept, r)
		}
	}
	cq.order = kept
}

// Class returns the live requests of a class in insertion order.
// The returned slice is a copy; callers may sort it freely.
func (s *PendingStore) Class(c TrafficClass) []*Request {
	cq := s.classes[c]
	out := make([]*Request, 0, cq.live)
	for _, r := range cq.order {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Source returns the live requests of one source, oldest first.
// The returned slice is a copy.
func (s *PendingStore) Source(c TrafficClass, sourceID int) []*Request {
	queued := s.classes[c].bySource[sourceID]
	out := make([]*Request, len(queued))
	copy(out, queued)
	return out
}

// Oldest returns the oldest pending request of a source, or nil.
func (s *PendingStore) Oldest(c TrafficClass, sourceID int) *Request {
	queued := s.classes[c].bySource[sourceID]
	if len(queued) == 0 {
		return nil
	}
	return queued[0]
}

// DrainMatching removes and returns every request matching pred,
// class by class, preserving relative insertion order.
func (s *PendingStore) DrainMatching(pred func(*Request) bool) []*Request {
	var drained []*Request
	for _, c := range Classes {
		drained = append(drained, s.DrainClass(c, pred)...)
	}
	return drained
}

// DrainClass is DrainMatching restricted to one class.
func (s *PendingStore) DrainClass(c TrafficClass, pred func(*Request) bool) []*Request {
	if pred == nil {
		panic("DrainClass: pred must not be nil")
	}
	var drained []*Request
	for _, r := range s.Class(c) {
		if pred(r) {
			drained = append(drained, r)
		}
	}
	for _, r := range drained {
		s.Remove(r)
	}
	return drained
}

// Len returns the number of pending requests of a class.
func (s *PendingStore) Len(c TrafficClass) int {
	return s.classes[c].live
}

// LenSource returns the number of pending requests of one source.
func (s *PendingStore) LenSource(c TrafficClass, sourceID int) int {
	return len(s.classes[c].bySource[sourceID])
}

// Total returns the number of pending requests across all classes.
func (s *PendingStore) Total() int {
	n := 0
	for _, cq := range s.classes {
		n += cq.live
	}
	return n
}

func (s *PendingStore) String() string {
	var sb strings.Builder
	for i, c := range Classes {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s=%d", c, s.Len(c))
	}
	return "[" + sb.String() + "]"
}
