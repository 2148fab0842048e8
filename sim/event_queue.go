package sim

import (
	"container/heap"
	"errors"
)

// ErrEmptyQueue is returned by Pop on an empty queue.
var ErrEmptyQueue = errors.New("event queue is empty")

// eventHeap implements heap.Interface over events.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventHeap []*Event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// EventQueue is a min-heap of events with deterministic ordering.
// Ordering: fire time → kind → push sequence.
// The sequence counter is owned by the queue, so two queues fed the same
// pushes pop in the same order regardless of what else runs in the process.
type EventQueue struct {
	events eventHeap
	seq    uint64
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{events: make(eventHeap, 0)}
	heap.Init(&q.events)
	return q
}

// Push schedules a new event and returns the sequence number it was given.
func (q *EventQueue) Push(kind EventKind, fireTime float64, deadTime *float64, sourceID int) uint64 {
	q.seq++
	heap.Push(&q.events, &Event{
		Kind:     kind,
		FireTime: fireTime,
		DeadTime: deadTime,
		SourceID: sourceID,
		Sequence: q.seq,
	})
	return q.seq
}

// Pop removes and returns the globally earliest event.
func (q *EventQueue) Pop() (Event, error) {
	if len(q.events) == 0 {
		return Event{}, ErrEmptyQueue
	}
	return *heap.Pop(&q.events).(*Event), nil
}

// Peek returns the next event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return *q.events[0], true
}

// Len returns the number of scheduled events.
func (q *EventQueue) Len() int {
	return len(q.events)
}
