package sim

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_PopOnEmpty_ReturnsErrEmptyQueue(t *testing.T) {
	q := NewEventQueue()

	_, err := q.Pop()

	assert.True(t, errors.Is(err, ErrEmptyQueue))
}

func TestEventQueue_PopsInNonDecreasingTime(t *testing.T) {
	// GIVEN 500 events pushed at random times and kinds
	q := NewEventQueue()
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 500; i++ {
		q.Push(EventKind(rng.IntN(4)), float64(rng.IntN(50)), nil, i)
	}

	// WHEN all events are popped
	// THEN fire times never decrease, and equal (time, kind) pairs pop in push order
	prev, err := q.Pop()
	require.NoError(t, err)
	for q.Len() > 0 {
		ev, err := q.Pop()
		require.NoError(t, err)
		require.False(t, ev.before(&prev), "%s popped after %s", ev, prev)
		if ev.FireTime == prev.FireTime && ev.Kind == prev.Kind {
			assert.Greater(t, ev.Sequence, prev.Sequence)
		}
		prev = ev
	}
}

func TestEventQueue_SameTimeSameKind_FIFO(t *testing.T) {
	// GIVEN three arrivals at the same time from sources 3, 1, 2
	q := NewEventQueue()
	for _, id := range []int{3, 1, 2} {
		q.Push(EventArrivalMMTC, 5, nil, id)
	}

	// WHEN popped
	var got []int
	for q.Len() > 0 {
		ev, err := q.Pop()
		require.NoError(t, err)
		got = append(got, ev.SourceID)
	}

	// THEN they come out in push order, not by source id
	assert.Equal(t, []int{3, 1, 2}, got)
}

func TestEventQueue_SameTime_KindPriority(t *testing.T) {
	// GIVEN a measurement, a frame boundary and two arrivals at t=2, pushed in reverse priority
	q := NewEventQueue()
	q.Push(EventMeasurement, 2, nil, 0)
	q.Push(EventFrameBoundary, 2, nil, 0)
	q.Push(EventArrivalMMTC, 2, nil, 0)
	q.Push(EventArrivalURLLC, 2, nil, 0)

	// WHEN popped
	var got []EventKind
	for q.Len() > 0 {
		ev, _ := q.Pop()
		got = append(got, ev.Kind)
	}

	// THEN arrivals precede the frame boundary, which precedes the measurement
	assert.Equal(t, []EventKind{EventArrivalURLLC, EventArrivalMMTC, EventFrameBoundary, EventMeasurement}, got)
}

func TestEventQueue_PeekDoesNotRemove(t *testing.T) {
	q := NewEventQueue()
	dead := 4.0
	q.Push(EventArrivalURLLC, 1, &dead, 9)

	ev, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 9, ev.SourceID)
	require.NotNil(t, ev.DeadTime)
	assert.Equal(t, 4.0, *ev.DeadTime)
}

func TestEventQueue_IdenticalPushes_IdenticalOrder(t *testing.T) {
	// GIVEN two queues fed the same pushes
	push := func(q *EventQueue) {
		for i := 0; i < 20; i++ {
			q.Push(EventKind(i%4), float64(i%3), nil, i)
		}
	}
	a, b := NewEventQueue(), NewEventQueue()
	push(a)
	push(b)

	// THEN they pop identically
	for a.Len() > 0 {
		ea, _ := a.Pop()
		eb, _ := b.Pop()
		assert.Equal(t, ea, eb)
	}
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "FrameBoundary", EventFrameBoundary.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
	assert.Equal(t, EventArrivalURLLC, ArrivalKind(ClassURLLC))
	assert.Equal(t, EventArrivalMMTC, ArrivalKind(ClassMMTC))
}
