package scheduler

import (
	"container/heap"
	"time"
)

// Queue is a discrete-event queue driven by a single logical clock. Every
// timer interval, transmission delay and mobility tick in the simulation is
// an entry here; Advance pops and executes them in order.
//
// Events scheduled for the same instant run in insertion order, so a run
// with a fixed seed always produces the same event interleaving.
type Queue struct {
	now    time.Duration
	nextID uint64
	events eventHeap
}

type event struct {
	at  time.Duration
	seq uint64 // insertion order, tie-break for equal timestamps
	fn  func()
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

func New() *Queue {
	return &Queue{}
}

// Now returns the current simulated time.
func (q *Queue) Now() time.Duration {
	return q.now
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Schedule registers fn to run after the given simulated delay. A
// non-positive delay schedules fn for the current instant; it still runs
// after everything already queued for that instant.
func (q *Queue) Schedule(after time.Duration, fn func()) {
	if after < 0 {
		after = 0
	}
	q.nextID++
	heap.Push(&q.events, &event{at: q.now + after, seq: q.nextID, fn: fn})
}

// Advance runs every event due within the next d of simulated time, in
// (time, insertion) order, then moves the clock to exactly now+d. Events an
// executing event schedules inside the window run in the same pass.
func (q *Queue) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	target := q.now + d
	for len(q.events) > 0 && q.events[0].at <= target {
		ev := heap.Pop(&q.events).(*event)
		q.now = ev.at
		ev.fn()
	}
	q.now = target
}
