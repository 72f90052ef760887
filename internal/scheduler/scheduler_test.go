package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceRunsEventsInTimeOrder(t *testing.T) {
	q := New()

	var order []string
	q.Schedule(30*time.Millisecond, func() { order = append(order, "c") })
	q.Schedule(10*time.Millisecond, func() { order = append(order, "a") })
	q.Schedule(20*time.Millisecond, func() { order = append(order, "b") })

	q.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSameInstantRunsInInsertionOrder(t *testing.T) {
	q := New()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		q.Schedule(5*time.Millisecond, func() { order = append(order, i) })
	}

	q.Advance(5 * time.Millisecond)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestAdvanceStopsAtTarget(t *testing.T) {
	q := New()

	ran := false
	q.Schedule(100*time.Millisecond, func() { ran = true })

	q.Advance(99 * time.Millisecond)
	require.False(t, ran)
	assert.Equal(t, 99*time.Millisecond, q.Now())
	assert.Equal(t, 1, q.Len())

	q.Advance(1 * time.Millisecond)
	assert.True(t, ran)
	assert.Equal(t, 100*time.Millisecond, q.Now())
	assert.Equal(t, 0, q.Len())
}

func TestClockReflectsEventTimeDuringExecution(t *testing.T) {
	q := New()

	var seen []time.Duration
	q.Schedule(10*time.Millisecond, func() { seen = append(seen, q.Now()) })
	q.Schedule(25*time.Millisecond, func() { seen = append(seen, q.Now()) })

	q.Advance(time.Second)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 25 * time.Millisecond}, seen)
	assert.Equal(t, time.Second, q.Now())
}

func TestEventsScheduledDuringRunExecuteInWindow(t *testing.T) {
	q := New()

	var hops int
	var rearm func()
	rearm = func() {
		hops++
		if hops < 5 {
			q.Schedule(10*time.Millisecond, rearm)
		}
	}
	q.Schedule(10*time.Millisecond, rearm)

	q.Advance(50 * time.Millisecond)
	assert.Equal(t, 5, hops)
}

func TestNegativeDelayRunsAtCurrentInstant(t *testing.T) {
	q := New()
	q.Advance(time.Second)

	var at time.Duration
	q.Schedule(-time.Hour, func() { at = q.Now() })
	q.Advance(0)
	assert.Equal(t, time.Second, at)
}
