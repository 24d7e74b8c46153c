package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norn/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

func schedule(t *testing.T, s *Scheduler, at common.Time, agent common.AgentID) EventID {
	t.Helper()
	id, err := s.Schedule(at, AgentWakeup{Agent: agent})
	require.NoError(t, err)
	return id
}

func drain(s *Scheduler, horizon common.Time) []Event {
	var popped []Event
	s.RunUntil(horizon, func(ev Event) {
		popped = append(popped, ev)
	})
	return popped
}

// --- Tests ------------------------------------------------------------------

// Events at times [5, 5, 3], submitted in that order, must dispatch the 3
// first and then the two 5s in enqueue order: time primary, sequence
// secondary.
func TestRunUntil_TimeThenSequenceOrder(t *testing.T) {
	s := New()
	first := schedule(t, s, 5, "a")
	second := schedule(t, s, 5, "b")
	third := schedule(t, s, 3, "c")

	popped := drain(s, 10)
	require.Len(t, popped, 3)
	assert.Equal(t, []EventID{third, first, second},
		[]EventID{popped[0].ID, popped[1].ID, popped[2].ID})
	assert.Equal(t, common.Time(3), popped[0].Time)
	assert.Equal(t, common.Time(5), popped[1].Time)
}

func TestSchedule_RejectsPast(t *testing.T) {
	s := New()
	schedule(t, s, 10, "a")
	s.Step(func(Event) {})
	assert.Equal(t, common.Time(10), s.Now())

	_, err := s.Schedule(9, AgentWakeup{Agent: "late"})
	assert.ErrorIs(t, err, common.ErrInvalidTime)

	// Scheduling at exactly the current clock is allowed.
	_, err = s.Schedule(10, AgentWakeup{Agent: "now"})
	assert.NoError(t, err)
}

func TestCancel_RemovesPendingOnly(t *testing.T) {
	s := New()
	keep := schedule(t, s, 5, "keep")
	drop := schedule(t, s, 4, "drop")

	assert.True(t, s.Cancel(drop))
	assert.False(t, s.Cancel(drop))

	popped := drain(s, 10)
	require.Len(t, popped, 1)
	assert.Equal(t, keep, popped[0].ID)
	// Already dispatched: too late to cancel.
	assert.False(t, s.Cancel(keep))
}

// Events enqueued during a dispatch are visible to later pops in the same
// run, never to the running dispatch.
func TestRunUntil_DispatchMaySchedule(t *testing.T) {
	s := New()
	schedule(t, s, 1, "seed")

	var seen []common.AgentID
	s.RunUntil(10, func(ev Event) {
		wake := ev.Payload.(AgentWakeup)
		seen = append(seen, wake.Agent)
		if wake.Agent == "seed" {
			_, err := s.Schedule(s.Now(), AgentWakeup{Agent: "child"})
			require.NoError(t, err)
		}
	})
	assert.Equal(t, []common.AgentID{"seed", "child"}, seen)
}

func TestRunUntil_StopsAtHorizon(t *testing.T) {
	s := New()
	schedule(t, s, 5, "in")
	schedule(t, s, 15, "out")

	popped := drain(s, 10)
	require.Len(t, popped, 1)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, common.Time(5), s.Now())

	next, ok := s.NextTime()
	require.True(t, ok)
	assert.Equal(t, common.Time(15), next)
}

func TestClock_MonotonicAcrossDispatches(t *testing.T) {
	s := New()
	for _, at := range []common.Time{7, 2, 9, 2, 4} {
		schedule(t, s, at, "a")
	}

	var clocks []common.Time
	s.RunUntil(100, func(Event) {
		clocks = append(clocks, s.Now())
	})
	require.Len(t, clocks, 5)
	for i := 1; i < len(clocks); i++ {
		assert.GreaterOrEqual(t, clocks[i], clocks[i-1])
	}
}
