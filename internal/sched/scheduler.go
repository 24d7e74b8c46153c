package sched

import (
	"fmt"

	"github.com/tidwall/btree"

	"norn/internal/common"
)

// EventID identifies a scheduled event for cancellation. Ids double as the
// enqueue sequence number, so equal-time events dispatch in the order they
// were scheduled.
type EventID uint64

// Event is a timestamped unit of simulation work. Ordering is the pure
// function (Time, ID): time primary, enqueue sequence secondary. That total
// order is the whole determinism story, so nothing else may influence it.
type Event struct {
	ID      EventID
	Time    common.Time
	Payload Payload
}

// DispatchFunc consumes one popped event. Dispatch may schedule new events;
// they become visible to subsequent pops, never to the running dispatch.
type DispatchFunc func(ev Event)

// Scheduler is the deterministic min-priority queue driving the simulated
// clock. It is single-threaded by contract: exactly one event is dispatched
// at a time and every scheduling call is funneled through the owning
// simulation.
type Scheduler struct {
	queue *btree.BTreeG[*Event]
	index map[EventID]*Event
	seq   uint64
	clock common.Time
}

// New builds an empty scheduler with the clock at the run epoch.
func New() *Scheduler {
	queue := btree.NewBTreeG(func(a, b *Event) bool {
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
	return &Scheduler{
		queue: queue,
		index: make(map[EventID]*Event),
	}
}

// Now returns the current simulated time: the timestamp of the event being
// (or last) dispatched. Monotonically non-decreasing for the life of the
// run.
func (s *Scheduler) Now() common.Time { return s.clock }

// Len returns the number of pending events.
func (s *Scheduler) Len() int { return s.queue.Len() }

// NextTime peeks at the timestamp of the next event without dispatching.
func (s *Scheduler) NextTime() (common.Time, bool) {
	ev, ok := s.queue.Min()
	if !ok {
		return 0, false
	}
	return ev.Time, true
}

// Schedule enqueues work at the given simulated time. Scheduling into the
// past fails with ErrInvalidTime; the caller must not retry with the same
// timestamp.
func (s *Scheduler) Schedule(at common.Time, payload Payload) (EventID, error) {
	if at < s.clock {
		return 0, fmt.Errorf("%w: %v before clock %v", common.ErrInvalidTime, at, s.clock)
	}
	s.seq++
	ev := &Event{ID: EventID(s.seq), Time: at, Payload: payload}
	s.queue.Set(ev)
	s.index[ev.ID] = ev
	return ev.ID, nil
}

// Cancel removes a pending event before dispatch. Returns false if the
// event was already dispatched or cancelled; once dispatch begins an event
// always runs to completion.
func (s *Scheduler) Cancel(id EventID) bool {
	ev, ok := s.index[id]
	if !ok {
		return false
	}
	delete(s.index, id)
	s.queue.Delete(ev)
	return true
}

// Step pops and dispatches exactly one event, advancing the clock to its
// timestamp. Returns false if the queue is empty. Exposed for debugging
// and tooling.
func (s *Scheduler) Step(dispatch DispatchFunc) bool {
	ev, ok := s.queue.PopMin()
	if !ok {
		return false
	}
	delete(s.index, ev.ID)
	s.clock = ev.Time
	dispatch(*ev)
	return true
}

// RunUntil dispatches events in (time, sequence) order until the queue is
// empty or the next event lies beyond the horizon. Events enqueued during a
// dispatch participate in the same run. Returns the number of events
// dispatched.
func (s *Scheduler) RunUntil(horizon common.Time, dispatch DispatchFunc) int {
	dispatched := 0
	for {
		next, ok := s.queue.Min()
		if !ok || next.Time > horizon {
			return dispatched
		}
		s.Step(dispatch)
		dispatched++
	}
}
