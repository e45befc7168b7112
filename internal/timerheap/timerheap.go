// Package timerheap schedules callbacks to fire at a deadline, backed
// by container/heap the way the original source's
// utils/timer_heap.{h,cpp} layers a std::priority_queue over an
// unordered_map: the heap holds possibly-stale entries, and
// process_expired cross-checks each popped entry's deadline against
// the authoritative map before firing it, so cancel/reschedule never
// have to touch heap internals directly.
package timerheap

import (
	"container/heap"
	"time"
)

// ID identifies a scheduled timer, returned by Schedule for later
// Cancel/Reschedule calls.
type ID uint64

// invalidID mirrors kInvalidTimerId: no timer ever has this value.
const invalidID ID = 0

// Callback is invoked with the timer's ID when it fires.
type Callback func(ID)

type entry struct {
	id       ID
	deadline time.Time
	index    int // heap.Interface bookkeeping
}

type active struct {
	callback Callback
	deadline time.Time // expected deadline, for stale-entry detection
}

// Heap schedules callbacks against an injected clock, so tests can
// drive it without sleeping and a caller can drive it from its own
// tick loop rather than a background goroutine. No other package in
// this module uses it.
type Heap struct {
	nextID ID
	pq     priorityQueue
	active map[ID]*active
}

// New returns an empty timer heap.
func New() *Heap {
	return &Heap{
		nextID: invalidID + 1,
		active: make(map[ID]*active),
	}
}

// ScheduleAt registers callback to fire at the absolute deadline.
func (h *Heap) ScheduleAt(deadline time.Time, callback Callback) ID {
	id := h.nextID
	h.nextID++

	h.active[id] = &active{callback: callback, deadline: deadline}
	heap.Push(&h.pq, &entry{id: id, deadline: deadline})
	return id
}

// ScheduleAfter registers callback to fire after duration elapses from now.
func (h *Heap) ScheduleAfter(now time.Time, duration time.Duration, callback Callback) ID {
	return h.ScheduleAt(now.Add(duration), callback)
}

// Cancel removes a pending timer. Returns false if id is unknown (already
// fired or never scheduled); the stale heap entry, if any, is skipped
// lazily by ProcessExpired rather than removed here.
func (h *Heap) Cancel(id ID) bool {
	if _, ok := h.active[id]; !ok {
		return false
	}
	delete(h.active, id)
	return true
}

// Reschedule moves an existing timer to fire at a new deadline, leaving
// its callback untouched. Returns false if id is unknown.
func (h *Heap) Reschedule(id ID, newDeadline time.Time) bool {
	a, ok := h.active[id]
	if !ok {
		return false
	}
	a.deadline = newDeadline
	heap.Push(&h.pq, &entry{id: id, deadline: newDeadline})
	return true
}

// RescheduleAfter reschedules an existing timer to fire duration after now.
func (h *Heap) RescheduleAfter(id ID, now time.Time, duration time.Duration) bool {
	return h.Reschedule(id, now.Add(duration))
}

// ProcessExpired fires every callback whose deadline is at or before
// now, in deadline order, and returns how many fired. Stale heap
// entries left behind by Cancel/Reschedule are discarded without
// firing.
func (h *Heap) ProcessExpired(now time.Time) int {
	fired := 0
	for h.pq.Len() > 0 {
		top := h.pq[0]
		if top.deadline.After(now) {
			break
		}
		heap.Pop(&h.pq)

		a, ok := h.active[top.id]
		if !ok {
			continue // cancelled
		}
		if !a.deadline.Equal(top.deadline) {
			continue // superseded by a later Reschedule push
		}

		delete(h.active, top.id)
		a.callback(top.id)
		fired++
	}
	return fired
}

// TimeUntilNext returns the duration until the next live timer fires,
// and false if no timer is pending. Stale heap entries are skipped
// without being popped, so this is safe to call repeatedly between
// ProcessExpired calls.
func (h *Heap) TimeUntilNext(now time.Time) (time.Duration, bool) {
	// Heap order only guarantees the root is smallest, and the root may
	// be stale, so every live entry is scanned for the earliest
	// deadline, which is fine since this is a diagnostic/tick-sizing
	// call, not a hot path.
	var earliest time.Time
	found := false
	for _, e := range h.pq {
		a, ok := h.active[e.id]
		if !ok || !a.deadline.Equal(e.deadline) {
			continue
		}
		if !found || e.deadline.Before(earliest) {
			earliest = e.deadline
			found = true
		}
	}
	if !found {
		return 0, false
	}
	if earliest.Before(now) {
		return 0, true
	}
	return earliest.Sub(now), true
}

// Len returns the number of active (non-cancelled) timers.
func (h *Heap) Len() int {
	return len(h.active)
}

// priorityQueue implements container/heap.Interface over *entry,
// ordered by earliest deadline first.
type priorityQueue []*entry

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].deadline.Before(pq[j].deadline) }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*pq)
	*pq = append(*pq, e)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return e
}
