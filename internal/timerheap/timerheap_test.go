package timerheap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFiresInDeadlineOrder(t *testing.T) {
	h := New()
	base := time.Unix(1000, 0)

	var fired []ID
	a := h.ScheduleAt(base.Add(3*time.Second), func(id ID) { fired = append(fired, id) })
	b := h.ScheduleAt(base.Add(1*time.Second), func(id ID) { fired = append(fired, id) })
	c := h.ScheduleAt(base.Add(2*time.Second), func(id ID) { fired = append(fired, id) })

	n := h.ProcessExpired(base.Add(5 * time.Second))
	require.Equal(t, 3, n)
	require.Equal(t, []ID{b, c, a}, fired)
}

func TestProcessExpiredOnlyFiresDue(t *testing.T) {
	h := New()
	base := time.Unix(0, 0)

	h.ScheduleAt(base.Add(10*time.Second), func(ID) {})
	n := h.ProcessExpired(base.Add(5 * time.Second))
	require.Equal(t, 0, n)
	require.Equal(t, 1, h.Len())
}

func TestCancelPreventsFiring(t *testing.T) {
	h := New()
	base := time.Unix(0, 0)

	fired := false
	id := h.ScheduleAt(base.Add(time.Second), func(ID) { fired = true })
	require.True(t, h.Cancel(id))
	require.False(t, h.Cancel(id)) // already cancelled

	h.ProcessExpired(base.Add(2 * time.Second))
	require.False(t, fired)
}

func TestRescheduleMovesDeadlineAndDropsStaleEntry(t *testing.T) {
	h := New()
	base := time.Unix(0, 0)

	count := 0
	id := h.ScheduleAt(base.Add(time.Second), func(ID) { count++ })
	require.True(t, h.Reschedule(id, base.Add(3*time.Second)))

	h.ProcessExpired(base.Add(2 * time.Second))
	require.Equal(t, 0, count, "should not fire at the stale deadline")

	h.ProcessExpired(base.Add(4 * time.Second))
	require.Equal(t, 1, count)
}

func TestTimeUntilNextSkipsCancelled(t *testing.T) {
	h := New()
	base := time.Unix(0, 0)

	near := h.ScheduleAt(base.Add(time.Second), func(ID) {})
	h.ScheduleAt(base.Add(5*time.Second), func(ID) {})
	h.Cancel(near)

	d, ok := h.TimeUntilNext(base)
	require.True(t, ok)
	require.Equal(t, 5*time.Second, d)
}

func TestTimeUntilNextEmpty(t *testing.T) {
	h := New()
	_, ok := h.TimeUntilNext(time.Unix(0, 0))
	require.False(t, ok)
}
