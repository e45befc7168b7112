package retransmit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertAndAcknowledge(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{})

	require.True(t, b.Insert(1, []byte{1, 2, 3, 4}, now))
	require.Equal(t, 1, b.PendingCount())
	require.Equal(t, uint64(4), b.BufferedBytes())

	now = now.Add(50 * time.Millisecond)
	require.True(t, b.Acknowledge(1, now))
	require.Equal(t, 0, b.PendingCount())
	require.Equal(t, uint64(0), b.BufferedBytes())
	require.Equal(t, uint64(1), b.StatsSnapshot().PacketsAcked)
}

func TestAcknowledgeCumulative(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{})

	b.Insert(1, []byte{1}, now)
	b.Insert(2, []byte{2, 3}, now)
	b.Insert(3, []byte{4, 5, 6}, now)
	b.Insert(5, []byte{7}, now) // gap at 4
	require.Equal(t, 4, b.PendingCount())

	now = now.Add(50 * time.Millisecond)
	b.AcknowledgeCumulative(3, now)
	require.Equal(t, 1, b.PendingCount())
	require.Equal(t, uint64(3), b.StatsSnapshot().PacketsAcked)
	require.False(t, b.Acknowledge(1, now))
	require.True(t, b.Acknowledge(5, now))
}

func TestRetransmitTimeout(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{InitialRTT: 100 * time.Millisecond})

	b.Insert(1, []byte{1, 2, 3}, now)
	require.Empty(t, b.PacketsToRetransmit(now))

	now = now.Add(101 * time.Millisecond)
	due := b.PacketsToRetransmit(now)
	require.Len(t, due, 1)
	require.Equal(t, uint64(1), due[0].Sequence)

	require.True(t, b.MarkRetransmitted(1, now))
	require.Equal(t, uint64(1), b.StatsSnapshot().PacketsRetransmitted)
	require.Empty(t, b.PacketsToRetransmit(now))
}

func TestExponentialBackoff(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{InitialRTT: 100 * time.Millisecond, BackoffFactor: 2.0, MaxRetries: 3})

	b.Insert(1, []byte{1}, now)

	now = now.Add(101 * time.Millisecond)
	require.Len(t, b.PacketsToRetransmit(now), 1)
	require.True(t, b.MarkRetransmitted(1, now))

	now = now.Add(199 * time.Millisecond)
	require.Empty(t, b.PacketsToRetransmit(now))

	now = now.Add(10 * time.Millisecond)
	require.Len(t, b.PacketsToRetransmit(now), 1)
	require.True(t, b.MarkRetransmitted(1, now))

	now = now.Add(401 * time.Millisecond)
	require.Len(t, b.PacketsToRetransmit(now), 1)
	require.True(t, b.MarkRetransmitted(1, now))

	now = now.Add(801 * time.Millisecond)
	require.Len(t, b.PacketsToRetransmit(now), 1)
	require.False(t, b.MarkRetransmitted(1, now))
}

func TestBufferLimitEnforced(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{MaxBufferBytes: 10, DropPolicy: DropNewest})

	require.True(t, b.Insert(1, []byte{1, 2, 3, 4}, now))
	require.True(t, b.Insert(2, []byte{5, 6, 7, 8}, now))
	require.False(t, b.Insert(3, []byte{9, 10, 11}, now))
	require.True(t, b.Insert(3, []byte{9, 10}, now))
	require.False(t, b.Insert(4, []byte{11}, now))

	require.Equal(t, uint64(10), b.BufferedBytes())
	require.False(t, b.HasCapacity(1))

	b.Acknowledge(1, now)
	require.Equal(t, uint64(6), b.BufferedBytes())
	require.True(t, b.HasCapacity(4))
}

func TestRttEstimation(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{InitialRTT: 100 * time.Millisecond})

	b.Insert(1, []byte{1}, now)
	now = now.Add(80 * time.Millisecond)
	b.Acknowledge(1, now)
	require.Equal(t, 80*time.Millisecond, b.EstimatedRTT())

	b.Insert(2, []byte{2}, now)
	now = now.Add(120 * time.Millisecond)
	b.Acknowledge(2, now)
	require.GreaterOrEqual(t, b.EstimatedRTT(), 80*time.Millisecond)
	require.LessOrEqual(t, b.EstimatedRTT(), 90*time.Millisecond)
}

func TestKarnsAlgorithm(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{InitialRTT: 100 * time.Millisecond})

	b.Insert(1, []byte{1}, now)

	now = now.Add(101 * time.Millisecond)
	b.PacketsToRetransmit(now)
	b.MarkRetransmitted(1, now)

	rttBefore := b.EstimatedRTT()
	now = now.Add(50 * time.Millisecond)
	b.Acknowledge(1, now)
	require.Equal(t, rttBefore, b.EstimatedRTT())
}

func TestDropPacket(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{})

	b.Insert(1, []byte{1, 2, 3}, now)
	b.Insert(2, []byte{4, 5}, now)
	require.Equal(t, 2, b.PendingCount())
	require.Equal(t, uint64(5), b.BufferedBytes())

	b.DropPacket(1)
	require.Equal(t, 1, b.PendingCount())
	require.Equal(t, uint64(2), b.BufferedBytes())
	require.Equal(t, uint64(1), b.StatsSnapshot().PacketsDropped)
}

func TestDuplicateInsertRejected(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{})

	require.True(t, b.Insert(1, []byte{1, 2, 3}, now))
	require.False(t, b.Insert(1, []byte{4, 5, 6}, now))
	require.Equal(t, 1, b.PendingCount())
	require.Equal(t, uint64(3), b.BufferedBytes())
}

func TestMinMaxRtoClamping(t *testing.T) {
	now := time.Unix(0, 0)
	b := New(Config{MinRTO: 50 * time.Millisecond, MaxRTO: 500 * time.Millisecond, InitialRTT: 10 * time.Millisecond})

	b.Insert(1, []byte{1}, now)
	now = now.Add(10 * time.Millisecond)
	b.Acknowledge(1, now)
	require.GreaterOrEqual(t, b.CurrentRTO(), 50*time.Millisecond)

	b.Insert(2, []byte{2}, now)
	now = now.Add(10000 * time.Millisecond)
	b.Acknowledge(2, now)
	require.LessOrEqual(t, b.CurrentRTO(), 500*time.Millisecond)
}

func TestBackoffDeadlineClampedToMaxRTO(t *testing.T) {
	b := New(Config{
		InitialRTT:    100 * time.Millisecond,
		MaxRTO:        500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxRetries:    8,
	})

	for retries := 0; retries <= 8; retries++ {
		require.LessOrEqualf(t, b.backoffDeadline(retries), 500*time.Millisecond,
			"backoff at retries=%d must be re-clamped to MaxRTO, not grow unbounded", retries)
	}
	// 100ms * 2^3 = 800ms would exceed MaxRTO absent the clamp.
	require.Equal(t, 500*time.Millisecond, b.backoffDeadline(3))
}
