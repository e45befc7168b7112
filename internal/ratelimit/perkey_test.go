package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPerKeyLimiterIsolatesKeys(t *testing.T) {
	l := NewPerKeyLimiter(8, 1, 1.0)
	now := time.Unix(0, 0)

	require.True(t, l.Allow("attacker", now))
	require.False(t, l.Allow("attacker", now))

	// A distinct key still gets its own token, unaffected by the
	// exhausted "attacker" bucket.
	require.True(t, l.Allow("victim", now))
}

func TestPerKeyLimiterEvictsLeastRecentlyUsed(t *testing.T) {
	l := NewPerKeyLimiter(2, 1, 1.0)
	now := time.Unix(0, 0)

	l.Allow("a", now)
	l.Allow("b", now)
	require.Equal(t, 2, l.TrackedKeys())

	// Touch "a" so "b" becomes least-recently-used.
	l.Allow("a", now)
	l.Allow("c", now)

	require.Equal(t, 2, l.TrackedKeys())
}

func TestPerKeyLimiterRefillsOverTime(t *testing.T) {
	l := NewPerKeyLimiter(4, 1, 1.0)
	start := time.Unix(0, 0)

	require.True(t, l.Allow("k", start))
	require.False(t, l.Allow("k", start))
	require.True(t, l.Allow("k", start.Add(2*time.Second)))
}
