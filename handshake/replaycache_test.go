package handshake

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeKey(value byte) [32]byte {
	var key [32]byte
	for i := range key {
		key[i] = value
	}
	return key
}

func TestReplayCacheDetectsReplayWithSameTimestampAndKey(t *testing.T) {
	c := NewReplayCache(100, 60_000)
	key := makeKey(0x42)

	require.False(t, c.MarkAndCheck(1000, key))
	require.True(t, c.MarkAndCheck(1000, key))
	require.True(t, c.MarkAndCheck(1000, key))
}

func TestReplayCacheAllowsDifferentKeys(t *testing.T) {
	c := NewReplayCache(100, 60_000)
	key1, key2 := makeKey(0x01), makeKey(0x02)

	require.False(t, c.MarkAndCheck(1000, key1))
	require.False(t, c.MarkAndCheck(1000, key2))
	require.True(t, c.MarkAndCheck(1000, key1))
	require.True(t, c.MarkAndCheck(1000, key2))
}

func TestReplayCacheAllowsDifferentTimestamps(t *testing.T) {
	c := NewReplayCache(100, 60_000)
	key := makeKey(0x42)

	require.False(t, c.MarkAndCheck(1000, key))
	require.False(t, c.MarkAndCheck(2000, key))
	require.False(t, c.MarkAndCheck(3000, key))

	require.True(t, c.MarkAndCheck(1000, key))
	require.True(t, c.MarkAndCheck(2000, key))
	require.True(t, c.MarkAndCheck(3000, key))
}

func TestReplayCacheEvictsLRUWhenAtCapacity(t *testing.T) {
	c := NewReplayCache(3, 100_000)
	key1, key2, key3, key4 := makeKey(0x01), makeKey(0x02), makeKey(0x03), makeKey(0x04)

	require.False(t, c.MarkAndCheck(1000, key1))
	require.False(t, c.MarkAndCheck(2000, key2))
	require.False(t, c.MarkAndCheck(3000, key3))
	require.Equal(t, 3, c.Size())

	require.False(t, c.MarkAndCheck(4000, key4))
	require.Equal(t, 3, c.Size())

	require.True(t, c.MarkAndCheck(2000, key2))
	require.True(t, c.MarkAndCheck(3000, key3))
	require.True(t, c.MarkAndCheck(4000, key4))

	require.False(t, c.MarkAndCheck(1000, key1))
}

func TestReplayCacheLRUOrderingUpdatedOnAccess(t *testing.T) {
	c := NewReplayCache(3, 60_000)
	key1, key2, key3, key4 := makeKey(0x01), makeKey(0x02), makeKey(0x03), makeKey(0x04)

	require.False(t, c.MarkAndCheck(1000, key1))
	require.False(t, c.MarkAndCheck(2000, key2))
	require.False(t, c.MarkAndCheck(3000, key3))

	require.True(t, c.MarkAndCheck(1000, key1)) // touches key1, making key2 the LRU

	require.False(t, c.MarkAndCheck(4000, key4)) // evicts key2

	require.True(t, c.MarkAndCheck(1000, key1))
	require.True(t, c.MarkAndCheck(3000, key3))
	require.True(t, c.MarkAndCheck(4000, key4))

	require.False(t, c.MarkAndCheck(2000, key2))
}

func TestReplayCacheCleansUpExpiredEntries(t *testing.T) {
	c := NewReplayCache(100, 1000)
	key1, key2, key3 := makeKey(0x01), makeKey(0x02), makeKey(0x03)

	require.False(t, c.MarkAndCheck(1000, key1))
	require.False(t, c.MarkAndCheck(1500, key2))
	require.False(t, c.MarkAndCheck(2000, key3))
	require.Equal(t, 3, c.Size())

	removed := c.CleanupExpired(3100)
	require.Equal(t, 3, removed)
	require.Equal(t, 0, c.Size())

	require.False(t, c.MarkAndCheck(1000, key1))
	require.False(t, c.MarkAndCheck(1500, key2))
	require.False(t, c.MarkAndCheck(2000, key3))
}

func TestReplayCacheClearRemovesAllEntries(t *testing.T) {
	c := NewReplayCache(100, 60_000)
	key1, key2 := makeKey(0x01), makeKey(0x02)

	require.False(t, c.MarkAndCheck(1000, key1))
	require.False(t, c.MarkAndCheck(2000, key2))
	require.Equal(t, 2, c.Size())

	c.Clear()
	require.Equal(t, 0, c.Size())

	require.False(t, c.MarkAndCheck(1000, key1))
	require.False(t, c.MarkAndCheck(2000, key2))
}

// TestReplayCacheConcurrentAccessIsSerialized exercises a burst of
// concurrent MarkAndCheck calls spanning the opportunistic-cleanup
// threshold (every 100th call), per §4.6's note that cleanup must
// never reacquire the mutex it's already running under.
func TestReplayCacheConcurrentAccessIsSerialized(t *testing.T) {
	c := NewReplayCache(2000, 1_000_000)
	key := makeKey(0x42)

	const goroutines = 4
	const iterations = 50 // 4*50 = 200 calls, crossing the 100-call cleanup boundary twice

	var wg sync.WaitGroup
	var totalReplays int32
	var mu sync.Mutex

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				ts := uint64(g)*1000 + uint64(i)
				if c.MarkAndCheck(ts, key) {
					mu.Lock()
					totalReplays++
					mu.Unlock()
				}
			}
		}(g)
	}
	wg.Wait()

	require.Zero(t, totalReplays, "every goroutine uses distinct timestamps, so nothing should replay")
}
