package handshake

import (
	"container/list"
	"sync"
)

// replayCacheKey uniquely identifies one INIT message.
type replayCacheKey struct {
	timestampMS  uint64
	ephemeralKey [32]byte
}

// ReplayCache is the bounded LRU replay cache from §4.6, grounded on
// the original source's common/handshake/handshake_replay_cache.{h,cpp}:
// it tracks (timestamp_ms, ephemeral_pubkey) pairs so a captured INIT
// cannot be successfully replayed within the cache's time window.
//
// Locking (§4.6): the public CleanupExpired takes mu, and Go's
// sync.Mutex is not reentrant, so MarkAndCheck, which already holds
// mu, runs its periodic cleanup through the private
// cleanupExpiredLocked helper and never through CleanupExpired.
type ReplayCache struct {
	mu sync.Mutex

	capacity  int
	windowMS  uint64
	callCount uint64
	lru       *list.List // front = least recently used, back = most recently used
	index     map[replayCacheKey]*list.Element
}

// NewReplayCache builds a cache admitting at most capacity entries,
// each valid for windowMS milliseconds from its timestamp.
func NewReplayCache(capacity int, windowMS uint64) *ReplayCache {
	if capacity <= 0 {
		capacity = 4096
	}
	if windowMS == 0 {
		windowMS = 60_000
	}
	return &ReplayCache{
		capacity: capacity,
		windowMS: windowMS,
		lru:      list.New(),
		index:    make(map[replayCacheKey]*list.Element),
	}
}

// MarkAndCheck reports whether (timestampMS, ephemeralKey) was already
// seen (a replay) and, if not, records it. Every 100th call opportunistically
// sweeps expired entries first, matching the original's amortized-cleanup
// heuristic — both that sweep and the lookup/insert happen under the
// same lock acquisition, never nested.
func (c *ReplayCache) MarkAndCheck(timestampMS uint64, ephemeralKey [32]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callCount++
	if c.callCount%100 == 0 {
		c.cleanupExpiredLocked(timestampMS)
	}

	key := replayCacheKey{timestampMS: timestampMS, ephemeralKey: ephemeralKey}

	if elem, ok := c.index[key]; ok {
		c.lru.MoveToBack(elem)
		return true // replay
	}

	if len(c.index) >= c.capacity {
		c.evictLRULocked()
	}

	elem := c.lru.PushBack(key)
	c.index[key] = elem
	return false
}

// CleanupExpired removes every entry older than the configured window
// as of currentTimeMS, and reports how many were removed.
func (c *ReplayCache) CleanupExpired(currentTimeMS uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupExpiredLocked(currentTimeMS)
}

func (c *ReplayCache) cleanupExpiredLocked(currentTimeMS uint64) int {
	var cutoff uint64
	if currentTimeMS > c.windowMS {
		cutoff = currentTimeMS - c.windowMS
	}

	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		key := elem.Value.(replayCacheKey)
		if key.timestampMS < cutoff {
			c.lru.Remove(elem)
			delete(c.index, key)
			removed++
		}
		elem = next
	}
	return removed
}

func (c *ReplayCache) evictLRULocked() {
	front := c.lru.Front()
	if front == nil {
		return
	}
	c.lru.Remove(front)
	delete(c.index, front.Value.(replayCacheKey))
}

// Size returns the current number of cached entries.
func (c *ReplayCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Capacity returns the configured maximum entry count.
func (c *ReplayCache) Capacity() int { return c.capacity }

// Clear removes every cached entry.
func (c *ReplayCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.index = make(map[replayCacheKey]*list.Element)
}
