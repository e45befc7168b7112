// Package rotation implements session-ID rotation (§4.12), grounded
// on the original source's common/session/session_rotator.{h,cpp}:
// the wire-visible session_id is periodically replaced by a fresh
// random value, without touching the session's keys, nonce counters,
// or replay state, so long-lived connections don't present a stable
// correlation handle to an observer.
package rotation

import (
	"time"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/application"
)

// Rotator decides when to mint a new session_id and hands out fresh
// values via an injected RandomSource rather than reading
// crypto/rand directly, matching the rest of this module's
// boundary-interface discipline.
type Rotator struct {
	random application.RandomSource

	interval     time.Duration
	maxPackets   uint64
	sessionID    uint64
	lastRotation time.Time
}

// New builds a rotator seeded with an initial random session_id.
// interval and maxPackets are the two rotation triggers from §4.12:
// rotate after interval has elapsed since the last rotation, or after
// maxPackets packets have been sent since then, whichever comes
// first.
func New(random application.RandomSource, interval time.Duration, maxPackets uint64, now time.Time) (*Rotator, error) {
	id, err := random.Uint64()
	if err != nil {
		return nil, err
	}
	return &Rotator{
		random:       random,
		interval:     interval,
		maxPackets:   maxPackets,
		sessionID:    id,
		lastRotation: now,
	}, nil
}

// Current returns the active session_id.
func (r *Rotator) Current() uint64 { return r.sessionID }

// ShouldRotate reports whether sentPackets sent since the last
// rotation, or the elapsed time since then as of now, has crossed the
// configured threshold.
func (r *Rotator) ShouldRotate(sentPackets uint64, now time.Time) bool {
	tooManyPackets := sentPackets >= r.maxPackets
	expired := now.Sub(r.lastRotation) >= r.interval
	return tooManyPackets || expired
}

// Rotate mints a fresh session_id distinct from the current one and
// resets the rotation clock. Keys, nonce counters, and replay state
// are untouched by design — callers that also need to re-key do so
// separately via the handshake's key derivation.
func (r *Rotator) Rotate(now time.Time) (uint64, error) {
	next, err := r.random.Uint64()
	if err != nil {
		return 0, err
	}
	if next == r.sessionID {
		next, err = r.random.Uint64()
		if err != nil {
			return 0, err
		}
	}
	r.sessionID = next
	r.lastRotation = now
	return r.sessionID, nil
}
