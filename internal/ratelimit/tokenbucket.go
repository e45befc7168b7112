// Package ratelimit implements the leaky-bucket admission control used
// by the handshake responder (§4.9) and, as a supplement drawn from the
// original source's utils/advanced_rate_limiter, a per-source variant
// that keys a bucket per coarse peer identifier so a single noisy
// prober cannot exhaust capacity meant for legitimate initiators.
//
// The flat bucket is a thin wrapper over golang.org/x/time/rate, which
// postalsys-Muti-Metroo already depends on for the same admission-control
// concern; rate.Limiter's AllowN(now, n) form lets the bucket be driven
// by an explicit timestamp instead of wall-clock time.Now(), matching
// the core's "caller supplies now" design (§5).
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket implements §4.9's contract: capacity C, refill rate R per
// interval, allow() refills based on elapsed time and returns whether a
// token was available.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket builds a bucket with capacity tokens that refills at
// refillPerSecond tokens/second.
func NewTokenBucket(capacity int, refillPerSecond float64) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
	}
}

// Allow refills based on the elapsed time since the last call (as
// measured against now) and, if at least one token is available,
// consumes it and returns true.
func (b *TokenBucket) Allow(now time.Time) bool {
	return b.limiter.AllowN(now, 1)
}
