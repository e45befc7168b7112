package obfuscation

import (
	"math"
	"time"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/prf"
)

// Jitter computes the deterministic send delay for sequence seq under
// the profile's configured model, always within [0, JitterMaxMS].
// Determinism in (seed, seq) means the same packet observed twice by
// an adversary is shaped identically (§8's obfuscation-determinism
// scenario).
func (p *Profile) Jitter(seq uint64) time.Duration {
	if p.JitterMaxMS <= 0 {
		return 0
	}

	switch p.JitterModel {
	case JitterUniform:
		return p.uniformJitter(seq)
	case JitterPoisson:
		return p.poissonJitter(seq)
	case JitterExponential:
		return p.exponentialJitter(seq)
	default:
		return p.uniformJitter(seq)
	}
}

func (p *Profile) uniformJitter(seq uint64) time.Duration {
	ms := prf.Uint64(p.Seed, seq, "jitter") % uint64(p.JitterMaxMS+1)
	return time.Duration(ms) * time.Millisecond
}

// poissonJitter approximates a Poisson-like delay via rejection
// sampling: draw a candidate uniformly, accept it with probability
// proportional to exp(-candidate/scale), otherwise retry with the
// next chained PRF block. Every draw is derived from the same (seed,
// seq) pair via a monotonically increasing purpose counter, so the
// process is still fully deterministic and bounded.
func (p *Profile) poissonJitter(seq uint64) time.Duration {
	scale := p.JitterScale
	if scale <= 0 {
		scale = float64(p.JitterMaxMS) / 3
	}

	const maxAttempts = 16
	for attempt := 0; attempt < maxAttempts; attempt++ {
		purpose := jitterPurpose(attempt)
		candidate := prf.Uint64(p.Seed, seq, purpose) % uint64(p.JitterMaxMS+1)
		acceptance := prf.Uint64(p.Seed, seq, purpose+"-accept") % 1_000_000

		threshold := math.Exp(-float64(candidate)/scale) * 1_000_000
		if float64(acceptance) < threshold {
			return time.Duration(candidate) * time.Millisecond
		}
	}
	// Fell through every attempt: fall back to the smallest delay,
	// which is always accepted by the exp(-0/scale)=1 boundary case.
	return 0
}

// exponentialJitter draws an exponential-distributed delay (capped at
// JitterMaxMS) via inverse-transform sampling on a deterministic
// uniform draw.
func (p *Profile) exponentialJitter(seq uint64) time.Duration {
	scale := p.JitterScale
	if scale <= 0 {
		scale = float64(p.JitterMaxMS) / 3
	}

	u := float64(prf.Uint64(p.Seed, seq, "jitter")%1_000_000) / 1_000_000
	if u <= 0 {
		u = 1e-9
	}
	ms := -scale * math.Log(1-u)
	if ms > float64(p.JitterMaxMS) {
		ms = float64(p.JitterMaxMS)
	}
	return time.Duration(ms) * time.Millisecond
}

func jitterPurpose(attempt int) string {
	const base = "jitter-poisson-"
	return base + string(rune('a'+attempt))
}
