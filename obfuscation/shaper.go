package obfuscation

import (
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/prf"
)

// PrefixSize computes the deterministic pre-header filler length for
// sequence seq, per §4.4's prefix_size formula.
func (p *Profile) PrefixSize(seq uint64) int {
	return sizeInRange(p.Seed, seq, "prefix", p.MinPrefix, p.MaxPrefix)
}

// PaddingSize computes the deterministic trailing padding length for
// sequence seq, dispatching to the uniform or advanced distribution.
func (p *Profile) PaddingSize(seq uint64) int {
	if p.PaddingDist == PaddingUniform {
		return sizeInRange(p.Seed, seq, "padding", p.MinPadding, p.MaxPadding)
	}
	return p.advancedPaddingSize(seq)
}

func (p *Profile) advancedPaddingSize(seq uint64) int {
	totalWeight := 0
	for _, c := range p.PaddingClasses {
		totalWeight += c.Weight
	}
	if totalWeight <= 0 {
		return sizeInRange(p.Seed, seq, "padding", p.MinPadding, p.MaxPadding)
	}

	pick := prf.Uint64(p.Seed, seq, "class") % uint64(totalWeight)
	var chosen SizeClass
	var cursor uint64
	for _, c := range p.PaddingClasses {
		cursor += uint64(c.Weight)
		if pick < cursor {
			chosen = c
			break
		}
	}
	return sizeInRange(p.Seed, seq, "padding", chosen.Min, chosen.Max)
}

// sizeInRange implements `min + (H(seed, seq, purpose) mod (max-min+1))`,
// degrading to min when max <= min.
func sizeInRange(seed []byte, seq uint64, purpose string, min, max int) int {
	if max <= min {
		return min
	}
	span := uint64(max-min) + 1
	return min + int(prf.Uint64(seed, seq, purpose)%span)
}

// PrefixBytes returns n deterministic filler bytes for the prefix of
// packet seq, chained HMAC-SHA256 blocks per §4.4.
func (p *Profile) PrefixBytes(seq uint64, n int) []byte {
	return prf.New(p.Seed, seq, "prefix-bytes").Bytes(n)
}

// PaddingBytes returns n deterministic filler bytes for the trailing
// padding of packet seq.
func (p *Profile) PaddingBytes(seq uint64, n int) []byte {
	return prf.New(p.Seed, seq, "padding-bytes").Bytes(n)
}
