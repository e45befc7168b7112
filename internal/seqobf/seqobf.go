// Package seqobf implements the sequence-number obfuscation described
// in §4.1: a keyed, invertible permutation over 64-bit sequence
// numbers so that an observer without the session key cannot correlate
// wire-visible sequence numbers with send order. Built as a 4-round
// Feistel network over two 32-bit halves, each round keyed by an
// HMAC-SHA256-derived round key — the same "HMAC-derived round keys
// applied as a Feistel structure" construction §4.1 suggests.
package seqobf

import (
	"encoding/binary"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/domain"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/primitives"
)

const rounds = 4

// seqObfInfo is the fixed HKDF info label used to derive the
// sequence-obfuscation key from a session key and nonce, per §4.1's
// derive_seq_obf_key contract.
var seqObfInfo = []byte("veil-seq-obf-v1")

// Key holds the round keys derived once per session (or per epoch, on
// rekey) and reused for every packet's sequence obfuscation.
type Key struct {
	round [rounds][32]byte
}

// DeriveKey derives a sequence-obfuscation Key from a session key and
// the base nonce for that direction (§4.1: "HKDF-expand with a fixed
// purpose label").
func DeriveKey(sessionKey []byte, baseNonce []byte) (Key, error) {
	var k Key
	prk := primitives.HKDFExtract(baseNonce, sessionKey)
	for i := 0; i < rounds; i++ {
		info := append(append([]byte{}, seqObfInfo...), byte(i))
		okm, err := primitives.HKDFExpand(prk, info, 32)
		if err != nil {
			return Key{}, err
		}
		copy(k.round[i][:], okm)
	}
	return k, nil
}

// Zero clears every HKDF-derived round key (§5: every allocation
// holding a secret must be zeroed on every exit path — these round
// keys are as sensitive as the session key they were derived from).
func (k *Key) Zero() {
	for i := range k.round {
		domain.ZeroBytes(k.round[i][:])
	}
}

func feistelRound(l, r uint32, roundKey []byte) (uint32, uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], r)
	f := primitives.HMACSHA256(roundKey, buf[:])
	fVal := binary.BigEndian.Uint32(f)
	return r, l ^ fVal
}

// Obfuscate applies the keyed Feistel permutation to seq, producing
// the wire-visible value. It is invertible via Deobfuscate.
func Obfuscate(seq uint64, k Key) uint64 {
	l := uint32(seq >> 32)
	r := uint32(seq)
	for i := 0; i < rounds; i++ {
		l, r = feistelRound(l, r, k.round[i][:])
	}
	return uint64(l)<<32 | uint64(r)
}

// Deobfuscate inverts Obfuscate: running the Feistel rounds in reverse
// order recovers the original sequence number.
func Deobfuscate(obfuscated uint64, k Key) uint64 {
	l := uint32(obfuscated >> 32)
	r := uint32(obfuscated)
	for i := rounds - 1; i >= 0; i-- {
		// Inverse of a Feistel round: (l, r) -> (r, l) forward means
		// new_l = old_r, new_r = old_l ^ F(old_r). To invert: given
		// (new_l, new_r) = (old_r, old_l ^ F(old_r)):
		//   old_r = new_l
		//   old_l = new_r ^ F(old_r) = new_r ^ F(new_l)
		oldR := l
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], oldR)
		f := primitives.HMACSHA256(k.round[i][:], buf[:])
		fVal := binary.BigEndian.Uint32(f)
		oldL := r ^ fVal
		l, r = oldL, oldR
	}
	return uint64(l)<<32 | uint64(r)
}
