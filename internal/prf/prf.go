// Package prf implements the deterministic byte generator the
// obfuscation core uses to derive padding, prefix and jitter values:
// an HMAC-SHA256 stream keyed by a profile seed, chained across
// successive blocks the way a counter-mode KDF would be, but without
// the Feistel/permutation machinery internal/seqobf uses — prf only
// ever needs to grow forward, never invert.
package prf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// Stream generates an unbounded sequence of pseudorandom bytes from a
// seed, a sequence number and a purpose label:
//
//	block[0] = HMAC-SHA256(seed, seq || 0 || purpose)
//	block[i] = HMAC-SHA256(seed, seq || i || purpose)
//
// blocks are concatenated until the caller's requested length is
// satisfied. Deterministic in (seed, seq, purpose): the same inputs
// always produce the same bytes, which is what lets both peers of an
// obfuscated session recompute prefix/padding sizes independently.
type Stream struct {
	seed    []byte
	seq     uint64
	purpose string
}

// New returns a Stream keyed by seed for the given sequence number and
// purpose label (e.g. "prefix", "padding", "class", "jitter").
func New(seed []byte, seq uint64, purpose string) *Stream {
	return &Stream{seed: seed, seq: seq, purpose: purpose}
}

// Bytes returns exactly n pseudorandom bytes.
func (s *Stream) Bytes(n int) []byte {
	out := make([]byte, 0, n)
	var counter uint32
	for len(out) < n {
		out = append(out, s.block(counter)...)
		counter++
	}
	return out[:n]
}

func (s *Stream) block(counter uint32) []byte {
	mac := hmac.New(sha256.New, s.seed)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], s.seq)
	mac.Write(seqBuf[:])
	var ctrBuf [4]byte
	binary.BigEndian.PutUint32(ctrBuf[:], counter)
	mac.Write(ctrBuf[:])
	mac.Write([]byte(s.purpose))
	return mac.Sum(nil)
}

// Uint64 derives a single deterministic 64-bit value from the stream,
// used by the shaping functions to compute `H(seed, seq, purpose) mod N`.
func Uint64(seed []byte, seq uint64, purpose string) uint64 {
	b := New(seed, seq, purpose).Bytes(8)
	return binary.BigEndian.Uint64(b)
}
