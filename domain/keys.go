// Package domain holds the value types shared across the handshake and
// transport cores: session keys, the transient handshake output, and the
// constants describing the fixed cryptographic suite.
package domain

import "runtime"

const (
	// KeySize is the length in bytes of a ChaCha20-Poly1305 key.
	KeySize = 32
	// BaseNonceSize is the length in bytes of a per-direction base nonce.
	BaseNonceSize = 12
	// PublicKeySize is the length in bytes of an X25519 public key.
	PublicKeySize = 32
)

// SessionKeys holds the four sensitive values produced by a handshake:
// one AEAD key and one base nonce per direction. It is exclusively owned
// by a single transport session and is never copied — only moved by
// transferring the owning session.
//
// SECURITY INVARIANT: every exit path that ends a session's lifetime
// (teardown, rotation, rekey) MUST call Zero. Moving ownership of a
// session MUST leave the source zeroed.
type SessionKeys struct {
	SendKey       [KeySize]byte
	RecvKey       [KeySize]byte
	SendBaseNonce [BaseNonceSize]byte
	RecvBaseNonce [BaseNonceSize]byte
}

// Zero overwrites all key material with zeros. It must not be elided by
// the compiler — runtime.KeepAlive anchors the store so dead-store
// elimination cannot remove it.
func (k *SessionKeys) Zero() {
	if k == nil {
		return
	}
	zero(k.SendKey[:])
	zero(k.RecvKey[:])
	zero(k.SendBaseNonce[:])
	zero(k.RecvBaseNonce[:])
	runtime.KeepAlive(k)
}

// zero overwrites b with zeros. Best-effort: the Go runtime may have
// already copied the backing array during a GC cycle, so this is
// defense against casual memory forensics, not a hard guarantee.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroBytes is the general-purpose variant used outside SessionKeys —
// for PSKs, ephemeral private keys, and shared secrets that live in
// plain byte slices rather than a typed struct.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	zero(b)
}

// HandshakeSession is the output of a completed handshake: a session
// identifier, the derived SessionKeys, and both peers' ephemeral public
// keys (kept for diagnostics/logging, never transmitted again). It is
// transient — consumed once by transport.NewSession and then discarded.
type HandshakeSession struct {
	SessionID          uint64
	Keys               SessionKeys
	InitiatorEphemeral [PublicKeySize]byte
	ResponderEphemeral [PublicKeySize]byte
}

// Zero clears the session keys held by this handshake output. Ephemeral
// public keys are not secret and are left intact.
func (h *HandshakeSession) Zero() {
	if h == nil {
		return
	}
	h.Keys.Zero()
}
