// Package primitives implements the pure cryptographic functions the
// handshake and transport cores build on: AEAD seal/open, X25519,
// HKDF, HMAC-SHA256 and a CSPRNG-backed RandomSource. None of these
// functions hold ambient state — every secret they touch is either an
// explicit parameter or a freshly allocated buffer the caller owns.
package primitives

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// ErrAuthenticationFailed is returned by Open whenever the AEAD tag
// does not verify. It carries no information about why — a forged or
// truncated ciphertext produce the same error, since the difference is
// itself data probe-friendly.
var ErrAuthenticationFailed = errors.New("primitives: authentication failed")

// Seal encrypts plaintext with ChaCha20-Poly1305 under key and nonce,
// authenticating aad. The returned slice is len(plaintext)+16 bytes.
func Seal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("primitives: invalid nonce size")
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts ciphertext with ChaCha20-Poly1305 under key and nonce,
// verifying aad. It returns ErrAuthenticationFailed on any tag mismatch
// without distinguishing the cause.
//
// The AEAD primitive underneath (golang.org/x/crypto/chacha20poly1305)
// is constant-time in the tag comparison; this wrapper adds no timing
// variance of its own beyond the length check, which is safe to
// short-circuit on per §4.1's contract ("MAY branch on length").
func Open(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrAuthenticationFailed
	}
	if len(ciphertext) < aead.Overhead() {
		return nil, ErrAuthenticationFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// DeriveNonce XORs the little-endian 8-byte counter into the low 8
// bytes of baseNonce, producing the per-packet AEAD nonce. This keeps
// the nonce unique as long as counter strictly increases per base
// nonce, which the transport session's send_sequence invariant (§3)
// guarantees.
func DeriveNonce(baseNonce [12]byte, counter uint64) [12]byte {
	var nonce [12]byte
	copy(nonce[:], baseNonce[:])
	var ctr [8]byte
	binary.LittleEndian.PutUint64(ctr[:], counter)
	for i := 0; i < 8; i++ {
		nonce[i] ^= ctr[i]
	}
	return nonce
}

// X25519Keypair generates a fresh ephemeral X25519 key pair from r.
func X25519Keypair(r io.Reader) (pub [32]byte, priv [32]byte, err error) {
	if _, err = io.ReadFull(r, priv[:]); err != nil {
		return pub, priv, err
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, priv, err
	}
	copy(pub[:], p)
	return pub, priv, nil
}

// X25519Shared computes the Diffie-Hellman shared secret between a
// local private key and a peer's public key.
func X25519Shared(priv [32]byte, peerPub [32]byte) ([32]byte, error) {
	var out [32]byte
	s, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return out, err
	}
	copy(out[:], s)
	return out, nil
}

// HKDFExtract is the RFC 5869 extract step over SHA-256.
func HKDFExtract(salt, ikm []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

// HKDFExpand expands prk into length bytes of output keying material
// tagged with info.
func HKDFExpand(prk, info []byte, length int) ([]byte, error) {
	r := hkdf.Expand(sha256.New, prk, info)
	okm := make([]byte, length)
	if _, err := io.ReadFull(r, okm); err != nil {
		return nil, err
	}
	return okm, nil
}

// HMACSHA256 computes HMAC-SHA256(key, msg).
func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// HMACEqual compares two MACs in constant time.
func HMACEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// SystemRandom implements application.RandomSource using crypto/rand,
// the same source the teacher uses throughout its handshake code
// (io.ReadFull(rand.Reader, ...)).
type SystemRandom struct{}

func (SystemRandom) Read(b []byte) (int, error) {
	return io.ReadFull(rand.Reader, b)
}

func (SystemRandom) Uint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
