package handshake

import (
	"github.com/konard/VisageDvachevsky-veil-client-sub000/domain"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/primitives"
)

// sessionKeyInfo is the HKDF info tag for §4.1's 88-byte expansion:
// initiator_send_key(32) || responder_send_key(32) ||
// initiator_send_base_nonce(12) || responder_send_base_nonce(12).
const sessionKeyInfo = "veil-handshake-session-v1"

// confirmationInfo tags the HKDF branch used solely to derive the key
// that seals RESPONSE's confirmation field.
const confirmationInfo = "veil-handshake-confirm-v1"

// confirmationPlaintext is a fixed, content-free plaintext: the
// RESPONSE's sealed_confirmation field only needs to prove the
// responder derived the same AEAD key from the same shared secret and
// salt, not to convey any payload.
var confirmationPlaintext = []byte("veil-confirm")

// deriveSessionKeys expands the shared secret ss (over salt) into the
// four §4.1 session-key components and assigns them to initiator or
// responder roles according to isInitiator.
func deriveSessionKeys(salt, ss []byte, isInitiator bool) (domain.SessionKeys, error) {
	prk := primitives.HKDFExtract(salt, ss)
	okm, err := primitives.HKDFExpand(prk, []byte(sessionKeyInfo), 2*domain.KeySize+2*domain.BaseNonceSize)
	if err != nil {
		return domain.SessionKeys{}, err
	}

	initiatorSendKey := okm[0:domain.KeySize]
	responderSendKey := okm[domain.KeySize : 2*domain.KeySize]
	off := 2 * domain.KeySize
	initiatorSendNonce := okm[off : off+domain.BaseNonceSize]
	off += domain.BaseNonceSize
	responderSendNonce := okm[off : off+domain.BaseNonceSize]

	var keys domain.SessionKeys
	if isInitiator {
		copy(keys.SendKey[:], initiatorSendKey)
		copy(keys.RecvKey[:], responderSendKey)
		copy(keys.SendBaseNonce[:], initiatorSendNonce)
		copy(keys.RecvBaseNonce[:], responderSendNonce)
	} else {
		copy(keys.SendKey[:], responderSendKey)
		copy(keys.RecvKey[:], initiatorSendKey)
		copy(keys.SendBaseNonce[:], responderSendNonce)
		copy(keys.RecvBaseNonce[:], initiatorSendNonce)
	}
	return keys, nil
}

// confirmationKey derives the AEAD key that seals (and opens) RESPONSE's
// sealed_confirmation field, binding it to the same (salt, ss) pair the
// session keys come from but under a distinct HKDF info tag so the two
// outputs are cryptographically independent.
func confirmationKey(salt, ss []byte) ([]byte, error) {
	prk := primitives.HKDFExtract(salt, ss)
	return primitives.HKDFExpand(prk, []byte(confirmationInfo), domain.KeySize)
}

// confirmationAAD binds the sealed confirmation to the handshake
// transcript: version || initiator_ephemeral || responder_ephemeral ||
// session_id. Each of these fields is also covered by the INIT or
// RESPONSE PSK MAC.
func confirmationAAD(version byte, initiatorEphemeral, responderEphemeral [domain.PublicKeySize]byte, sessionID uint64) []byte {
	buf := make([]byte, 0, 1+2*domain.PublicKeySize+8)
	buf = append(buf, version)
	buf = append(buf, initiatorEphemeral[:]...)
	buf = append(buf, responderEphemeral[:]...)
	var sid [8]byte
	for i := 0; i < 8; i++ {
		sid[i] = byte(sessionID >> (56 - 8*i))
	}
	buf = append(buf, sid[:]...)
	return buf
}

// sealConfirmation and openConfirmation use a fixed all-zero nonce: the
// confirmation key is single-use (one seal per handshake, derived fresh
// from a unique ephemeral DH), so nonce reuse under it never occurs.
var confirmationNonce = make([]byte, 12)

func sealConfirmation(key, aad []byte) ([]byte, error) {
	return primitives.Seal(key, confirmationNonce, aad, confirmationPlaintext)
}

func openConfirmation(key, aad, sealed []byte) error {
	plaintext, err := primitives.Open(key, confirmationNonce, aad, sealed)
	if err != nil {
		return err
	}
	if !primitives.HMACEqual(plaintext, confirmationPlaintext) {
		return primitives.ErrAuthenticationFailed
	}
	return nil
}
