// Package handshake implements the PSK-bound X25519 handshake (§4.5):
// the INIT/RESPONSE message pair, their wire encoding, the initiator
// and responder state machines, and the replay cache and rate limiter
// that guard the responder against active probing.
//
// Grounded on the teacher's handshake package layout (separate files
// per message type — client_hello.go/server_hello.go — rather than one
// monolithic handshake.go) and on session_deriver.go's use of
// golang.org/x/crypto/hkdf for session-key derivation.
package handshake

import (
	"encoding/binary"
	"errors"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/domain"
)

// ErrMalformed is returned by Unmarshal when the input is too short or
// otherwise doesn't parse into a well-formed message. Per §4.5's
// failure taxonomy, callers treat this identically to an authentication
// failure: silent drop, no reply.
var ErrMalformed = errors.New("handshake: malformed message")

const (
	initFixedSize = 1 + domain.PublicKeySize + 8 + 16 + 32
	// responseFixedSize is everything in RESPONSE except the
	// variable-length sealed_confirmation, which is appended after it.
	responseFixedSize = domain.PublicKeySize + 8 + 32
)

// Init is the initiator's handshake opening message (§4.5).
type Init struct {
	Version            byte
	InitiatorEphemeral [domain.PublicKeySize]byte
	TimestampMS        uint64
	Salt               [16]byte
	PSKMac             [32]byte
}

// Marshal serializes Init in the fixed field order the spec defines.
func (m *Init) Marshal() []byte {
	out := make([]byte, initFixedSize)
	out[0] = m.Version
	copy(out[1:1+domain.PublicKeySize], m.InitiatorEphemeral[:])
	off := 1 + domain.PublicKeySize
	binary.BigEndian.PutUint64(out[off:off+8], m.TimestampMS)
	off += 8
	copy(out[off:off+16], m.Salt[:])
	off += 16
	copy(out[off:off+32], m.PSKMac[:])
	return out
}

// UnmarshalInit parses an Init message, or ErrMalformed if data is not
// exactly the fixed INIT size.
func UnmarshalInit(data []byte) (Init, error) {
	if len(data) != initFixedSize {
		return Init{}, ErrMalformed
	}
	var m Init
	m.Version = data[0]
	copy(m.InitiatorEphemeral[:], data[1:1+domain.PublicKeySize])
	off := 1 + domain.PublicKeySize
	m.TimestampMS = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	copy(m.Salt[:], data[off:off+16])
	off += 16
	copy(m.PSKMac[:], data[off:off+32])
	return m, nil
}

// MACInput returns the bytes that PSKMac authenticates:
// version || ephemeral_pubkey || timestamp || salt.
func (m *Init) MACInput() []byte {
	buf := make([]byte, 0, 1+domain.PublicKeySize+8+16)
	buf = append(buf, m.Version)
	buf = append(buf, m.InitiatorEphemeral[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], m.TimestampMS)
	buf = append(buf, ts[:]...)
	buf = append(buf, m.Salt[:]...)
	return buf
}

// Response is the responder's handshake reply (§4.5).
type Response struct {
	ResponderEphemeral [domain.PublicKeySize]byte
	SessionID          uint64
	PSKMac             [32]byte
	SealedConfirmation []byte
}

// Marshal serializes Response: fixed fields followed by the
// variable-length sealed confirmation.
func (m *Response) Marshal() []byte {
	out := make([]byte, responseFixedSize+len(m.SealedConfirmation))
	copy(out[0:domain.PublicKeySize], m.ResponderEphemeral[:])
	off := domain.PublicKeySize
	binary.BigEndian.PutUint64(out[off:off+8], m.SessionID)
	off += 8
	copy(out[off:off+32], m.PSKMac[:])
	off += 32
	copy(out[off:], m.SealedConfirmation)
	return out
}

// UnmarshalResponse parses a Response message, or ErrMalformed if data
// is shorter than the fixed RESPONSE prefix.
func UnmarshalResponse(data []byte) (Response, error) {
	if len(data) < responseFixedSize {
		return Response{}, ErrMalformed
	}
	var m Response
	copy(m.ResponderEphemeral[:], data[0:domain.PublicKeySize])
	off := domain.PublicKeySize
	m.SessionID = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	copy(m.PSKMac[:], data[off:off+32])
	off += 32
	m.SealedConfirmation = append([]byte(nil), data[off:]...)
	return m, nil
}

// MACInput returns the bytes that PSKMac authenticates:
// responder_ephemeral_pubkey || session_id.
func (m *Response) MACInput() []byte {
	buf := make([]byte, 0, domain.PublicKeySize+8)
	buf = append(buf, m.ResponderEphemeral[:]...)
	var sid [8]byte
	binary.BigEndian.PutUint64(sid[:], m.SessionID)
	buf = append(buf, sid[:]...)
	return buf
}
