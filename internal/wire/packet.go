// Package wire implements the outer packet codec (§4.2): the
// post-obfuscation-prefix framing that the transport session AEAD-seals
// and AEAD-opens. It knows nothing about AEAD itself — it produces and
// parses the header bytes that serve as associated data, and the
// ciphertext region that follows them — keeping the "what does this
// look like on the wire" concern separate from "how is it encrypted",
// matching the teacher's separation between header parsing
// (infrastructure/network/header_parser.go) and session crypto
// (infrastructure/cryptography/chacha20/udp_session.go).
package wire

import (
	"encoding/binary"
	"errors"
)

// Version is the fixed protocol version byte (§6).
const Version = 1

// Magic is the fixed two-byte packet marker (§6: {0x56, 0x4C}, ASCII "VL").
var Magic = [2]byte{0x56, 0x4C}

// HeaderSize is the number of bytes in the fixed outer header, i.e.
// everything from Magic through PayloadLength inclusive.
const HeaderSize = 2 + 1 + 1 + 8 + 8 + 1 + 2

// MaxPayloadLength is the largest ciphertext region a header can
// declare: the 16-bit PayloadLength field is bounded by the 65535
// datagram ceiling minus the header itself (§4.2).
const MaxPayloadLength = 65535 - HeaderSize

var (
	ErrBadMagic       = errors.New("wire: bad magic")
	ErrBadVersion     = errors.New("wire: unsupported version")
	ErrPayloadTooLong = errors.New("wire: payload_length exceeds maximum")
	ErrLengthMismatch = errors.New("wire: payload_length does not match trailing bytes")
	ErrTooShort       = errors.New("wire: packet shorter than header")

	// FlagHandshake marks a packet carrying handshake traffic
	// multiplexed over the same datagram substrate as transport
	// (§2: "Handshake flows ... on a separate logical channel that
	// shares the datagram substrate").
	FlagHandshake byte = 1 << 0
)

// Header is the fixed 23-byte outer header. Sequence is stored here in
// its wire (obfuscated) form — callers deobfuscate it themselves using
// the session's seqobf key before treating it as a replay-check input.
type Header struct {
	Version       byte
	Flags         byte
	SessionID     uint64
	WireSequence  uint64
	FrameCount    byte
	PayloadLength uint16
}

// Encode serializes header followed by ciphertext (frame area + AEAD
// tag) into a single packet. It does not validate ciphertext length
// against header.PayloadLength — callers build the header from the
// actual ciphertext length, so use BuildHeader instead of constructing
// Header by hand where possible.
func Encode(h Header, ciphertext []byte) []byte {
	out := make([]byte, HeaderSize+len(ciphertext))
	encodeHeader(out, h)
	copy(out[HeaderSize:], ciphertext)
	return out
}

// BuildHeader constructs a Header whose PayloadLength matches
// ciphertextLen, the common case when sealing a fresh packet.
func BuildHeader(flags byte, sessionID, wireSequence uint64, frameCount byte, ciphertextLen int) Header {
	return Header{
		Version:       Version,
		Flags:         flags,
		SessionID:     sessionID,
		WireSequence:  wireSequence,
		FrameCount:    frameCount,
		PayloadLength: uint16(ciphertextLen),
	}
}

func encodeHeader(buf []byte, h Header) {
	buf[0] = Magic[0]
	buf[1] = Magic[1]
	buf[2] = h.Version
	buf[3] = h.Flags
	binary.BigEndian.PutUint64(buf[4:12], h.SessionID)
	binary.BigEndian.PutUint64(buf[12:20], h.WireSequence)
	buf[20] = h.FrameCount
	binary.BigEndian.PutUint16(buf[21:23], h.PayloadLength)
}

// Decode parses a packet (post obfuscation-prefix) into its header and
// ciphertext region. It rejects malformed magic/version, a declared
// payload_length that overruns the 65535-byte datagram ceiling, and a
// declared payload_length that disagrees with the actual trailing byte
// count — all per §4.2's parse-failure rules. Every failure here is a
// silent-drop case for the caller (§7): no detail is returned beyond
// which sentinel error fired, and callers should not relay it to peers.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, ErrTooShort
	}
	if data[0] != Magic[0] || data[1] != Magic[1] {
		return Header{}, nil, ErrBadMagic
	}
	version := data[2]
	if version != Version {
		return Header{}, nil, ErrBadVersion
	}
	h := Header{
		Version:       version,
		Flags:         data[3],
		SessionID:     binary.BigEndian.Uint64(data[4:12]),
		WireSequence:  binary.BigEndian.Uint64(data[12:20]),
		FrameCount:    data[20],
		PayloadLength: binary.BigEndian.Uint16(data[21:23]),
	}
	if int(h.PayloadLength) > MaxPayloadLength {
		return Header{}, nil, ErrPayloadTooLong
	}
	rest := data[HeaderSize:]
	if len(rest) != int(h.PayloadLength) {
		return Header{}, nil, ErrLengthMismatch
	}
	return h, rest, nil
}

// AAD returns the header bytes used as AEAD associated data: every
// field from Magic through PayloadLength. Building AAD from the wire
// bytes directly (rather than re-encoding the Header struct) guarantees
// byte-for-byte agreement between sender and receiver even if a future
// field is added.
func AAD(data []byte) []byte {
	return data[:HeaderSize]
}
