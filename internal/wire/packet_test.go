package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ciphertext := []byte("frame-area-and-tag-bytes")
	h := BuildHeader(FlagHandshake, 0xAABBCCDD11223344, 7, 2, len(ciphertext))
	packet := Encode(h, ciphertext)

	gotHeader, gotCiphertext, err := Decode(packet)
	require.NoError(t, err)
	require.Equal(t, h, gotHeader)
	require.Equal(t, ciphertext, gotCiphertext)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	h := BuildHeader(0, 1, 1, 1, 4)
	packet := Encode(h, []byte("data"))
	packet[0] = 0x00
	_, _, err := Decode(packet)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	h := BuildHeader(0, 1, 1, 1, 4)
	packet := Encode(h, []byte("data"))
	packet[2] = 99
	_, _, err := Decode(packet)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	h := BuildHeader(0, 1, 1, 1, 4)
	packet := Encode(h, []byte("data"))
	packet = packet[:len(packet)-1] // truncate one trailing byte
	_, _, err := Decode(packet)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestDecodeRejectsOverlongPayload(t *testing.T) {
	h := BuildHeader(0, 1, 1, 1, 4)
	packet := Encode(h, []byte("data"))
	// Forge an oversized payload_length field.
	packet[21] = 0xFF
	packet[22] = 0xFF
	_, _, err := Decode(packet)
	require.ErrorIs(t, err, ErrPayloadTooLong)
}

func TestDecodeRejectsTooShort(t *testing.T) {
	_, _, err := Decode([]byte{0x56, 0x4C, 0x01})
	require.ErrorIs(t, err, ErrTooShort)
}

func TestAADIsHeaderPrefix(t *testing.T) {
	h := BuildHeader(0, 42, 99, 1, 3)
	packet := Encode(h, []byte("abc"))
	require.Equal(t, packet[:HeaderSize], AAD(packet))
}
