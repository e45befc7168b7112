package mux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAllKinds(t *testing.T) {
	frames := []Frame{
		{Kind: KindData, Data: DataFrame{StreamID: 1, Sequence: 2, Flags: FlagFin, Payload: []byte("hello")}},
		{Kind: KindAck, Ack: AckFrame{StreamID: 1, HighestAck: 9, Bitmap: 0xDEADBEEF}},
		{Kind: KindControl, Control: ControlFrame{Type: 7, Payload: []byte{1, 2, 3}}},
		{Kind: KindHeartbeat, Heartbeat: HeartbeatFrame{Timestamp: 123, Sequence: 456, Payload: []byte("ping")}},
	}

	area, count, err := Encode(frames)
	require.NoError(t, err)
	require.Equal(t, byte(len(frames)), count)

	decoded, err := Decode(area, count)
	require.NoError(t, err)
	require.Equal(t, frames, decoded)
}

func TestDataFrameFin(t *testing.T) {
	d := DataFrame{Flags: FlagFin}
	require.True(t, d.Fin())
	d2 := DataFrame{Flags: 0}
	require.False(t, d2.Fin())
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	area := []byte{99, 0, 0, 0}
	_, err := Decode(area, 1)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeRejectsOverrun(t *testing.T) {
	// A DATA frame header claiming a payload longer than present.
	frames := []Frame{{Kind: KindData, Data: DataFrame{Payload: []byte("abcdef")}}}
	area, count, err := Encode(frames)
	require.NoError(t, err)
	truncated := area[:len(area)-3]
	_, err = Decode(truncated, count)
	require.ErrorIs(t, err, ErrFrameOverrun)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	frames := []Frame{{Kind: KindControl, Control: ControlFrame{Type: 1}}}
	area, _, err := Encode(frames)
	require.NoError(t, err)
	area = append(area, 0xFF)
	_, err = Decode(area, 1)
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestDecodeRejectsFrameCountOverclaim(t *testing.T) {
	frames := []Frame{{Kind: KindControl, Control: ControlFrame{Type: 1}}}
	area, _, err := Encode(frames)
	require.NoError(t, err)
	_, err = Decode(area, 2)
	require.Error(t, err)
}
