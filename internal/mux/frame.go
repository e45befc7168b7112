// Package mux implements the inner frame codec (§4.3): parsing and
// serializing the four frame kinds (DATA, ACK, CONTROL, HEARTBEAT)
// packed into a wire.Header's frame area. Mirrors the teacher's
// pattern of one small, single-purpose codec per concern
// (infrastructure/network/framing, infrastructure/cryptography/chacha20/udp_encoder.go)
// rather than a single monolithic (de)serializer.
package mux

import (
	"encoding/binary"
	"errors"
)

// Kind identifies a frame's type, encoded as the frame's first byte.
type Kind byte

const (
	KindData      Kind = 1
	KindAck       Kind = 2
	KindControl   Kind = 3
	KindHeartbeat Kind = 4
)

const (
	// FlagFin marks the end of a stream (§4.3: "bit 0 = FIN"); on a fragmented message only the last fragment carries it.
	FlagFin byte = 1 << 0
)

var (
	ErrUnknownKind     = errors.New("mux: unknown frame kind")
	ErrFrameOverrun    = errors.New("mux: frame would overrun payload area")
	ErrTrailingBytes   = errors.New("mux: trailing bytes after declared frame count")
	ErrFrameCountShort = errors.New("mux: fewer frames present than declared frame count")
)

// Frame is the parsed form of any of the four kinds; exactly one of
// the typed fields is populated, selected by Kind.
type Frame struct {
	Kind Kind

	Data      DataFrame
	Ack       AckFrame
	Control   ControlFrame
	Heartbeat HeartbeatFrame
}

type DataFrame struct {
	StreamID uint64
	Sequence uint64
	Flags    byte
	Payload  []byte
}

func (d DataFrame) Fin() bool { return d.Flags&FlagFin != 0 }

type AckFrame struct {
	StreamID   uint64
	HighestAck uint64
	Bitmap     uint32
}

type ControlFrame struct {
	Type    byte
	Payload []byte
}

type HeartbeatFrame struct {
	Timestamp uint64
	Sequence  uint64
	Payload   []byte
}

// Encode serializes frames into a single frame-area byte slice and
// returns the frame count byte alongside it, ready to hand to
// wire.BuildHeader.
func Encode(frames []Frame) (frameArea []byte, frameCount byte, err error) {
	if len(frames) > 255 {
		return nil, 0, errors.New("mux: more than 255 frames in one packet")
	}
	var buf []byte
	for _, f := range frames {
		buf = append(buf, encodeFrame(f)...)
	}
	return buf, byte(len(frames)), nil
}

func encodeFrame(f Frame) []byte {
	switch f.Kind {
	case KindData:
		d := f.Data
		out := make([]byte, 0, 1+8+8+1+2+len(d.Payload))
		out = append(out, byte(KindData))
		out = appendUint64(out, d.StreamID)
		out = appendUint64(out, d.Sequence)
		out = append(out, d.Flags)
		out = appendUint16(out, uint16(len(d.Payload)))
		out = append(out, d.Payload...)
		return out
	case KindAck:
		a := f.Ack
		out := make([]byte, 0, 1+8+8+4)
		out = append(out, byte(KindAck))
		out = appendUint64(out, a.StreamID)
		out = appendUint64(out, a.HighestAck)
		out = appendUint32(out, a.Bitmap)
		return out
	case KindControl:
		c := f.Control
		out := make([]byte, 0, 1+1+2+len(c.Payload))
		out = append(out, byte(KindControl))
		out = append(out, c.Type)
		out = appendUint16(out, uint16(len(c.Payload)))
		out = append(out, c.Payload...)
		return out
	case KindHeartbeat:
		h := f.Heartbeat
		out := make([]byte, 0, 1+8+8+2+len(h.Payload))
		out = append(out, byte(KindHeartbeat))
		out = appendUint64(out, h.Timestamp)
		out = appendUint64(out, h.Sequence)
		out = appendUint16(out, uint16(len(h.Payload)))
		out = append(out, h.Payload...)
		return out
	default:
		return nil
	}
}

// Decode parses exactly frameCount frames out of frameArea, refusing
// unknown kinds, frames that would overrun the declared area, and any
// trailing bytes left once frameCount frames have been consumed.
func Decode(frameArea []byte, frameCount byte) ([]Frame, error) {
	frames := make([]Frame, 0, frameCount)
	pos := 0
	for i := 0; i < int(frameCount); i++ {
		if pos >= len(frameArea) {
			return nil, ErrFrameCountShort
		}
		f, consumed, err := decodeOne(frameArea[pos:])
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
		pos += consumed
	}
	if pos != len(frameArea) {
		return nil, ErrTrailingBytes
	}
	return frames, nil
}

func decodeOne(b []byte) (Frame, int, error) {
	if len(b) < 1 {
		return Frame{}, 0, ErrFrameOverrun
	}
	switch Kind(b[0]) {
	case KindData:
		const fixed = 1 + 8 + 8 + 1 + 2
		if len(b) < fixed {
			return Frame{}, 0, ErrFrameOverrun
		}
		streamID := readUint64(b[1:9])
		seq := readUint64(b[9:17])
		flags := b[17]
		plen := readUint16(b[18:20])
		total := fixed + int(plen)
		if len(b) < total {
			return Frame{}, 0, ErrFrameOverrun
		}
		payload := make([]byte, plen)
		copy(payload, b[fixed:total])
		return Frame{Kind: KindData, Data: DataFrame{
			StreamID: streamID, Sequence: seq, Flags: flags, Payload: payload,
		}}, total, nil

	case KindAck:
		const total = 1 + 8 + 8 + 4
		if len(b) < total {
			return Frame{}, 0, ErrFrameOverrun
		}
		streamID := readUint64(b[1:9])
		highest := readUint64(b[9:17])
		bitmap := readUint32(b[17:21])
		return Frame{Kind: KindAck, Ack: AckFrame{
			StreamID: streamID, HighestAck: highest, Bitmap: bitmap,
		}}, total, nil

	case KindControl:
		const fixed = 1 + 1 + 2
		if len(b) < fixed {
			return Frame{}, 0, ErrFrameOverrun
		}
		ctype := b[1]
		clen := readUint16(b[2:4])
		total := fixed + int(clen)
		if len(b) < total {
			return Frame{}, 0, ErrFrameOverrun
		}
		payload := make([]byte, clen)
		copy(payload, b[fixed:total])
		return Frame{Kind: KindControl, Control: ControlFrame{Type: ctype, Payload: payload}}, total, nil

	case KindHeartbeat:
		const fixed = 1 + 8 + 8 + 2
		if len(b) < fixed {
			return Frame{}, 0, ErrFrameOverrun
		}
		ts := readUint64(b[1:9])
		seq := readUint64(b[9:17])
		hlen := readUint16(b[17:19])
		total := fixed + int(hlen)
		if len(b) < total {
			return Frame{}, 0, ErrFrameOverrun
		}
		payload := make([]byte, hlen)
		copy(payload, b[fixed:total])
		return Frame{Kind: KindHeartbeat, Heartbeat: HeartbeatFrame{
			Timestamp: ts, Sequence: seq, Payload: payload,
		}}, total, nil

	default:
		return Frame{}, 0, ErrUnknownKind
	}
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func readUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
func readUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func readUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
