package obfuscation

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/prf"
)

// HeartbeatInterval computes the deterministic wait until the next
// heartbeat for sequence seq, under the profile's interval model,
// within [HeartbeatMinIntervalMS, HeartbeatMaxIntervalMS]. Heartbeats
// fire independent of application traffic (§4.4), so this is driven
// purely by (seed, seq), not by idle-time observations.
func (p *Profile) HeartbeatInterval(seq uint64) time.Duration {
	lo, hi := p.HeartbeatMinIntervalMS, p.HeartbeatMaxIntervalMS
	if hi <= lo {
		return time.Duration(lo) * time.Millisecond
	}

	switch p.HeartbeatIntervalModel {
	case HeartbeatIntervalExponential:
		u := float64(prf.Uint64(p.Seed, seq, "hb-interval")%1_000_000) / 1_000_000
		scale := float64(hi-lo) / 3
		ms := lo + int(-scale*ln1mu(u))
		return clampMS(ms, lo, hi)
	case HeartbeatIntervalBurst:
		// Burst model: mostly the minimum interval, occasionally a long
		// gap, modeling a device that bursts then goes quiet.
		roll := prf.Uint64(p.Seed, seq, "hb-burst") % 100
		if roll < 80 {
			return time.Duration(lo) * time.Millisecond
		}
		return time.Duration(hi) * time.Millisecond
	default: // HeartbeatIntervalUniform
		ms := lo + int(prf.Uint64(p.Seed, seq, "hb-interval")%uint64(hi-lo+1))
		return time.Duration(ms) * time.Millisecond
	}
}

func ln1mu(u float64) float64 {
	if u >= 1 {
		u = 1 - 1e-9
	}
	return math.Log(1 - u)
}

func clampMS(ms, lo, hi int) time.Duration {
	if ms < lo {
		ms = lo
	}
	if ms > hi {
		ms = hi
	}
	return time.Duration(ms) * time.Millisecond
}

// HeartbeatPayload produces a structurally valid mimic payload for
// sequence seq and timestamp now, per the profile's configured
// HeartbeatPayloadType. Every variant shares the same per-sequence
// prefix/padding shaping applied by the caller afterward (§4.4), so
// only the inner payload shape varies here.
func (p *Profile) HeartbeatPayload(seq uint64, now time.Time) []byte {
	switch p.HeartbeatPayloadMode {
	case HeartbeatEmpty:
		return nil
	case HeartbeatTimestampOnly:
		return timestampPayload(now)
	case HeartbeatIoTMimic:
		return iotMimicPayload(p.Seed, seq, now)
	case HeartbeatTelemetryMimic:
		return telemetryMimicPayload(p.Seed, seq, now)
	case HeartbeatDNSMimic:
		return dnsMimicPayload(p.Seed, seq)
	case HeartbeatSTUNMimic:
		return stunMimicPayload(p.Seed, seq)
	case HeartbeatRTPMimic:
		return rtpMimicPayload(p.Seed, seq)
	case HeartbeatRandomSize:
		n := sizeInRange(p.Seed, seq, "hb-random-size", 8, 256)
		return prf.New(p.Seed, seq, "hb-random-bytes").Bytes(n)
	default:
		return nil
	}
}

func timestampPayload(now time.Time) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(now.UnixMilli()))
	return buf[:]
}

type iotSample struct {
	DeviceID    string  `json:"device_id"`
	Temperature float64 `json:"temperature_c"`
	Humidity    float64 `json:"humidity_pct"`
	Battery     int     `json:"battery_pct"`
	TimestampMS int64   `json:"ts_ms"`
}

func iotMimicPayload(seed []byte, seq uint64, now time.Time) []byte {
	raw := prf.New(seed, seq, "hb-iot").Bytes(8)
	sample := iotSample{
		DeviceID:    fmt.Sprintf("sensor-%04x", binary.BigEndian.Uint16(raw[0:2])),
		Temperature: 15 + float64(raw[2])/255*20,
		Humidity:    30 + float64(raw[3])/255*50,
		Battery:     int(raw[4]) % 101,
		TimestampMS: now.UnixMilli(),
	}
	out, err := json.Marshal(sample)
	if err != nil {
		return nil
	}
	return out
}

type telemetrySample struct {
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
	Host        string  `json:"host"`
	TimestampMS int64   `json:"ts_ms"`
}

func telemetryMimicPayload(seed []byte, seq uint64, now time.Time) []byte {
	raw := prf.New(seed, seq, "hb-telemetry").Bytes(8)
	sample := telemetrySample{
		Metric:      "cpu.utilization",
		Value:       float64(raw[0]) / 255 * 100,
		Host:        fmt.Sprintf("host-%02x", raw[1]),
		TimestampMS: now.UnixMilli(),
	}
	out, err := json.Marshal(sample)
	if err != nil {
		return nil
	}
	return out
}

// dnsMimicPayload builds a minimal, structurally valid DNS response:
// one question and one A-record answer, per RFC 1035 §4.1.
func dnsMimicPayload(seed []byte, seq uint64) []byte {
	raw := prf.New(seed, seq, "hb-dns").Bytes(8)
	id := binary.BigEndian.Uint16(raw[0:2])

	msg := make([]byte, 0, 64)
	var header [12]byte
	binary.BigEndian.PutUint16(header[0:2], id)
	header[2] = 0x81 // QR=1 (response), RD=1
	header[3] = 0x80 // RA=1
	binary.BigEndian.PutUint16(header[4:6], 1)  // QDCOUNT
	binary.BigEndian.PutUint16(header[6:8], 1)  // ANCOUNT
	msg = append(msg, header[:]...)

	// Question: a single-label name "hb" + root, type A, class IN.
	msg = append(msg, 0x02, 'h', 'b', 0x00)
	msg = append(msg, 0x00, 0x01) // QTYPE A
	msg = append(msg, 0x00, 0x01) // QCLASS IN

	// Answer: pointer to the question name, type A, class IN, a short
	// TTL, 4-byte RDATA holding a PRF-derived IPv4 address.
	msg = append(msg, 0xC0, 0x0C)
	msg = append(msg, 0x00, 0x01)
	msg = append(msg, 0x00, 0x01)
	msg = append(msg, 0x00, 0x00, 0x00, 0x3C) // TTL = 60s
	msg = append(msg, 0x00, 0x04)             // RDLENGTH
	msg = append(msg, raw[2], raw[3], raw[4], raw[5])
	return msg
}

// stunMimicPayload builds a minimal, structurally valid STUN Binding
// Success Response header per RFC 5389 §6 (no attributes).
func stunMimicPayload(seed []byte, seq uint64) []byte {
	raw := prf.New(seed, seq, "hb-stun").Bytes(12)

	msg := make([]byte, 20)
	binary.BigEndian.PutUint16(msg[0:2], 0x0101) // Binding Success Response
	binary.BigEndian.PutUint16(msg[2:4], 0)      // message length (no attributes)
	binary.BigEndian.PutUint32(msg[4:8], 0x2112A442) // magic cookie
	copy(msg[8:20], raw)                         // transaction ID
	return msg
}

// rtpMimicPayload builds a minimal, structurally valid RTP header per
// RFC 3550 §5.1, with a small PRF-derived payload.
func rtpMimicPayload(seed []byte, seq uint64) []byte {
	raw := prf.New(seed, seq, "hb-rtp").Bytes(16)

	header := make([]byte, 12)
	header[0] = 0x80 // version 2, no padding/extension/CSRC
	header[1] = 0x00 // payload type 0 (PCMU), no marker
	binary.BigEndian.PutUint16(header[2:4], binary.BigEndian.Uint16(raw[0:2]))  // sequence
	binary.BigEndian.PutUint32(header[4:8], binary.BigEndian.Uint32(raw[2:6]))  // timestamp
	binary.BigEndian.PutUint32(header[8:12], binary.BigEndian.Uint32(raw[6:10])) // SSRC

	payload := raw[10:]
	return append(header, payload...)
}
