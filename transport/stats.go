// Package transport implements the integration point (§4.12): the
// per-peer encrypted datagram Session composed from every primitive in
// internal/ and obfuscation/ — AEAD sealing with derived nonces, replay
// protection, sequence/stream multiplexing, fragmentation and
// reassembly, selective-ACK generation, RTT-estimated retransmission,
// and periodic session-id rotation.
//
// Grounded on the teacher's udp_chacha20 session package (session.go,
// udp_session.go): a single struct owning one peer's live crypto and
// connection state, generalized here from the teacher's TCP/UDP
// plumbing to VEIL's datagram-native, substrate-agnostic core (§1: the
// session never touches a net.Conn directly, only byte slices).
package transport

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats accumulates the monotonic observability counters named in §3.
// Grounded on postalsys-Muti-Metroo's use of go-humanize for
// human-readable counter/byte formatting.
type Stats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	ReplayRejected  uint64
	AuthFailures    uint64
	MalformedDrops  uint64
	Retransmits     uint64
	Rotations       uint64
	PeerRotations   uint64
}

// String renders the counters for logs/diagnostics using humanize's
// comma-grouped integers and byte-size formatting.
func (s Stats) String() string {
	return fmt.Sprintf(
		"sent=%s (%s) recv=%s (%s) replay_rejected=%s auth_failures=%s malformed=%s retransmits=%s rotations=%s peer_rotations=%s",
		humanize.Comma(int64(s.PacketsSent)), humanize.Bytes(s.BytesSent),
		humanize.Comma(int64(s.PacketsReceived)), humanize.Bytes(s.BytesReceived),
		humanize.Comma(int64(s.ReplayRejected)),
		humanize.Comma(int64(s.AuthFailures)),
		humanize.Comma(int64(s.MalformedDrops)),
		humanize.Comma(int64(s.Retransmits)),
		humanize.Comma(int64(s.Rotations)),
		humanize.Comma(int64(s.PeerRotations)),
	)
}
