// Package obfuscation implements the traffic-shaping core (§4.4):
// deterministic per-packet padding/prefix sizing, timing jitter, and
// heartbeat payload mimicry, all driven by the seeded PRF in
// internal/prf so both peers of a session can recompute the same
// shaping independently from (seed, sequence) alone — nothing about
// the shaping is carried on the wire.
//
// Grounded on the teacher's generic
// infrastructure/cryptography/chacha20/obfuscation.ChaCha20Obfuscator,
// which derives its prefix offset deterministically from an HMAC over
// (psk, nonce); here the same idea is generalized from "one offset"
// to a full profile of prefix, padding, jitter and heartbeat shaping.
package obfuscation

// PaddingDistribution selects how padding_size is drawn.
type PaddingDistribution int

const (
	// PaddingUniform draws padding_size uniformly from [MinPadding, MaxPadding].
	PaddingUniform PaddingDistribution = iota
	// PaddingAdvanced first picks a size class (small/medium/large) by
	// weighted choice, then draws uniformly within that class's bounds.
	PaddingAdvanced
)

// SizeClass bounds one class of the advanced padding distribution.
type SizeClass struct {
	Weight int
	Min    int
	Max    int
}

// JitterModel selects the timing-jitter shape.
type JitterModel int

const (
	JitterUniform JitterModel = iota
	JitterPoisson
	JitterExponential
)

// HeartbeatIntervalModel selects how long to wait between heartbeats.
type HeartbeatIntervalModel int

const (
	HeartbeatIntervalUniform HeartbeatIntervalModel = iota
	HeartbeatIntervalExponential
	HeartbeatIntervalBurst
)

// HeartbeatPayloadType selects the mimic shape of heartbeat payloads.
type HeartbeatPayloadType int

const (
	HeartbeatEmpty HeartbeatPayloadType = iota
	HeartbeatTimestampOnly
	HeartbeatIoTMimic
	HeartbeatTelemetryMimic
	HeartbeatDNSMimic
	HeartbeatSTUNMimic
	HeartbeatRTPMimic
	HeartbeatRandomSize
)

// Profile is the full obfuscation configuration for a session (§3).
type Profile struct {
	Enabled bool
	Seed    []byte // >= 16 bytes

	MinPrefix, MaxPrefix   int
	MinPadding, MaxPadding int

	PaddingDist    PaddingDistribution
	PaddingClasses [3]SizeClass // small, medium, large; used when PaddingDist == PaddingAdvanced

	JitterModel JitterModel
	JitterMaxMS int
	JitterScale float64

	HeartbeatIntervalModel HeartbeatIntervalModel
	HeartbeatMinIntervalMS int
	HeartbeatMaxIntervalMS int
	HeartbeatPayloadMode   HeartbeatPayloadType
}
