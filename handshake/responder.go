package handshake

import (
	"github.com/konard/VisageDvachevsky-veil-client-sub000/application"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/domain"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/primitives"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/ratelimit"
)

// ResponderConfig collects the responder's tunable defense knobs, all
// named directly in §4.5/§4.6/§4.9.
type ResponderConfig struct {
	// SkewToleranceMS bounds |now - init.timestamp_ms| (§4.5 step 2).
	SkewToleranceMS uint64
	// ReplayCacheCapacity and ReplayWindowMS configure the handshake
	// replay cache (§4.6); zero values fall back to its defaults.
	ReplayCacheCapacity int
	ReplayWindowMS      uint64
	// RateLimitCapacity and RateLimitRefillPerSecond configure the
	// token-bucket admission gate (§4.9).
	RateLimitCapacity        int
	RateLimitRefillPerSecond float64
}

// Responder processes incoming INIT messages and produces RESPONSE
// messages plus completed HandshakeSession values. It owns the replay
// cache and rate limiter, matching the original source's pattern of a
// single responder object fronting all inbound handshakes (as opposed
// to per-attempt state, since the responder is inherently stateless
// across attempts except for these two shared defenses).
//
// Grounded on the teacher's server-side handshake acceptor
// (server_hello.go) generalized from its certificate check to VEIL's
// PSK MAC + replay cache + rate limiter gauntlet (§4.5 step 1-4).
type Responder struct {
	psk    []byte
	clock  application.Clock
	random application.RandomSource
	cfg    ResponderConfig

	replay  *ReplayCache
	limiter *ratelimit.TokenBucket
	metrics application.MetricsSink
}

// NewResponder builds a Responder bound to psk, using clock/random for
// timing and entropy and metrics to observe drop reasons. A nil metrics
// falls back to application.NopMetricsSink.
func NewResponder(psk []byte, clock application.Clock, random application.RandomSource, cfg ResponderConfig, metrics application.MetricsSink) *Responder {
	if metrics == nil {
		metrics = application.NopMetricsSink{}
	}
	return &Responder{
		psk:     psk,
		clock:   clock,
		random:  random,
		cfg:     cfg,
		replay:  NewReplayCache(cfg.ReplayCacheCapacity, cfg.ReplayWindowMS),
		limiter: ratelimit.NewTokenBucket(fallbackInt(cfg.RateLimitCapacity, 100), fallbackFloat(cfg.RateLimitRefillPerSecond, 100)),
		metrics: metrics,
	}
}

// HandleInit runs the full §4.5 responder gauntlet against msg and, on
// success, returns the wire-ready RESPONSE and the completed
// HandshakeSession. ok is false whenever any check in the failure
// taxonomy fires; callers MUST NOT send any reply in that case — the
// zero value of Response is never transmitted.
func (r *Responder) HandleInit(msg *Init) (resp *Response, session domain.HandshakeSession, ok bool) {
	if msg.Version != version {
		r.metrics.IncCounter("handshake_drop_version", 1)
		return nil, domain.HandshakeSession{}, false
	}

	expectedMac := primitives.HMACSHA256(r.psk, msg.MACInput())
	if !primitives.HMACEqual(expectedMac, msg.PSKMac[:]) {
		r.metrics.IncCounter("handshake_drop_mac", 1)
		return nil, domain.HandshakeSession{}, false
	}

	now := uint64(r.clock.WallNow())
	if skewExceeded(now, msg.TimestampMS, r.cfg.SkewToleranceMS) {
		r.metrics.IncCounter("handshake_drop_skew", 1)
		return nil, domain.HandshakeSession{}, false
	}

	if r.replay.MarkAndCheck(msg.TimestampMS, msg.InitiatorEphemeral) {
		r.metrics.IncCounter("handshake_drop_replay", 1)
		return nil, domain.HandshakeSession{}, false
	}

	if !r.limiter.Allow(r.clock.Now()) {
		r.metrics.IncCounter("handshake_drop_ratelimit", 1)
		return nil, domain.HandshakeSession{}, false
	}

	responderPub, responderPriv, err := primitives.X25519Keypair(r.random)
	if err != nil {
		r.metrics.IncCounter("handshake_drop_internal_error", 1)
		return nil, domain.HandshakeSession{}, false
	}
	defer domain.ZeroBytes(responderPriv[:])

	ss, err := primitives.X25519Shared(responderPriv, msg.InitiatorEphemeral)
	if err != nil {
		r.metrics.IncCounter("handshake_drop_internal_error", 1)
		return nil, domain.HandshakeSession{}, false
	}
	defer domain.ZeroBytes(ss[:])

	sessionID, err := r.random.Uint64()
	if err != nil {
		r.metrics.IncCounter("handshake_drop_internal_error", 1)
		return nil, domain.HandshakeSession{}, false
	}

	keys, err := deriveSessionKeys(msg.Salt[:], ss[:], false)
	if err != nil {
		r.metrics.IncCounter("handshake_drop_internal_error", 1)
		return nil, domain.HandshakeSession{}, false
	}

	confKey, err := confirmationKey(msg.Salt[:], ss[:])
	if err != nil {
		r.metrics.IncCounter("handshake_drop_internal_error", 1)
		return nil, domain.HandshakeSession{}, false
	}
	defer domain.ZeroBytes(confKey)

	response := &Response{
		ResponderEphemeral: responderPub,
		SessionID:          sessionID,
	}
	aad := confirmationAAD(version, msg.InitiatorEphemeral, responderPub, sessionID)
	sealed, err := sealConfirmation(confKey, aad)
	if err != nil {
		r.metrics.IncCounter("handshake_drop_internal_error", 1)
		return nil, domain.HandshakeSession{}, false
	}
	response.SealedConfirmation = sealed

	mac := primitives.HMACSHA256(r.psk, response.MACInput())
	copy(response.PSKMac[:], mac)

	r.metrics.IncCounter("handshake_accept", 1)

	return response, domain.HandshakeSession{
		SessionID:          sessionID,
		Keys:               keys,
		InitiatorEphemeral: msg.InitiatorEphemeral,
		ResponderEphemeral: responderPub,
	}, true
}

func fallbackInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func fallbackFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
