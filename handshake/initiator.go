package handshake

import (
	"errors"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/application"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/domain"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/primitives"
)

// ErrAuthenticationFailed is returned by the initiator when RESPONSE
// fails its MAC or confirmation check. Unlike the responder, the
// initiator is not under active-probing pressure (it chose to send
// INIT), so it's permitted to surface a concrete error to its caller
// rather than silently drop.
var ErrAuthenticationFailed = primitives.ErrAuthenticationFailed

// ErrSkewExceeded is returned when a RESPONSE is rejected because the
// initiator's clock at RESPONSE-receipt time falls outside tolerance of
// the timestamp it put in its own INIT. RESPONSE carries no timestamp,
// so this is the only skew check on the initiator side.
var ErrSkewExceeded = errors.New("handshake: clock skew exceeds tolerance")

const version byte = 1

// Version is the wire version byte every INIT/RESPONSE pair must agree
// on (§4.5). Exported so embedders can log or assert against it.
const Version = version

// Initiator drives the initiating side of one handshake exchange: it
// has at most one in-flight INIT at a time. Grounded on the teacher's
// client-side handshake driver (client_hello.go's build-then-await
// structure), adapted to VEIL's PSK-bound X25519 exchange instead of
// the teacher's certificate-based one.
type Initiator struct {
	psk    []byte
	clock  application.Clock
	random application.RandomSource

	ephemeralPriv [32]byte
	ephemeralPub  [32]byte
	salt          [16]byte
	timestampMS   uint64
	pending       bool
}

// NewInitiator builds an Initiator bound to psk (the long-term shared
// secret), using clock for timestamps and random for ephemeral key and
// salt generation.
func NewInitiator(psk []byte, clock application.Clock, random application.RandomSource) *Initiator {
	return &Initiator{psk: psk, clock: clock, random: random}
}

// BuildInit generates a fresh ephemeral keypair and salt, stamps the
// current wall time, and returns the wire-ready INIT message. Only one
// INIT may be pending at a time; calling BuildInit again before
// ProcessResponse discards the prior attempt.
func (i *Initiator) BuildInit() (*Init, error) {
	epub, epriv, err := primitives.X25519Keypair(i.random)
	if err != nil {
		return nil, err
	}
	i.ephemeralPriv = epriv
	i.ephemeralPub = epub

	if _, err := i.random.Read(i.salt[:]); err != nil {
		return nil, err
	}
	i.timestampMS = uint64(i.clock.WallNow())
	i.pending = true

	msg := &Init{
		Version:            version,
		InitiatorEphemeral: i.ephemeralPub,
		TimestampMS:        i.timestampMS,
		Salt:               i.salt,
	}
	mac := primitives.HMACSHA256(i.psk, msg.MACInput())
	copy(msg.PSKMac[:], mac)
	return msg, nil
}

// ProcessResponse validates resp against the pending INIT and, on
// success, derives the session's SessionKeys and returns a completed
// HandshakeSession. Any validation failure returns a concrete error —
// the initiator, unlike the responder, is not defending against active
// probing by staying silent; it already knows it sent an INIT.
func (i *Initiator) ProcessResponse(resp *Response, skewToleranceMS uint64) (domain.HandshakeSession, error) {
	if !i.pending {
		return domain.HandshakeSession{}, errors.New("handshake: no pending INIT")
	}

	expectedMac := primitives.HMACSHA256(i.psk, resp.MACInput())
	if !primitives.HMACEqual(expectedMac, resp.PSKMac[:]) {
		return domain.HandshakeSession{}, ErrAuthenticationFailed
	}

	now := uint64(i.clock.WallNow())
	if skewExceeded(now, i.timestampMS, skewToleranceMS) {
		return domain.HandshakeSession{}, ErrSkewExceeded
	}

	ss, err := primitives.X25519Shared(i.ephemeralPriv, resp.ResponderEphemeral)
	if err != nil {
		return domain.HandshakeSession{}, err
	}
	defer domain.ZeroBytes(ss[:])

	confKey, err := confirmationKey(i.salt[:], ss[:])
	if err != nil {
		return domain.HandshakeSession{}, err
	}
	defer domain.ZeroBytes(confKey)

	aad := confirmationAAD(version, i.ephemeralPub, resp.ResponderEphemeral, resp.SessionID)
	if err := openConfirmation(confKey, aad, resp.SealedConfirmation); err != nil {
		return domain.HandshakeSession{}, ErrAuthenticationFailed
	}

	keys, err := deriveSessionKeys(i.salt[:], ss[:], true)
	if err != nil {
		return domain.HandshakeSession{}, err
	}

	i.pending = false
	domain.ZeroBytes(i.ephemeralPriv[:])

	return domain.HandshakeSession{
		SessionID:          resp.SessionID,
		Keys:               keys,
		InitiatorEphemeral: i.ephemeralPub,
		ResponderEphemeral: resp.ResponderEphemeral,
	}, nil
}

func skewExceeded(now, stamped, tolerance uint64) bool {
	var delta uint64
	if now >= stamped {
		delta = now - stamped
	} else {
		delta = stamped - now
	}
	return delta > tolerance
}
