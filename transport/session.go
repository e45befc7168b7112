package transport

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/application"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/domain"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/fragment"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/mux"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/primitives"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/reorder"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/replay"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/retransmit"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/rotation"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/seqobf"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/wire"
	"github.com/konard/VisageDvachevsky-veil-client-sub000/obfuscation"
)

// aeadOverhead is ChaCha20-Poly1305's fixed tag length, used to compute
// a header's PayloadLength before sealing (ciphertext length is always
// plaintext length + this constant).
const aeadOverhead = 16

// flagFragment marks a DATA frame as one piece of a fragmented message;
// its payload is prefixed with a fragmentHeader instead of carrying raw
// application bytes directly. Local to this package — spec.md's §4.3
// frame table doesn't need a wire field for this since mux is VEIL's
// own codec, not a teacher-inherited format.
const flagFragment byte = 1 << 1

const fragmentHeaderSize = 16 + 4 + 4 // message_id + offset + total_len

// Config tunes a Session's fragmentation, rotation and ACK-scheduling
// behavior. Zero values fall back to the defaults named in §4.10-§4.12.
type Config struct {
	MaxFragmentSize int

	RotationInterval   time.Duration
	RotationMaxPackets uint64

	AckCoalesceCount int
	MaxAckDelay      time.Duration

	Retransmit  retransmit.Config
	Obfuscation obfuscation.Profile

	ReorderMaxBytes    uint64
	ReassemblyMaxBytes int
	ReassemblyTimeout  time.Duration

	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxFragmentSize <= 0 {
		c.MaxFragmentSize = 1200
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = 30 * time.Second
	}
	if c.RotationMaxPackets == 0 {
		c.RotationMaxPackets = 1_000_000
	}
	ackCfg := ackScheduleConfig{CoalesceCount: c.AckCoalesceCount, MaxAckDelay: c.MaxAckDelay}.withDefaults()
	c.AckCoalesceCount = ackCfg.CoalesceCount
	c.MaxAckDelay = ackCfg.MaxAckDelay
	if c.ReorderMaxBytes == 0 {
		c.ReorderMaxBytes = 4 << 20
	}
	if c.ReassemblyMaxBytes == 0 {
		c.ReassemblyMaxBytes = 4 << 20
	}
	if c.ReassemblyTimeout <= 0 {
		c.ReassemblyTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	return c
}

// DeliveredMessage is one in-order, fully reassembled application
// payload handed back to the caller from DecryptPacket (§4.12: "Return
// the parsed frames for the caller to consume DATA payloads" — the
// session does the reordering/reassembly internally and only surfaces
// what's ready to deliver).
type DeliveredMessage struct {
	StreamID uint64
	Payload  []byte
	Fin      bool
}

// Session is the single-threaded, per-peer encrypted datagram endpoint
// (§4.12, §5). Every method must be called from one logical executor;
// nothing here is safe for concurrent use by design — the only
// cross-session shared state in VEIL is handshake.ReplayCache, which
// lives outside this type entirely.
type Session struct {
	cfg Config

	sessionID   uint64 // this side's current outgoing session_id
	isInitiator bool

	// peerSessionID is the most recently authenticated session_id our
	// peer has sent — tracked independently of sessionID above, since
	// each side rotates on its own trigger (§4.12) and the two IDs are
	// never assumed to stay in lockstep.
	peerSessionID uint64

	sendKey, recvKey             [domain.KeySize]byte
	sendBaseNonce, recvBaseNonce [domain.BaseNonceSize]byte

	sendSequence uint64
	streamSeq    map[uint64]uint64

	seqObfSend seqobf.Key
	seqObfRecv seqobf.Key

	replayWindow *replay.Window
	retransmit   *retransmit.Buffer
	reorders     map[uint64]*reorder.Buffer
	fragments    *fragment.Reassembly

	ackStates map[uint64]*ackState
	ackConfig ackScheduleConfig

	rotator              *rotation.Rotator
	packetsSinceRotation uint64

	heartbeatSeq uint64

	idle        *IdleMonitor
	degradation *DegradationPolicy

	clock   application.Clock
	random  application.RandomSource
	metrics application.MetricsSink

	stats Stats
}

// NewSession builds a Session from a completed HandshakeSession,
// consuming it (the caller must not reuse hs afterward — its key
// material now belongs exclusively to this Session, per §3's ownership
// invariant).
func NewSession(hs domain.HandshakeSession, isInitiator bool, cfg Config, clock application.Clock, random application.RandomSource, metrics application.MetricsSink) (*Session, error) {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = application.NopMetricsSink{}
	}

	var sendBase, recvBase [domain.BaseNonceSize]byte
	sendBase = hs.Keys.SendBaseNonce
	recvBase = hs.Keys.RecvBaseNonce

	seqObfSend, err := seqobf.DeriveKey(hs.Keys.SendKey[:], sendBase[:])
	if err != nil {
		return nil, err
	}
	seqObfRecv, err := seqobf.DeriveKey(hs.Keys.RecvKey[:], recvBase[:])
	if err != nil {
		return nil, err
	}

	rotator, err := rotation.New(random, cfg.RotationInterval, cfg.RotationMaxPackets, clock.Now())
	if err != nil {
		return nil, err
	}

	now := clock.Now()
	s := &Session{
		cfg:           cfg,
		sessionID:     hs.SessionID,
		peerSessionID: hs.SessionID,
		isInitiator:   isInitiator,
		sendKey:       hs.Keys.SendKey,
		recvKey:       hs.Keys.RecvKey,
		sendBaseNonce: sendBase,
		recvBaseNonce: recvBase,
		streamSeq:     make(map[uint64]uint64),
		seqObfSend:    seqObfSend,
		seqObfRecv:    seqObfRecv,
		replayWindow:  replay.New(),
		retransmit:    retransmit.New(cfg.Retransmit),
		reorders:      make(map[uint64]*reorder.Buffer),
		fragments:     fragment.New(cfg.ReassemblyMaxBytes, cfg.ReassemblyTimeout),
		ackStates:     make(map[uint64]*ackState),
		ackConfig:     ackScheduleConfig{CoalesceCount: cfg.AckCoalesceCount, MaxAckDelay: cfg.MaxAckDelay}.withDefaults(),
		rotator:       rotator,
		idle:          NewIdleMonitor(cfg.IdleTimeout, now),
		degradation:   NewDegradationPolicy(time.Second, 5),
		clock:         clock,
		random:        random,
		metrics:       metrics,
	}
	return s, nil
}

// SessionID returns the current wire-visible session identifier this
// side stamps on its own outgoing packets.
func (s *Session) SessionID() uint64 { return s.sessionID }

// PeerSessionID returns the most recently authenticated session_id our
// peer has sent, which may lag or lead our own SessionID() depending
// on each side's independent rotation schedule.
func (s *Session) PeerSessionID() uint64 { return s.peerSessionID }

// IsInitiator reports which handshake role derived this session's keys.
func (s *Session) IsInitiator() bool { return s.isInitiator }

// Stats returns a snapshot of the session's observability counters.
func (s *Session) Stats() Stats { return s.stats }

func (s *Session) reorderFor(streamID uint64) *reorder.Buffer {
	b, ok := s.reorders[streamID]
	if !ok {
		// Per-stream message sequences start at 1 (EncryptData
		// pre-increments from the map's zero value), so the reorder
		// buffer must expect 1 as its first in-order sequence too.
		b = reorder.New(1, s.cfg.ReorderMaxBytes)
		s.reorders[streamID] = b
	}
	return b
}

// EncryptData implements §4.12's send path: fragmenting plaintext if it
// exceeds MaxFragmentSize, sealing each resulting DATA frame into its
// own wire packet, and buffering each for possible retransmission.
func (s *Session) EncryptData(plaintext []byte, streamID uint64, fin bool) ([][]byte, error) {
	s.streamSeq[streamID]++
	msgSeq := s.streamSeq[streamID]

	var payloads [][]byte
	if len(plaintext) <= s.cfg.MaxFragmentSize {
		payloads = [][]byte{plaintext}
	} else {
		payloads = splitChunks(plaintext, s.cfg.MaxFragmentSize)
	}

	fragmented := len(payloads) > 1
	var messageID uuid.UUID
	if fragmented {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}
		messageID = id
	}

	packets := make([][]byte, 0, len(payloads))
	offset := 0
	for i, chunk := range payloads {
		last := i == len(payloads)-1
		var framePayload []byte
		flags := byte(0)
		if fragmented {
			flags |= flagFragment
			framePayload = encodeFragmentHeader(messageID, offset, len(plaintext), chunk)
		} else {
			framePayload = chunk
		}
		if last && fin {
			flags |= mux.FlagFin
		}

		frame := mux.Frame{Kind: mux.KindData, Data: mux.DataFrame{
			StreamID: streamID,
			Sequence: msgSeq,
			Flags:    flags,
			Payload:  framePayload,
		}}

		pkt, err := s.sealFrame(frame)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
		offset += len(chunk)
	}
	return packets, nil
}

// sealFrame builds and AEAD-seals one outer packet carrying a single
// inner frame, buffers it for retransmission (DATA frames only — ACKs
// and heartbeats aren't retransmitted), and applies the obfuscation
// prefix/padding (§4.2 step 3, §4.12 steps 2-5).
func (s *Session) sealFrame(frame mux.Frame) ([]byte, error) {
	wireSeq := s.sendSequence
	nonce := primitives.DeriveNonce(s.sendBaseNonce, wireSeq)

	frameArea, frameCount, err := mux.Encode([]mux.Frame{frame})
	if err != nil {
		return nil, err
	}

	obfuscatedSeq := seqobf.Obfuscate(wireSeq, s.seqObfSend)
	header := wire.BuildHeader(0, s.sessionID, obfuscatedSeq, frameCount, len(frameArea)+aeadOverhead)
	aad := wire.Encode(header, nil)

	ciphertext, err := primitives.Seal(s.sendKey[:], nonce[:], aad, frameArea)
	if err != nil {
		return nil, err
	}
	packet := wire.Encode(header, ciphertext)

	if frame.Kind == mux.KindData {
		s.retransmit.Insert(wireSeq, packet, s.clock.Now())
	}

	s.sendSequence++
	s.packetsSinceRotation++
	s.stats.PacketsSent++
	s.stats.BytesSent += uint64(len(packet))

	return s.applyObfuscation(wireSeq, packet), nil
}

// applyObfuscation wraps packet with the deterministic PRF-derived
// prefix and trailing padding for sequence seq (§4.4). Both are outside
// the AEAD boundary: cosmetic filler the receiver strips before
// decoding, recovered purely from (seed, seq) with no wire-visible
// length hint.
func (s *Session) applyObfuscation(seq uint64, packet []byte) []byte {
	prof := &s.cfg.Obfuscation
	if !prof.Enabled {
		return packet
	}
	prefix := prof.PrefixBytes(seq, prof.PrefixSize(seq))
	padding := prof.PaddingBytes(seq, prof.PaddingSize(seq))

	out := make([]byte, 0, len(prefix)+len(packet)+len(padding))
	out = append(out, prefix...)
	out = append(out, packet...)
	out = append(out, padding...)
	return out
}

// stripObfuscation recovers and removes the prefix/padding for
// sequence seq, assuming the caller already knows which sequence this
// datagram is expected to carry (§9 Open Question resolution: VEIL
// derives prefix length from (seed, expected_sequence) on both sides).
func (s *Session) stripObfuscation(seq uint64, data []byte) ([]byte, bool) {
	prof := &s.cfg.Obfuscation
	if !prof.Enabled {
		return data, true
	}
	prefixSize := prof.PrefixSize(seq)
	paddingSize := prof.PaddingSize(seq)
	if len(data) < prefixSize+paddingSize {
		return nil, false
	}
	return data[prefixSize : len(data)-paddingSize], true
}

// DecryptPacket implements §4.12's receive path: strip obfuscation,
// parse the outer packet, replay-check, authenticate, parse inner
// frames, and dispatch them — feeding DATA into reassembly/reordering
// and returning whatever application messages are now deliverable
// in-order.
func (s *Session) DecryptPacket(data []byte) ([]DeliveredMessage, error) {
	expectedSeq := uint64(0)
	if head, hasHead := s.replayWindow.Head(); hasHead {
		expectedSeq = head + 1
	}

	inner, ok := s.stripObfuscation(expectedSeq, data)
	if !ok {
		s.stats.MalformedDrops++
		s.metrics.IncCounter("transport_drop_malformed", 1)
		return nil, nil
	}

	header, ciphertext, err := wire.Decode(inner)
	if err != nil {
		s.stats.MalformedDrops++
		s.metrics.IncCounter("transport_drop_malformed", 1)
		return nil, nil
	}

	// session_id is a demultiplexer hint, not an admission gate (§3:
	// "rotation changes the demultiplexer only; it does not reset keys,
	// nonces, or counters" — communication continues across it). AEAD
	// authentication below, not equality against our own current ID, is
	// what actually proves this packet came from our peer: the peer
	// rotates its outgoing session_id on its own schedule, independent
	// of ours, so gating here before auth would permanently wedge that
	// direction the moment either side's rotation trigger fires.
	seq := seqobf.Deobfuscate(header.WireSequence, s.seqObfRecv)
	if err := s.replayWindow.CheckAndSet(seq); err != nil {
		s.stats.ReplayRejected++
		s.metrics.IncCounter("transport_drop_replay", 1)
		return nil, nil
	}

	nonce := primitives.DeriveNonce(s.recvBaseNonce, seq)
	aad := wire.AAD(inner)
	plaintext, err := primitives.Open(s.recvKey[:], nonce[:], aad, ciphertext)
	if err != nil {
		s.stats.AuthFailures++
		s.metrics.IncCounter("transport_drop_auth", 1)
		return nil, nil
	}

	// The packet authenticated, so header.SessionID is genuinely our
	// peer's current outgoing ID — adopt it if its rotation trigger
	// fired since the last packet we accepted from it. This never
	// touches s.sessionID, which governs what WE put on our own
	// outgoing packets and rotates only via our own Tick.
	if header.SessionID != s.peerSessionID {
		s.peerSessionID = header.SessionID
		s.stats.PeerRotations++
	}

	frames, err := mux.Decode(plaintext, header.FrameCount)
	if err != nil {
		s.stats.MalformedDrops++
		s.metrics.IncCounter("transport_drop_malformed", 1)
		return nil, nil
	}

	s.stats.PacketsReceived++
	s.stats.BytesReceived += uint64(len(data))
	now := s.clock.Now()
	s.idle.Touch(now)

	var delivered []DeliveredMessage
	for _, f := range frames {
		switch f.Kind {
		case mux.KindAck:
			s.applyAck(f.Ack, now)
		case mux.KindData:
			msgs := s.dispatchData(f.Data, seq, now)
			delivered = append(delivered, msgs...)
		case mux.KindHeartbeat:
			// Activity already recorded via idle.Touch above; no
			// further action (§4.12: "HEARTBEAT → update activity timer").
		case mux.KindControl:
			// Reserved (§4.3).
		}
	}
	return delivered, nil
}

// dispatchData processes one DATA frame. wireSeq is the packet's outer
// (crypto) sequence number — the same space the retransmit buffer and
// ACK bitmap key against, distinct from d.Sequence, the per-stream
// message sequence the reorder buffer uses to deliver in order.
func (s *Session) dispatchData(d mux.DataFrame, wireSeq uint64, now time.Time) []DeliveredMessage {
	s.onReceive(d.StreamID, wireSeq, d.Fin(), now)

	var payload []byte
	if d.Flags&flagFragment != 0 {
		messageID, offset, totalLen, chunk, ok := decodeFragmentHeader(d.Payload)
		if !ok {
			s.stats.MalformedDrops++
			return nil
		}
		if !s.fragments.Push(messageID, fragment.Piece{Offset: offset, Data: chunk, Last: offset+len(chunk) == totalLen}, now) {
			if s.degradation.RecordHit(now) == ActionDropPendingMessage {
				s.fragments.DropMessage(messageID)
			}
			return nil
		}
		full, ready := s.fragments.TryReassemble(messageID)
		if !ready {
			return nil
		}
		if len(full) != totalLen {
			s.stats.MalformedDrops++
			return nil
		}
		payload = full
	} else {
		payload = d.Payload
	}

	buf := s.reorderFor(d.StreamID)
	if !buf.Push(d.Sequence, payload) {
		s.degradation.RecordHit(now)
		return nil
	}

	var out []DeliveredMessage
	for {
		next, ok := buf.PopNext()
		if !ok {
			break
		}
		out = append(out, DeliveredMessage{StreamID: d.StreamID, Payload: next, Fin: d.Fin()})
	}
	return out
}

// GenerateDueAcks builds and seals an AckFrame packet for every stream
// whose ACK is due as of now (§4.8's scheduler).
func (s *Session) GenerateDueAcks(now time.Time) ([][]byte, error) {
	var packets [][]byte
	for _, streamID := range s.dueAckStreams(now) {
		frame := s.buildAckFrame(streamID)
		pkt, err := s.sealFrame(frame)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}

// GenerateHeartbeat builds one heartbeat packet using the profile's
// configured payload mimic, independent of whether application data is
// flowing (§4.4).
func (s *Session) GenerateHeartbeat(now time.Time) ([]byte, error) {
	s.heartbeatSeq++
	payload := s.cfg.Obfuscation.HeartbeatPayload(s.heartbeatSeq, now)
	frame := mux.Frame{Kind: mux.KindHeartbeat, Heartbeat: mux.HeartbeatFrame{
		Timestamp: uint64(now.UnixMilli()),
		Sequence:  s.heartbeatSeq,
		Payload:   payload,
	}}
	return s.sealFrame(frame)
}

// Tick runs the periodic, caller-driven work a session needs: scanning
// for due retransmits and rotating the session_id if its trigger has
// fired (§4.12, §5's "caller drives timer-derived operations").
// Retransmits are returned as wire packets ready to send, wrapped in
// the same obfuscation prefix/padding as the original transmission; the
// rotation flag tells the caller a new SessionID() is now active.
func (s *Session) Tick(now time.Time) (retransmitPackets [][]byte, rotated bool, err error) {
	for _, p := range s.retransmit.PacketsToRetransmit(now) {
		if !s.retransmit.MarkRetransmitted(p.Sequence, now) {
			s.retransmit.DropPacket(p.Sequence)
			continue
		}
		retransmitPackets = append(retransmitPackets, s.applyObfuscation(p.Sequence, p.Data))
		s.stats.Retransmits++
	}

	if s.rotator.ShouldRotate(s.packetsSinceRotation, now) {
		newID, rerr := s.rotator.Rotate(now)
		if rerr != nil {
			return retransmitPackets, false, rerr
		}
		s.sessionID = newID
		s.packetsSinceRotation = 0
		s.stats.Rotations++
		rotated = true
	}

	return retransmitPackets, rotated, nil
}

// Zero clears every piece of key material this session owns (§3, §5:
// "every allocation holding a secret ... MUST be zeroed on every exit
// path").
func (s *Session) Zero() {
	domain.ZeroBytes(s.sendKey[:])
	domain.ZeroBytes(s.recvKey[:])
	domain.ZeroBytes(s.sendBaseNonce[:])
	domain.ZeroBytes(s.recvBaseNonce[:])
	s.seqObfSend.Zero()
	s.seqObfRecv.Zero()
}

func splitChunks(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

func encodeFragmentHeader(messageID uuid.UUID, offset, totalLen int, chunk []byte) []byte {
	out := make([]byte, fragmentHeaderSize+len(chunk))
	copy(out[0:16], messageID[:])
	binary.BigEndian.PutUint32(out[16:20], uint32(offset))
	binary.BigEndian.PutUint32(out[20:24], uint32(totalLen))
	copy(out[fragmentHeaderSize:], chunk)
	return out
}

func decodeFragmentHeader(payload []byte) (messageID uuid.UUID, offset, totalLen int, chunk []byte, ok bool) {
	if len(payload) < fragmentHeaderSize {
		return uuid.UUID{}, 0, 0, nil, false
	}
	copy(messageID[:], payload[0:16])
	offset = int(binary.BigEndian.Uint32(payload[16:20]))
	totalLen = int(binary.BigEndian.Uint32(payload[20:24]))
	chunk = payload[fragmentHeaderSize:]
	return messageID, offset, totalLen, chunk, true
}
