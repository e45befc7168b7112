package transport

import (
	"time"

	"github.com/konard/VisageDvachevsky-veil-client-sub000/internal/mux"
)

// ackState is the per-stream receive-side bookkeeping from §3
// ("ack_state per stream") and §4.8's scheduler inputs.
type ackState struct {
	bitmap              mux.AckBitmap
	packetsSinceLastAck int
	firstUnackedTime    time.Time
	needsAck            bool
	gapDetected         bool
}

// ackScheduleConfig tunes §4.8's emission policy.
type ackScheduleConfig struct {
	CoalesceCount int           // immediate ACK after this many received packets
	MaxAckDelay   time.Duration // otherwise, coalesce up to this delay
}

func (c ackScheduleConfig) withDefaults() ackScheduleConfig {
	if c.CoalesceCount <= 0 {
		c.CoalesceCount = 2
	}
	if c.MaxAckDelay <= 0 {
		c.MaxAckDelay = 40 * time.Millisecond
	}
	return c
}

// onReceive records seq — the packet's wire (crypto) sequence, not its
// per-stream message sequence — as received for stream streamID,
// updating the gap/coalesce bookkeeping the scheduler consults in
// dueAckStreams. Keying the bitmap by wire sequence keeps it in the
// same space applyAck acknowledges against in the retransmit buffer.
func (s *Session) onReceive(streamID, seq uint64, fin bool, now time.Time) {
	st := s.ackStateFor(streamID)

	wasKnownHead := false
	if head, bits := st.bitmap.Head(); bits != 0 {
		wasKnownHead = seq <= head
	}

	st.bitmap.Ack(seq)
	st.packetsSinceLastAck++
	if st.packetsSinceLastAck == 1 {
		st.firstUnackedTime = now
	}

	if wasKnownHead {
		st.gapDetected = true
	}
	if fin || st.gapDetected || st.packetsSinceLastAck >= s.ackConfig.CoalesceCount {
		st.needsAck = true
	}
}

func (s *Session) ackStateFor(streamID uint64) *ackState {
	st, ok := s.ackStates[streamID]
	if !ok {
		st = &ackState{}
		s.ackStates[streamID] = st
	}
	return st
}

// dueAckStreams returns the stream IDs whose ACK is due as of now,
// either because the scheduler flagged it immediately (FIN, gap, or
// CoalesceCount reached) or because MaxAckDelay has elapsed since the
// first unacknowledged packet.
func (s *Session) dueAckStreams(now time.Time) []uint64 {
	var due []uint64
	for streamID, st := range s.ackStates {
		if st.packetsSinceLastAck == 0 {
			continue
		}
		if st.needsAck || now.Sub(st.firstUnackedTime) >= s.ackConfig.MaxAckDelay {
			due = append(due, streamID)
		}
	}
	return due
}

// buildAckFrame emits the AckFrame for streamID and resets its
// scheduler bookkeeping (§4.8: "on emission, counters reset; the gap
// flag clears").
func (s *Session) buildAckFrame(streamID uint64) mux.Frame {
	st := s.ackStateFor(streamID)
	head, bitmap := st.bitmap.Head()

	st.packetsSinceLastAck = 0
	st.needsAck = false
	st.gapDetected = false

	return mux.Frame{
		Kind: mux.KindAck,
		Ack: mux.AckFrame{
			StreamID:   streamID,
			HighestAck: head,
			Bitmap:     bitmap,
		},
	}
}

// applyAck folds a received AckFrame into the retransmit buffer: every
// bit set in the 32-bit window relative to HighestAck names an
// acknowledged sequence (§4.8's wraparound-safe bitmap semantics).
func (s *Session) applyAck(a mux.AckFrame, now time.Time) {
	s.retransmit.Acknowledge(a.HighestAck, now)
	for i := uint64(1); i < 32; i++ {
		if a.Bitmap&(1<<i) == 0 {
			continue
		}
		seq := a.HighestAck - i
		if seq > a.HighestAck {
			continue // underflow: bit refers to a sequence before 0, impossible here
		}
		s.retransmit.Acknowledge(seq, now)
	}
}
