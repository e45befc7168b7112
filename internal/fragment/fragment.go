// Package fragment reassembles multi-datagram application messages
// from DATA frames tagged with a shared message_id and per-fragment
// byte offset, grounded on the original source's
// transport/mux/fragment_reassembly.{h,cpp}.
//
// message_id is left open by the wire format (§4.11); this package
// uses google/uuid's v4 UUIDs as a collision-free tag across a
// session's lifetime, generated once by the sender when a plaintext
// exceeds max_fragment_size and carried unchanged on every fragment of
// that message.
package fragment

import (
	"time"

	"github.com/google/uuid"
)

// Piece is one fragment of a larger message.
type Piece struct {
	Offset int
	Data   []byte
	Last   bool
}

type entry struct {
	fragments  []Piece
	totalBytes int
	hasLast    bool
	firstSeen  time.Time
}

// Reassembly accumulates fragments per message_id until the full
// message can be reconstructed, or until it expires unreassembled.
type Reassembly struct {
	maxBytes int
	timeout  time.Duration
	state    map[uuid.UUID]*entry
}

// New builds a reassembly tracker admitting at most maxBytes of
// buffered fragment payload per message, and discarding a message's
// fragments once timeout has elapsed since its first fragment arrived.
func New(maxBytes int, timeout time.Duration) *Reassembly {
	return &Reassembly{
		maxBytes: maxBytes,
		timeout:  timeout,
		state:    make(map[uuid.UUID]*entry),
	}
}

// Push buffers fragment under messageID. Returns false if admitting it
// would exceed maxBytes for that message, in which case the fragment
// (and, per §4.11's escalation note, the caller may choose to drop the
// whole in-progress message rather than just this fragment) is
// rejected.
func (r *Reassembly) Push(messageID uuid.UUID, piece Piece, now time.Time) bool {
	e, ok := r.state[messageID]
	if !ok {
		e = &entry{firstSeen: now}
		r.state[messageID] = e
	}

	if e.totalBytes+len(piece.Data) > r.maxBytes {
		return false
	}

	e.totalBytes += len(piece.Data)
	e.hasLast = e.hasLast || piece.Last
	e.fragments = append(e.fragments, piece)
	return true
}

// DropMessage discards all buffered fragments for messageID, per
// §4.11's escalation policy for a source repeatedly forcing rejected
// pushes.
func (r *Reassembly) DropMessage(messageID uuid.UUID) {
	delete(r.state, messageID)
}

// TryReassemble reconstructs the full message if the terminal fragment
// has arrived and the buffered fragments cover [0, total) with no
// gaps or overlaps. Returns false otherwise, leaving the partial state
// in place for more fragments to arrive.
func (r *Reassembly) TryReassemble(messageID uuid.UUID) ([]byte, bool) {
	e, ok := r.state[messageID]
	if !ok || !e.hasLast {
		return nil, false
	}

	sorted := make([]Piece, len(e.fragments))
	copy(sorted, e.fragments)
	sortByOffset(sorted)

	expected := 0
	for _, f := range sorted {
		if f.Offset != expected {
			return nil, false
		}
		expected += len(f.Data)
	}

	out := make([]byte, 0, expected)
	for _, f := range sorted {
		out = append(out, f.Data...)
	}
	delete(r.state, messageID)
	return out, true
}

func sortByOffset(pieces []Piece) {
	for i := 1; i < len(pieces); i++ {
		for j := i; j > 0 && pieces[j].Offset < pieces[j-1].Offset; j-- {
			pieces[j], pieces[j-1] = pieces[j-1], pieces[j]
		}
	}
}

// CleanupExpired discards every message whose first fragment arrived
// more than the configured timeout before now, and reports how many
// were removed.
func (r *Reassembly) CleanupExpired(now time.Time) int {
	removed := 0
	for id, e := range r.state {
		if now.Sub(e.firstSeen) > r.timeout {
			delete(r.state, id)
			removed++
		}
	}
	return removed
}

// MemoryUsage returns the total buffered fragment payload size across
// all in-progress messages.
func (r *Reassembly) MemoryUsage() int {
	total := 0
	for _, e := range r.state {
		total += e.totalBytes
	}
	return total
}
