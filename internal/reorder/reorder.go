// Package reorder implements the per-stream reorder buffer that lets
// the transport layer hand payloads to the application in sequence
// order even when the wire delivers them out of order, grounded on
// the original source's transport/mux/reorder_buffer.{h,cpp}.
package reorder

// Buffer holds out-of-order payloads until the missing predecessor
// arrives, bounded by a total byte budget so a peer cannot force
// unbounded buffering by withholding the one packet that would drain
// the queue.
type Buffer struct {
	next          uint64
	maxBytes      uint64
	bufferedBytes uint64
	pending       map[uint64][]byte
}

// New returns a buffer expecting `initial` as the first in-order
// sequence, admitting at most maxBytes of buffered payload at once.
func New(initial uint64, maxBytes uint64) *Buffer {
	return &Buffer{
		next:     initial,
		maxBytes: maxBytes,
		pending:  make(map[uint64][]byte),
	}
}

// Push buffers payload under seq. Returns false if seq is already
// behind NextExpected (a duplicate/stale delivery) or if admitting
// payload would exceed the byte budget; in either case the caller
// should drop the packet.
func (b *Buffer) Push(seq uint64, payload []byte) bool {
	if seq < b.next {
		return false
	}
	if _, exists := b.pending[seq]; exists {
		return false
	}
	if b.bufferedBytes+uint64(len(payload)) > b.maxBytes {
		return false
	}
	b.pending[seq] = payload
	b.bufferedBytes += uint64(len(payload))
	return true
}

// PopNext returns and removes the payload for NextExpected if it has
// arrived, advancing NextExpected by one. Returns false if the next
// in-order payload hasn't arrived yet.
func (b *Buffer) PopNext() ([]byte, bool) {
	payload, ok := b.pending[b.next]
	if !ok {
		return nil, false
	}
	delete(b.pending, b.next)
	b.bufferedBytes -= uint64(len(payload))
	b.next++
	return payload, true
}

// NextExpected returns the sequence number the buffer is waiting for.
func (b *Buffer) NextExpected() uint64 { return b.next }

// BufferedBytes returns the total size of payloads currently held.
func (b *Buffer) BufferedBytes() uint64 { return b.bufferedBytes }
