// Package reorder implements the receiver's out-of-order segment buffer.
package reorder

// Buffer is a sparse seq -> payload map holding segments with
// seq > expected, pending in-order delivery.
type Buffer struct {
	segments  map[uint32][]byte
	chunkSize int
}

// New returns an empty reorder buffer. chunkSize is used to convert the
// buffer's segment count into a byte count for admission control.
func New(chunkSize int) *Buffer {
	return &Buffer{
		segments:  make(map[uint32][]byte),
		chunkSize: chunkSize,
	}
}

// Bytes returns the number of bytes currently held (segment count *
// chunk size), used by the flow-control computation in §4.7.
func (b *Buffer) Bytes() int {
	return len(b.segments) * b.chunkSize
}

// Len returns the number of buffered out-of-order segments.
func (b *Buffer) Len() int {
	return len(b.segments)
}

// Has reports whether seq is already buffered (a duplicate out-of-order
// arrival).
func (b *Buffer) Has(seq uint32) bool {
	_, ok := b.segments[seq]
	return ok
}

// Insert admits seq into the buffer if the buffer's current occupancy
// (in bytes) is strictly less than rwnd, the advertised receive
// capacity. Returns false if the segment was discarded for lack of
// space.
func (b *Buffer) Insert(seq uint32, payload []byte, rwnd int) bool {
	if b.Bytes() >= rwnd {
		return false
	}
	b.segments[seq] = payload
	return true
}

// Drain removes and returns, in order, the run of consecutive segments
// starting at expected. The caller advances its own expected-sequence
// counter by the number of segments returned.
func (b *Buffer) Drain(expected uint32) [][]byte {
	var drained [][]byte
	for {
		payload, ok := b.segments[expected]
		if !ok {
			break
		}
		drained = append(drained, payload)
		delete(b.segments, expected)
		expected++
	}
	return drained
}
