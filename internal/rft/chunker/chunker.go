// Package chunker adapts a byte source/sink into the fixed-size chunk
// source and delivery sink the core engines consume (spec §6).
package chunker

import (
	"fmt"
	"io"

	"github.com/aetherflow/quantumrft/internal/rft/errs"
)

// DefaultChunkSize is the default payload size per DATA segment.
const DefaultChunkSize = 5120

// Source is a finite ordered sequence of byte payloads, each at most
// chunkSize bytes, read eagerly from r at construction time. Loading
// eagerly keeps the sender engine's chunk-source interface a simple
// slice index instead of a stateful reader, matching spec §6's
// description of the source as providing "a finite ordered sequence."
type Source struct {
	chunks [][]byte
}

// NewSource reads all of r into chunkSize-byte chunks (the final chunk
// may be shorter). Returns errs.ErrFileUnavailable on a read failure.
func NewSource(r io.Reader, chunkSize int) (*Source, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var chunks [][]byte
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks = append(chunks, chunk)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading chunk source: %v", errs.ErrFileUnavailable, err)
		}
	}

	return &Source{chunks: chunks}, nil
}

// TotalChunks returns the number of chunks in the source.
func (s *Source) TotalChunks() int {
	return len(s.chunks)
}

// Chunk returns the payload for 1-indexed sequence number seq. The
// sender engine's sequence space starts at 1 (spec §3).
func (s *Source) Chunk(seq uint32) []byte {
	idx := int(seq) - 1
	if idx < 0 || idx >= len(s.chunks) {
		return nil
	}
	return s.chunks[idx]
}

// Sink accumulates delivered chunks, in order, and writes them through
// to an underlying io.Writer. The core receiver engine guarantees the
// sink receives exactly the sender's chunks, in order, with no
// duplicates and no gaps (spec §6) — Sink itself performs no reordering.
type Sink struct {
	w io.Writer
}

// NewSink wraps w as a delivery sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Write appends a delivered chunk to the sink.
func (s *Sink) Write(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("%w: writing delivered chunk: %v", errs.ErrFileUnavailable, err)
	}
	return nil
}
