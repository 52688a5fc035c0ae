package chunker

import (
	"bytes"
	"strings"
	"testing"
)

func TestSourceSplitsIntoChunks(t *testing.T) {
	src, err := NewSource(strings.NewReader("ABCDEFGHIJKLMNOPQRST"), 10)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if src.TotalChunks() != 2 {
		t.Fatalf("TotalChunks = %d, want 2", src.TotalChunks())
	}
	if string(src.Chunk(1)) != "ABCDEFGHIJ" {
		t.Errorf("chunk 1 = %q", src.Chunk(1))
	}
	if string(src.Chunk(2)) != "KLMNOPQRST" {
		t.Errorf("chunk 2 = %q", src.Chunk(2))
	}
}

func TestSourceLastChunkShorter(t *testing.T) {
	src, err := NewSource(strings.NewReader("ABCDEFGHIJK"), 10)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if src.TotalChunks() != 2 {
		t.Fatalf("TotalChunks = %d, want 2", src.TotalChunks())
	}
	if string(src.Chunk(2)) != "K" {
		t.Errorf("final chunk = %q, want %q", src.Chunk(2), "K")
	}
}

func TestSourceOutOfRangeReturnsNil(t *testing.T) {
	src, _ := NewSource(strings.NewReader("AB"), 10)
	if src.Chunk(0) != nil || src.Chunk(99) != nil {
		t.Error("out-of-range chunk access should return nil")
	}
}

func TestSinkWritesInOrder(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)

	if err := sink.Write([]byte("ABC")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Write([]byte("DEF")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.String() != "ABCDEF" {
		t.Errorf("sink contents = %q, want %q", buf.String(), "ABCDEF")
	}
}
