package fec

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRecoversMissingChunks(t *testing.T) {
	cfg := &Config{DataShards: 4, ParityShards: 2}

	enc, err := NewEncoder(cfg)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := NewDecoder(cfg)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	chunks := [][]byte{[]byte("chunk1"), []byte("chunk2"), []byte("chunk3"), []byte("chunk4")}

	var groupID uint64
	var parity [][]byte
	for _, c := range chunks {
		gid, p, err := enc.AddChunk(c)
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		if p != nil {
			groupID, parity = gid, p
		}
	}
	if parity == nil {
		t.Fatal("expected parity shards once group filled")
	}
	if len(parity) != cfg.ParityShards {
		t.Errorf("len(parity) = %d, want %d", len(parity), cfg.ParityShards)
	}

	// Chunks 1 and 3 are lost; 0, 2 and all parity arrive.
	dec.AddShard(groupID, 0, chunks[0], false)
	dec.AddShard(groupID, 2, chunks[2], false)

	var recovered [][]byte
	for i, p := range parity {
		rec, err := dec.AddShard(groupID, i, p, true)
		if err != nil {
			t.Fatalf("AddShard(parity %d): %v", i, err)
		}
		if rec != nil {
			recovered = rec
		}
	}

	if recovered == nil {
		t.Fatal("expected reconstruction once dataShards shards had arrived")
	}
	for i, want := range chunks {
		if !bytes.HasPrefix(recovered[i], want) {
			t.Errorf("recovered[%d] = %q, want prefix %q", i, recovered[i], want)
		}
	}
}

func TestEncoderNoParityUntilGroupFull(t *testing.T) {
	enc, err := NewEncoder(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	for i := 0; i < DefaultDataShards-1; i++ {
		gid, parity, err := enc.AddChunk([]byte("x"))
		if err != nil {
			t.Fatalf("AddChunk %d: %v", i, err)
		}
		if parity != nil || gid != 0 {
			t.Errorf("AddChunk %d: group should not complete early", i)
		}
	}
	gid, parity, err := enc.AddChunk([]byte("x"))
	if err != nil {
		t.Fatalf("final AddChunk: %v", err)
	}
	if gid == 0 || len(parity) != DefaultParityShards {
		t.Errorf("expected completed group with %d parity shards, got gid=%d len=%d", DefaultParityShards, gid, len(parity))
	}
}

func TestDecoderCleanupOldGroups(t *testing.T) {
	dec, err := NewDecoder(DefaultConfig())
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	for gid := uint64(1); gid <= 10; gid++ {
		dec.AddShard(gid, 0, []byte("x"), false)
	}
	if got := dec.Statistics().ActiveGroups; got != 10 {
		t.Fatalf("ActiveGroups = %d, want 10", got)
	}
	dec.CleanupOldGroups(5)
	if got := dec.Statistics().ActiveGroups; got != 5 {
		t.Errorf("ActiveGroups after cleanup = %d, want 5", got)
	}
}

func TestOverhead(t *testing.T) {
	cases := []struct {
		data, parity int
		want         float64
	}{
		{10, 3, 0.3},
		{4, 2, 0.5},
		{10, 0, 0.0},
	}
	for _, c := range cases {
		if got := Overhead(c.data, c.parity); got != c.want {
			t.Errorf("Overhead(%d, %d) = %f, want %f", c.data, c.parity, got, c.want)
		}
	}
}

func TestNewEncoderRejectsInvalidShapes(t *testing.T) {
	if _, err := NewEncoder(&Config{DataShards: 0, ParityShards: 2}); err == nil {
		t.Error("expected error for 0 data shards")
	}
	if _, err := NewEncoder(&Config{DataShards: 300, ParityShards: 2}); err == nil {
		t.Error("expected error for too many data shards")
	}
	if _, err := NewEncoder(&Config{DataShards: 10, ParityShards: -1}); err == nil {
		t.Error("expected error for negative parity shards")
	}
}
