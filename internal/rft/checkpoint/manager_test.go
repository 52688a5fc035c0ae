package checkpoint

import (
	"context"
	"testing"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

func TestResumeWithNoCheckpointReturnsErrNoCheckpoint(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), nil)
	id, _ := guuid.NewWithTimestamp()

	if _, err := m.Resume(ctx, id); err != ErrNoCheckpoint {
		t.Errorf("Resume = %v, want ErrNoCheckpoint", err)
	}
}

func TestRecordThenResumeReturnsNextChunk(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), nil)
	id, _ := guuid.NewWithTimestamp()

	if err := m.Record(ctx, id, 7); err != nil {
		t.Fatalf("Record: %v", err)
	}

	next, err := m.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if next != 8 {
		t.Errorf("Resume = %d, want 8", next)
	}
}

func TestRecordAssignsIncreasingVersions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, nil)
	id, _ := guuid.NewWithTimestamp()

	m.Record(ctx, id, 1)
	m.Record(ctx, id, 2)
	m.Record(ctx, id, 3)

	cp, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cp.Version != 3 {
		t.Errorf("Version = %d, want 3", cp.Version)
	}
	if cp.HighestContiguousChunk != 3 {
		t.Errorf("HighestContiguousChunk = %d, want 3", cp.HighestContiguousChunk)
	}
}

func TestForgetRemovesCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, nil)
	id, _ := guuid.NewWithTimestamp()

	m.Record(ctx, id, 1)
	if err := m.Forget(ctx, id); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, err := store.Get(ctx, id); err == nil {
		t.Error("expected checkpoint to be removed after Forget")
	}
}
