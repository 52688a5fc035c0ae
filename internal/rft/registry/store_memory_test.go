package registry

import (
	"context"
	"testing"
	"time"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

func newTestJob(t *testing.T, state State) *TransferJob {
	t.Helper()
	id, err := guuid.NewWithTimestamp()
	if err != nil {
		t.Fatalf("NewWithTimestamp: %v", err)
	}
	return &TransferJob{
		TransferID:   id,
		Filename:     "test.bin",
		TotalChunks:  10,
		ChunkSize:    5120,
		State:        state,
		CreatedAt:    time.Now(),
		LastUpdateAt: time.Now(),
	}
}

func TestMemoryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	job := newTestJob(t, StatePending)

	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, job.TransferID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Filename != job.Filename {
		t.Errorf("Filename = %q, want %q", got.Filename, job.Filename)
	}
}

func TestMemoryStoreCreateDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	job := newTestJob(t, StatePending)

	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, job); err == nil {
		t.Error("expected error creating duplicate transfer")
	}
}

func TestMemoryStoreListFiltersByState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	active := newTestJob(t, StateActive)
	completed := newTestJob(t, StateCompleted)
	s.Create(ctx, active)
	s.Create(ctx, completed)

	activeState := StateActive
	jobs, total, err := s.List(ctx, &Filter{State: &activeState})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(jobs) != 1 || jobs[0].TransferID != active.TransferID {
		t.Errorf("List with state filter = %+v, want just the active job", jobs)
	}
}

func TestMemoryStoreDeleteExpiredTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stale := newTestJob(t, StateCompleted)
	stale.LastUpdateAt = time.Now().Add(-2 * time.Hour)
	fresh := newTestJob(t, StateCompleted)

	s.Create(ctx, stale)
	s.Create(ctx, fresh)

	n, err := s.DeleteExpiredTerminal(ctx, time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpiredTerminal: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d jobs, want 1", n)
	}
	if _, err := s.Get(ctx, stale.TransferID); err == nil {
		t.Error("stale job should have been swept")
	}
	if _, err := s.Get(ctx, fresh.TransferID); err != nil {
		t.Error("fresh job should not have been swept")
	}
}

func TestMemoryStoreDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, _ := guuid.NewWithTimestamp()
	if err := s.Delete(ctx, id); err == nil {
		t.Error("expected error deleting nonexistent transfer")
	}
}
