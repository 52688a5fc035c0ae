package registry

import (
	"context"
	"testing"
	"time"
)

func TestManagerSubmitAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&ManagerConfig{Store: NewMemoryStore()})
	defer m.Close()

	job, err := m.Submit(ctx, "file.bin", 20, 5120, "10.0.0.1:9000", "10.0.0.2:9000")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.State != StatePending {
		t.Errorf("new job state = %v, want StatePending", job.State)
	}

	got, err := m.Get(ctx, job.TransferID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Filename != "file.bin" {
		t.Errorf("Filename = %q", got.Filename)
	}
}

func TestManagerUpdateStateSetsTimestamps(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&ManagerConfig{Store: NewMemoryStore()})
	defer m.Close()

	job, _ := m.Submit(ctx, "file.bin", 1, 5120, "", "")

	active, err := m.UpdateState(ctx, job.TransferID, StateActive, "")
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if active.StartedAt.IsZero() {
		t.Error("StartedAt should be set on transition to active")
	}

	done, err := m.UpdateState(ctx, job.TransferID, StateCompleted, "")
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if done.CompletedAt.IsZero() {
		t.Error("CompletedAt should be set on terminal transition")
	}
}

func TestManagerUpdateStateFailedRecordsReason(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&ManagerConfig{Store: NewMemoryStore()})
	defer m.Close()

	job, _ := m.Submit(ctx, "file.bin", 1, 5120, "", "")
	failed, err := m.UpdateState(ctx, job.TransferID, StateFailed, "channel closed")
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if failed.FailureReason != "channel closed" {
		t.Errorf("FailureReason = %q", failed.FailureReason)
	}
}

func TestManagerUpdateStatsMerges(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&ManagerConfig{Store: NewMemoryStore()})
	defer m.Close()

	job, _ := m.Submit(ctx, "file.bin", 1, 5120, "", "")
	updated, err := m.UpdateStats(ctx, job.TransferID, Stats{ChunksSent: 5, BytesSent: 25600})
	if err != nil {
		t.Fatalf("UpdateStats: %v", err)
	}
	if updated.Stats.ChunksSent != 5 {
		t.Errorf("ChunksSent = %d, want 5", updated.Stats.ChunksSent)
	}
}

func TestManagerSweepRemovesExpiredTerminalJobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(&ManagerConfig{Store: store, Retention: time.Millisecond, SweepInterval: 10 * time.Millisecond})
	defer m.Close()

	job, _ := m.Submit(ctx, "file.bin", 1, 5120, "", "")
	if _, err := m.UpdateState(ctx, job.TransferID, StateCompleted, ""); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := store.Get(ctx, job.TransferID); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected background sweep to remove the terminal job")
}
