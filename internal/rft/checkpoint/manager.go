package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// ErrNoCheckpoint is returned by Resume when no prior checkpoint
// exists for a transfer — callers should start at chunk 1.
var ErrNoCheckpoint = errors.New("rft: no checkpoint for transfer")

// Manager wraps a Store with the per-transfer version counter a
// receiver needs to produce monotonically increasing Checkpoint
// writes.
type Manager struct {
	store  Store
	logger *zap.Logger

	mu       sync.Mutex
	versions map[guuid.GUUID]uint64
}

// NewManager constructs a checkpoint Manager over store.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger, versions: make(map[guuid.GUUID]uint64)}
}

// Record durably advances the checkpoint for transferID to chunk,
// assigning the next local version number.
func (m *Manager) Record(ctx context.Context, transferID guuid.GUUID, chunk uint32) error {
	m.mu.Lock()
	m.versions[transferID]++
	version := m.versions[transferID]
	m.mu.Unlock()

	cp := &Checkpoint{
		TransferID:             transferID,
		HighestContiguousChunk: chunk,
		Version:                version,
		UpdatedAt:              time.Now(),
	}
	if err := m.store.Upsert(ctx, cp); err != nil {
		return fmt.Errorf("failed to record checkpoint: %w", err)
	}
	return nil
}

// Resume returns the chunk sequence number a sender should retransmit
// from: the checkpoint's highest contiguous chunk, plus one. Returns
// ErrNoCheckpoint if the transfer has never checkpointed, in which case
// the caller should start at chunk 1.
func (m *Manager) Resume(ctx context.Context, transferID guuid.GUUID) (uint32, error) {
	cp, err := m.store.Get(ctx, transferID)
	if err != nil {
		return 0, ErrNoCheckpoint
	}
	return cp.HighestContiguousChunk + 1, nil
}

// Forget removes a transfer's checkpoint and local version counter,
// called once a transfer reaches a terminal state.
func (m *Manager) Forget(ctx context.Context, transferID guuid.GUUID) error {
	m.mu.Lock()
	delete(m.versions, transferID)
	m.mu.Unlock()
	return m.store.Delete(ctx, transferID)
}
