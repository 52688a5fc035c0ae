package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// MemoryStore is an in-memory checkpoint store, the default.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[guuid.GUUID]*Checkpoint
}

// NewMemoryStore returns an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[guuid.GUUID]*Checkpoint)}
}

func (s *MemoryStore) Get(ctx context.Context, transferID guuid.GUUID) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.byID[transferID]
	if !ok {
		return nil, fmt.Errorf("no checkpoint for transfer: %s", transferID.String())
	}
	cpCopy := *cp
	return &cpCopy, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.byID[cp.TransferID]
	if !Wins(cp, current) {
		return nil
	}
	cpCopy := *cp
	s.byID[cp.TransferID] = &cpCopy
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, transferID guuid.GUUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, transferID)
	return nil
}
