package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// MemoryStore is an in-memory transfer registry, the default store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[guuid.GUUID]*TransferJob
}

// NewMemoryStore returns an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[guuid.GUUID]*TransferJob)}
}

func (s *MemoryStore) Create(ctx context.Context, job *TransferJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.TransferID]; exists {
		return fmt.Errorf("transfer already registered: %s", job.TransferID.String())
	}
	s.jobs[job.TransferID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, transferID guuid.GUUID) (*TransferJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[transferID]
	if !exists {
		return nil, fmt.Errorf("transfer not found: %s", transferID.String())
	}
	return job, nil
}

func (s *MemoryStore) Update(ctx context.Context, job *TransferJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.TransferID]; !exists {
		return fmt.Errorf("transfer not found: %s", job.TransferID.String())
	}
	s.jobs[job.TransferID] = job
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, transferID guuid.GUUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[transferID]; !exists {
		return fmt.Errorf("transfer not found: %s", transferID.String())
	}
	delete(s.jobs, transferID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter *Filter) ([]*TransferJob, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter == nil {
		filter = &Filter{}
	}

	var result []*TransferJob
	for _, job := range s.jobs {
		if filter.State != nil && job.State != *filter.State {
			continue
		}
		result = append(result, job)
	}

	total := len(result)
	if filter.Limit > 0 {
		start := filter.Offset
		if start > len(result) {
			return []*TransferJob{}, total, nil
		}
		end := start + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[start:end]
	}

	return result, total, nil
}

func (s *MemoryStore) DeleteExpiredTerminal(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	var expired []guuid.GUUID
	for id, job := range s.jobs {
		if job.IsTerminal() && job.LastUpdateAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.jobs, id)
	}
	return len(expired), nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs), nil
}
