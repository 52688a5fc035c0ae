package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// DefaultRetention is how long a terminal job is kept before the
// background sweep removes it.
const DefaultRetention = 24 * time.Hour

// DefaultSweepInterval is the default period between sweep passes.
const DefaultSweepInterval = 5 * time.Minute

// Manager wraps a Store with the business logic the gateway and
// workers need: job creation, state transitions, stats publication and
// the background retention sweep.
type Manager struct {
	store  Store
	logger *zap.Logger

	retention     time.Duration
	sweepInterval time.Duration

	stopSweep chan struct{}
	wg        sync.WaitGroup
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Store         Store
	Logger        *zap.Logger
	Retention     time.Duration
	SweepInterval time.Duration
}

// NewManager constructs a Manager and starts its background sweep.
func NewManager(cfg *ManagerConfig) *Manager {
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	m := &Manager{
		store:         cfg.Store,
		logger:        cfg.Logger,
		retention:     cfg.Retention,
		sweepInterval: cfg.SweepInterval,
		stopSweep:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// Submit registers a new transfer job in StatePending.
func (m *Manager) Submit(ctx context.Context, filename string, totalChunks uint32, chunkSize int, senderAddr, receiverAddr string) (*TransferJob, error) {
	id, err := guuid.NewWithTimestamp()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transfer id: %w", err)
	}

	now := time.Now()
	job := &TransferJob{
		TransferID:   id,
		Filename:     filename,
		TotalChunks:  totalChunks,
		ChunkSize:    chunkSize,
		SenderAddr:   senderAddr,
		ReceiverAddr: receiverAddr,
		State:        StatePending,
		CreatedAt:    now,
		LastUpdateAt: now,
	}

	if err := m.store.Create(ctx, job); err != nil {
		m.logger.Error("failed to submit transfer", zap.String("transfer_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to submit transfer: %w", err)
	}

	m.logger.Info("transfer submitted", zap.String("transfer_id", id.String()), zap.String("filename", filename))
	return job, nil
}

// Get retrieves a job by transfer ID.
func (m *Manager) Get(ctx context.Context, transferID guuid.GUUID) (*TransferJob, error) {
	return m.store.Get(ctx, transferID)
}

// List lists jobs matching filter.
func (m *Manager) List(ctx context.Context, filter *Filter) ([]*TransferJob, int, error) {
	return m.store.List(ctx, filter)
}

// UpdateState transitions a job to a new state.
func (m *Manager) UpdateState(ctx context.Context, transferID guuid.GUUID, state State, failureReason string) (*TransferJob, error) {
	job, err := m.store.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}

	job.State = state
	job.LastUpdateAt = time.Now()
	if state == StateActive && job.StartedAt.IsZero() {
		job.StartedAt = job.LastUpdateAt
	}
	if state.Terminal() {
		job.CompletedAt = job.LastUpdateAt
	}
	if state == StateFailed {
		job.FailureReason = failureReason
	}

	if err := m.store.Update(ctx, job); err != nil {
		m.logger.Error("failed to update transfer state", zap.String("transfer_id", transferID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to update transfer state: %w", err)
	}

	m.logger.Info("transfer state updated", zap.String("transfer_id", transferID.String()), zap.String("state", state.String()))
	return job, nil
}

// UpdateStats merges a fresh stats snapshot into the job record. This
// is called frequently (once per progress publication) and
// deliberately does not log at info level.
func (m *Manager) UpdateStats(ctx context.Context, transferID guuid.GUUID, stats Stats) (*TransferJob, error) {
	job, err := m.store.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}

	job.Stats = stats
	job.LastUpdateAt = time.Now()

	if err := m.store.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update transfer stats: %w", err)
	}
	return job, nil
}

// Cancel transitions a job to StateCancelled.
func (m *Manager) Cancel(ctx context.Context, transferID guuid.GUUID) (*TransferJob, error) {
	return m.UpdateState(ctx, transferID, StateCancelled, "")
}

// Delete removes a job outright.
func (m *Manager) Delete(ctx context.Context, transferID guuid.GUUID) error {
	return m.store.Delete(ctx, transferID)
}

// Close stops the background sweep.
func (m *Manager) Close() error {
	close(m.stopSweep)
	m.wg.Wait()
	return nil
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepExpiredTerminal()
		case <-m.stopSweep:
			return
		}
	}
}

func (m *Manager) sweepExpiredTerminal() {
	count, err := m.store.DeleteExpiredTerminal(context.Background(), m.retention)
	if err != nil {
		m.logger.Error("retention sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		m.logger.Info("retention sweep removed terminal jobs", zap.Int("count", count))
	}
}
