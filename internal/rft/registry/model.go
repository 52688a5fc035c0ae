// Package registry implements the transfer registry: the control-plane
// record of each transfer's identity, state and observable counters.
// It never stores segment payloads.
package registry

import (
	"time"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// State is the lifecycle state of a TransferJob.
type State int

const (
	StatePending State = iota
	StateActive
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateActive:
		return "ACTIVE"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether a job in this state is eligible for
// retention-window expiry.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Stats mirrors the sender/receiver engines' observable counters, as
// periodically published by the worker process that owns the transfer.
type Stats struct {
	ChunksSent        uint64
	ChunksAcked       uint64
	BytesSent         uint64
	BytesDelivered    uint64
	Retransmissions   uint64
	FastRetransmits   uint64
	DuplicateAcks     uint64
	TimeoutEvents     uint64
	CurrentRTTMs      uint32
	CurrentCwnd       float64
	CurrentSsthresh   float64
	SimulatedDataDrop uint64
	SimulatedAckDrop  uint64
}

// TransferJob is the control-plane record of one file transfer.
type TransferJob struct {
	TransferID guuid.GUUID

	Filename    string
	TotalChunks uint32
	ChunkSize   int

	SenderAddr   string
	ReceiverAddr string

	State State

	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	LastUpdateAt time.Time

	Stats Stats

	// FailureReason is populated when State == StateFailed.
	FailureReason string
}

// IsTerminal reports whether this job has reached a terminal state.
func (j *TransferJob) IsTerminal() bool {
	return j.State.Terminal()
}

// Filter narrows a List query.
type Filter struct {
	State  *State
	Limit  int
	Offset int
}
