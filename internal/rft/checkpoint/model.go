// Package checkpoint implements the resumable-transfer checkpoint
// store: durable record of how far a receiver has progressed through a
// transfer, so a sender reconnecting after a channel break can resume
// at checkpoint+1 instead of chunk 1.
package checkpoint

import (
	"time"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// Checkpoint records the highest contiguous chunk a receiver has
// durably delivered to its sink for one transfer.
type Checkpoint struct {
	TransferID             guuid.GUUID
	HighestContiguousChunk uint32
	// Version is a per-writer monotonic counter, incremented on every
	// Record call. It disambiguates racing writes from two receiver
	// replicas that happen to report the same chunk count.
	Version   uint64
	UpdatedAt time.Time
}
