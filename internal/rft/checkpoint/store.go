package checkpoint

import (
	"context"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// Store is the checkpoint persistence interface; MemoryStore and
// PostgresStore both satisfy it. Upsert applies conflict resolution
// internally via Wins, so a losing write is silently a no-op rather
// than an error.
type Store interface {
	Get(ctx context.Context, transferID guuid.GUUID) (*Checkpoint, error)
	Upsert(ctx context.Context, cp *Checkpoint) error
	Delete(ctx context.Context, transferID guuid.GUUID) error
}
