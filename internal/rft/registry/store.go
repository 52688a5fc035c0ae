package registry

import (
	"context"
	"time"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// Store is the transfer registry's storage interface; MemoryStore and
// RedisStore both satisfy it.
type Store interface {
	Create(ctx context.Context, job *TransferJob) error
	Get(ctx context.Context, transferID guuid.GUUID) (*TransferJob, error)
	Update(ctx context.Context, job *TransferJob) error
	Delete(ctx context.Context, transferID guuid.GUUID) error
	List(ctx context.Context, filter *Filter) ([]*TransferJob, int, error)
	// DeleteExpiredTerminal removes terminal jobs whose LastUpdateAt is
	// older than retention, returning the number removed.
	DeleteExpiredTerminal(ctx context.Context, retention time.Duration) (int, error)
	Count(ctx context.Context) (int, error)
}
