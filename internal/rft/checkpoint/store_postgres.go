package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// PostgresStore is a Postgres-backed checkpoint store, for deployments
// that need checkpoints to survive a full process restart of every
// worker.
//
// Expected schema:
//
//	CREATE TABLE checkpoints (
//		transfer_id text PRIMARY KEY,
//		highest_contiguous_chunk integer NOT NULL,
//		version bigint NOT NULL,
//		updated_at timestamptz NOT NULL
//	);
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresStoreConfig configures a PostgresStore.
type PostgresStoreConfig struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// NewPostgresStore constructs a Postgres-backed checkpoint store.
func NewPostgresStore(cfg *PostgresStoreConfig) (*PostgresStore, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &PostgresStore{db: cfg.DB, logger: cfg.Logger}, nil
}

func (s *PostgresStore) Get(ctx context.Context, transferID guuid.GUUID) (*Checkpoint, error) {
	const query = `
		SELECT transfer_id, highest_contiguous_chunk, version, updated_at
		FROM checkpoints WHERE transfer_id = $1`

	var idStr string
	cp := &Checkpoint{}
	err := s.db.QueryRowContext(ctx, query, transferID.String()).Scan(
		&idStr, &cp.HighestContiguousChunk, &cp.Version, &cp.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no checkpoint for transfer: %s", transferID.String())
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	id, err := guuid.FromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer id in row: %w", err)
	}
	cp.TransferID = id
	return cp, nil
}

// Upsert resolves conflicts inside a transaction: it locks the
// existing row (if any), compares via Wins, and only writes when the
// candidate actually wins.
func (s *PostgresStore) Upsert(ctx context.Context, cp *Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const selectQuery = `
		SELECT highest_contiguous_chunk, version, updated_at
		FROM checkpoints WHERE transfer_id = $1 FOR UPDATE`

	var current *Checkpoint
	var chunk uint32
	var version uint64
	var updatedAt time.Time
	err = tx.QueryRowContext(ctx, selectQuery, cp.TransferID.String()).Scan(&chunk, &version, &updatedAt)
	switch err {
	case nil:
		current = &Checkpoint{TransferID: cp.TransferID, HighestContiguousChunk: chunk, Version: version, UpdatedAt: updatedAt}
	case sql.ErrNoRows:
		current = nil
	default:
		return fmt.Errorf("failed to read existing checkpoint: %w", err)
	}

	if !Wins(cp, current) {
		return tx.Commit()
	}

	const upsertQuery = `
		INSERT INTO checkpoints (transfer_id, highest_contiguous_chunk, version, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transfer_id) DO UPDATE
		SET highest_contiguous_chunk = EXCLUDED.highest_contiguous_chunk,
		    version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at`

	if _, err := tx.ExecContext(ctx, upsertQuery, cp.TransferID.String(), cp.HighestContiguousChunk, cp.Version, cp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint upsert: %w", err)
	}

	s.logger.Debug("checkpoint upserted",
		zap.String("transfer_id", cp.TransferID.String()),
		zap.Uint32("chunk", cp.HighestContiguousChunk),
		zap.Uint64("version", cp.Version))
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, transferID guuid.GUUID) error {
	const query = `DELETE FROM checkpoints WHERE transfer_id = $1`
	if _, err := s.db.ExecContext(ctx, query, transferID.String()); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
