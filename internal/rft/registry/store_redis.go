package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/pkg/guuid"
)

const (
	jobKeyPrefix  = "rft:job:"
	jobSetKey     = "rft:jobs:all"
	jobCountKey   = "rft:jobs:count"
	defaultJobTTL = 24 * time.Hour
)

// RedisStore is a Redis-backed transfer registry, for deployments where
// the gateway and worker processes run on separate hosts.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Client *redis.Client
	Logger *zap.Logger
	TTL    time.Duration
}

// NewRedisStore constructs a Redis-backed registry.
func NewRedisStore(cfg *RedisStoreConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultJobTTL
	}
	return &RedisStore{client: cfg.Client, logger: cfg.Logger, ttl: cfg.TTL}, nil
}

func (s *RedisStore) Create(ctx context.Context, job *TransferJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := s.client.Pipeline()
	key := jobKeyPrefix + job.TransferID.String()
	pipe.Set(ctx, key, data, s.ttl)
	pipe.SAdd(ctx, jobSetKey, job.TransferID.String())
	pipe.Incr(ctx, jobCountKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create transfer job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, transferID guuid.GUUID) (*TransferJob, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+transferID.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("transfer not found: %s", transferID.String())
		}
		return nil, fmt.Errorf("failed to get transfer job: %w", err)
	}
	var job TransferJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transfer job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, job *TransferJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	key := jobKeyPrefix + job.TransferID.String()
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check transfer existence: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("transfer not found: %s", job.TransferID.String())
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, transferID guuid.GUUID) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, jobKeyPrefix+transferID.String())
	pipe.SRem(ctx, jobSetKey, transferID.String())
	pipe.Decr(ctx, jobCountKey)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) List(ctx context.Context, filter *Filter) ([]*TransferJob, int, error) {
	if filter == nil {
		filter = &Filter{}
	}

	ids, err := s.client.SMembers(ctx, jobSetKey).Result()
	if err != nil && err != redis.Nil {
		return nil, 0, fmt.Errorf("failed to list transfers: %w", err)
	}

	var jobs []*TransferJob
	for _, idStr := range ids {
		id, err := guuid.FromString(idStr)
		if err != nil {
			s.logger.Warn("invalid transfer id in index", zap.String("id", idStr))
			continue
		}
		job, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if filter.State != nil && job.State != *filter.State {
			continue
		}
		jobs = append(jobs, job)
	}

	total := len(jobs)
	if filter.Limit > 0 {
		start := filter.Offset
		if start > len(jobs) {
			start = len(jobs)
		}
		end := start + filter.Limit
		if end > len(jobs) {
			end = len(jobs)
		}
		jobs = jobs[start:end]
	}

	return jobs, total, nil
}

// DeleteExpiredTerminal scans the job set for terminal jobs past
// retention. Redis TTL already reclaims the key itself; this keeps the
// set index consistent and reports how many were swept.
func (s *RedisStore) DeleteExpiredTerminal(ctx context.Context, retention time.Duration) (int, error) {
	ids, err := s.client.SMembers(ctx, jobSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list transfers: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	count := 0
	for _, idStr := range ids {
		id, err := guuid.FromString(idStr)
		if err != nil {
			continue
		}
		job, err := s.Get(ctx, id)
		if err != nil {
			// Key already expired via TTL; drop the stale index entry.
			s.client.SRem(ctx, jobSetKey, idStr)
			count++
			continue
		}
		if job.IsTerminal() && job.LastUpdateAt.Before(cutoff) {
			if err := s.Delete(ctx, id); err == nil {
				count++
			}
		}
	}
	return count, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, jobSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count transfers: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
