package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/complyops/autopilot/internal/scan"
)

const (
	redisIndexKey  = "scans:index"
	redisKeyPrefix = "scan:"
)

// Compile-time check: *RedisStore implements scan.Store.
var _ scan.Store = (*RedisStore)(nil)

// RedisStore persists scans in Redis: one JSON value per scan plus an index
// set of known IDs.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Save upserts a scan and adds its ID to the index set.
func (s *RedisStore) Save(ctx context.Context, job scan.Scan) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal scan: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+job.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("save scan %q: %w", job.ID, err)
	}
	// SADD is idempotent, so re-saving a scan is safe.
	if err := s.rdb.SAdd(ctx, redisIndexKey, job.ID).Err(); err != nil {
		return fmt.Errorf("update index for %q: %w", job.ID, err)
	}
	return nil
}

// Get retrieves a scan by ID, returning nil when not found.
func (s *RedisStore) Get(ctx context.Context, id string) (*scan.Scan, error) {
	val, err := s.rdb.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get scan %q: %w", id, err)
	}
	var job scan.Scan
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("unmarshal scan %q: %w", id, err)
	}
	return &job, nil
}

// List returns all scans, most recently started first.
func (s *RedisStore) List(ctx context.Context) ([]scan.Scan, error) {
	ids, err := s.rdb.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	scans := make([]scan.Scan, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			scans = append(scans, *job)
		}
	}
	sort.Slice(scans, func(i, j int) bool { return scans[i].StartedAt.After(scans[j].StartedAt) })
	return scans, nil
}
