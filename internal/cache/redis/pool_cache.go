package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// poolTTL bounds cache staleness; the service invalidates on every mutation
// so the TTL only covers missed invalidations.
const poolTTL = 5 * time.Minute

// PoolCache implements domain.PoolCache using JSON-serialized pool snapshots.
//
// Key schema:
//
//	pool:{id} - string value containing the JSON snapshot
type PoolCache struct {
	rdb *redis.Client
}

// NewPoolCache creates a PoolCache backed by the given Client.
func NewPoolCache(c *Client) *PoolCache {
	return &PoolCache{rdb: c.Underlying()}
}

func poolKey(id uint64) string {
	return "pool:" + strconv.FormatUint(id, 10)
}

// Get retrieves a pool snapshot. It returns domain.ErrNotFound on a miss.
func (pc *PoolCache) Get(ctx context.Context, id uint64) (*domain.Pool, error) {
	data, err := pc.rdb.Get(ctx, poolKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get pool %d: %w", id, err)
	}

	var pool domain.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("redis: unmarshal pool %d: %w", id, err)
	}
	return &pool, nil
}

// Set stores a pool snapshot with the cache TTL.
func (pc *PoolCache) Set(ctx context.Context, pool *domain.Pool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("redis: marshal pool %d: %w", pool.ID, err)
	}
	if err := pc.rdb.Set(ctx, poolKey(pool.ID), data, poolTTL).Err(); err != nil {
		return fmt.Errorf("redis: set pool %d: %w", pool.ID, err)
	}
	return nil
}

// Invalidate drops a pool's cached snapshot.
func (pc *PoolCache) Invalidate(ctx context.Context, id uint64) error {
	if err := pc.rdb.Del(ctx, poolKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pool %d: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PoolCache = (*PoolCache)(nil)
