package domain

import (
	"context"
	"time"
)

// PoolCache is a read-through cache for pool snapshots.
type PoolCache interface {
	Get(ctx context.Context, id uint64) (*Pool, error)
	Set(ctx context.Context, pool *Pool) error
	Invalidate(ctx context.Context, id uint64) error
}

// SignalBus is a lightweight pub/sub fabric for engine events. Payloads are
// opaque bytes; the engine publishes JSON-encoded PoolEvents.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel that closes when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed mutual exclusion, used to fence close
// attempts across replicas. Acquire returns ErrLockHeld when the lock is
// taken; the returned release function is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
