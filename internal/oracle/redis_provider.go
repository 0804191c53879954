package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

const (
	dataKeyPrefix   = "oracle:data:"
	reportersSetKey = "oracle:reporters"
)

// RedisProvider is a domain.DataProvider shared across engine replicas.
// Reporter authorization lives in a redis set so every replica sees the same
// roster.
type RedisProvider struct {
	rdb    *redis.Client
	owner  domain.Address
	logger *slog.Logger
}

// NewRedisProvider creates a provider on top of an established redis client.
func NewRedisProvider(rdb *redis.Client, owner domain.Address, logger *slog.Logger) *RedisProvider {
	return &RedisProvider{
		rdb:    rdb,
		owner:  owner,
		logger: logger.With(slog.String("component", "oracle")),
	}
}

// AddReporter authorizes an account to provide data. Owner-only.
func (p *RedisProvider) AddReporter(ctx context.Context, caller, reporter domain.Address) error {
	if caller != p.owner {
		return fmt.Errorf("oracle: add reporter: %w", domain.ErrUnauthorized)
	}
	if err := p.rdb.SAdd(ctx, reportersSetKey, reporter.Hex()).Err(); err != nil {
		return fmt.Errorf("oracle: add reporter: %w", err)
	}
	p.logger.InfoContext(ctx, "reporter authorized", slog.String("reporter", reporter.Hex()))
	return nil
}

// HasData reports whether key has been provided.
func (p *RedisProvider) HasData(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, dataKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("oracle: has data %s: %w", key, err)
	}
	return n > 0, nil
}

// GetData returns the provided value for key.
func (p *RedisProvider) GetData(ctx context.Context, key string) ([]byte, error) {
	v, err := p.rdb.Get(ctx, dataKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("oracle: key %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("oracle: get data %s: %w", key, err)
	}
	return v, nil
}

// Provide writes a value for key. Reporter must be in the authorized set.
func (p *RedisProvider) Provide(ctx context.Context, reporter domain.Address, key string, value []byte) error {
	ok, err := p.rdb.SIsMember(ctx, reportersSetKey, reporter.Hex()).Result()
	if err != nil {
		return fmt.Errorf("oracle: check reporter: %w", err)
	}
	if !ok {
		return fmt.Errorf("oracle: reporter %s: %w", reporter.Hex(), domain.ErrUnauthorized)
	}

	if err := p.rdb.Set(ctx, dataKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("oracle: provide %s: %w", key, err)
	}
	p.logger.InfoContext(ctx, "data provided",
		slog.String("reporter", reporter.Hex()),
		slog.String("key", key),
	)
	return nil
}

// Compile-time interface check.
var _ domain.DataProvider = (*RedisProvider)(nil)
