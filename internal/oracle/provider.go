// Package oracle holds the data-provider implementations and the evaluators
// that read them. Providers are key-value stores written by authorized
// reporters; evaluators map stored data to pool outcomes.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// MemoryProvider is an in-process domain.DataProvider used by standalone
// mode and tests.
type MemoryProvider struct {
	owner  domain.Address
	logger *slog.Logger

	mu        sync.RWMutex
	reporters map[domain.Address]bool
	data      map[string][]byte
}

// NewMemoryProvider creates a provider administered by owner.
func NewMemoryProvider(owner domain.Address, logger *slog.Logger) *MemoryProvider {
	return &MemoryProvider{
		owner:     owner,
		logger:    logger.With(slog.String("component", "oracle")),
		reporters: make(map[domain.Address]bool),
		data:      make(map[string][]byte),
	}
}

// AddReporter authorizes an account to provide data. Owner-only.
func (p *MemoryProvider) AddReporter(ctx context.Context, caller, reporter domain.Address) error {
	if caller != p.owner {
		return fmt.Errorf("oracle: add reporter: %w", domain.ErrUnauthorized)
	}
	p.mu.Lock()
	p.reporters[reporter] = true
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "reporter authorized", slog.String("reporter", reporter.Hex()))
	return nil
}

// HasData reports whether key has been provided.
func (p *MemoryProvider) HasData(_ context.Context, key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.data[key]
	return ok, nil
}

// GetData returns the provided value for key.
func (p *MemoryProvider) GetData(_ context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[key]
	if !ok {
		return nil, fmt.Errorf("oracle: key %s: %w", key, domain.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

// Provide writes a value for key. Reporter must be authorized.
func (p *MemoryProvider) Provide(ctx context.Context, reporter domain.Address, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.reporters[reporter] {
		return fmt.Errorf("oracle: reporter %s: %w", reporter.Hex(), domain.ErrUnauthorized)
	}
	p.data[key] = append([]byte(nil), value...)

	p.logger.InfoContext(ctx, "data provided",
		slog.String("reporter", reporter.Hex()),
		slog.String("key", key),
	)
	return nil
}

// Compile-time interface check.
var _ domain.DataProvider = (*MemoryProvider)(nil)
