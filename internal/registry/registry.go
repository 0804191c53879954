// Package registry maps topic ids to outcome evaluators and manages the
// topic lifecycle. Evaluator implementations register by name at wire time;
// topics reference them by that name so the stored registry survives
// restarts.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// Registry implements domain.TopicRegistry backed by a TopicStore.
type Registry struct {
	topics domain.TopicStore
	owner  domain.Address
	logger *slog.Logger

	mu         sync.Mutex
	evaluators map[string]domain.Evaluator
	nextID     uint64
}

// New creates a Registry, recovering the topic id sequence from the store.
func New(ctx context.Context, owner domain.Address, topics domain.TopicStore, logger *slog.Logger) (*Registry, error) {
	maxID, err := topics.MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: recover topic id sequence: %w", err)
	}
	return &Registry{
		topics:     topics,
		owner:      owner,
		logger:     logger.With(slog.String("component", "registry")),
		evaluators: make(map[string]domain.Evaluator),
		nextID:     maxID + 1,
	}, nil
}

// RegisterEvaluator binds an evaluator implementation to a name. Topics
// created with an unregistered name are rejected.
func (r *Registry) RegisterEvaluator(name string, ev domain.Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[name] = ev
}

// CreateTopic registers a new topic judged by the named evaluator.
// Owner-only.
func (r *Registry) CreateTopic(ctx context.Context, caller domain.Address, title, description, evaluator string) (*domain.Topic, error) {
	if caller != r.owner {
		return nil, fmt.Errorf("registry: create topic: %w", domain.ErrUnauthorized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.evaluators[evaluator]; !ok {
		return nil, fmt.Errorf("registry: evaluator %q not registered: %w", evaluator, domain.ErrNotFound)
	}

	topic := &domain.Topic{
		ID:          r.nextID,
		Title:       title,
		Description: description,
		Evaluator:   evaluator,
		Enabled:     true,
	}
	if err := r.topics.Create(ctx, topic); err != nil {
		return nil, fmt.Errorf("registry: persist topic: %w", err)
	}
	r.nextID++

	r.logger.InfoContext(ctx, "topic created",
		slog.Uint64("topic_id", topic.ID),
		slog.String("title", title),
		slog.String("evaluator", evaluator),
	)
	return topic, nil
}

// SetTopicEnabled toggles a topic. Disabled topics reject new pools; pools
// already referencing them still resolve. Owner-only.
func (r *Registry) SetTopicEnabled(ctx context.Context, caller domain.Address, topicID uint64, enabled bool) error {
	if caller != r.owner {
		return fmt.Errorf("registry: toggle topic: %w", domain.ErrUnauthorized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	topic, err := r.topics.Get(ctx, topicID)
	if err != nil {
		return err
	}
	topic.Enabled = enabled
	if err := r.topics.Update(ctx, topic); err != nil {
		return fmt.Errorf("registry: persist topic %d: %w", topicID, err)
	}

	r.logger.InfoContext(ctx, "topic toggled",
		slog.Uint64("topic_id", topicID),
		slog.Bool("enabled", enabled),
	)
	return nil
}

// GetTopic returns one topic.
func (r *Registry) GetTopic(ctx context.Context, topicID uint64) (*domain.Topic, error) {
	return r.topics.Get(ctx, topicID)
}

// ListTopics returns registered topics.
func (r *Registry) ListTopics(ctx context.Context, opts domain.ListOpts) ([]*domain.Topic, error) {
	return r.topics.List(ctx, opts)
}

// Evaluator resolves a topic id to its evaluator implementation.
func (r *Registry) Evaluator(ctx context.Context, topicID uint64) (domain.Evaluator, error) {
	topic, err := r.topics.Get(ctx, topicID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	ev, ok := r.evaluators[topic.Evaluator]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("registry: topic %d evaluator %q not registered: %w",
			topicID, topic.Evaluator, domain.ErrNotFound)
	}
	return ev, nil
}

// IsEnabled reports whether a topic accepts new pools.
func (r *Registry) IsEnabled(ctx context.Context, topicID uint64) (bool, error) {
	topic, err := r.topics.Get(ctx, topicID)
	if err != nil {
		return false, err
	}
	return topic.Enabled, nil
}

// Compile-time interface check.
var _ domain.TopicRegistry = (*Registry)(nil)
