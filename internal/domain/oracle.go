package domain

import "context"

// Outcome is an evaluator's verdict on a single event. HasData false means
// the oracle has no usable data yet; the engine records staleness rather
// than failing the caller.
type Outcome struct {
	HasData bool
	// Value is the winning side: "yes"/"no" for event-gate topics, the
	// winning option for poll topics.
	Value string
}

// Evaluator judges events for one topic. Implementations are pure readers:
// they validate parameter encodings at pool creation and map oracle data to
// outcomes at resolution. Domain-specific judging logic lives behind this
// boundary, not in the engine.
type Evaluator interface {
	// Validate checks that the event's parameter encoding is well formed
	// for this topic. A false return rejects pool creation.
	Validate(ctx context.Context, spec EventSpec) (bool, error)
	// Evaluate maps oracle data to the event's outcome. Missing data is
	// reported via Outcome.HasData, not an error.
	Evaluate(ctx context.Context, spec EventSpec) (Outcome, error)
}

// DataProvider is the oracle key-value store fed by authorized reporters.
type DataProvider interface {
	HasData(ctx context.Context, key string) (bool, error)
	GetData(ctx context.Context, key string) ([]byte, error)
	// Provide writes data for key on behalf of reporter. Unauthorized
	// reporters get ErrUnauthorized.
	Provide(ctx context.Context, reporter Address, key string, value []byte) error
}

// TopicRegistry resolves topic ids to evaluators.
type TopicRegistry interface {
	Evaluator(ctx context.Context, topicID uint64) (Evaluator, error)
	IsEnabled(ctx context.Context, topicID uint64) (bool, error)
}
