package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// PoolStore persists pools: Create once, Update for lifecycle mutations.
// Delete is only used to unwind a creation whose companion writes failed.
type PoolStore interface {
	Create(ctx context.Context, pool *Pool) error
	Get(ctx context.Context, id uint64) (*Pool, error)
	Update(ctx context.Context, pool *Pool) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, opts ListOpts) ([]*Pool, error)
	// ListResolvedBefore returns terminal pools last updated before cutoff,
	// oldest first. Used by the archiver.
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Pool, error)
	// MaxID returns the highest assigned pool id, 0 when empty.
	MaxID(ctx context.Context) (uint64, error)
}

// ParticipantStore persists participant entries.
type ParticipantStore interface {
	Create(ctx context.Context, p *Participant) error
	Get(ctx context.Context, poolID uint64, account Address) (*Participant, error)
	// Delete removes an entry. Only used to unwind a join whose companion
	// writes failed.
	Delete(ctx context.Context, poolID uint64, account Address) error
	ListByPool(ctx context.Context, poolID uint64, opts ListOpts) ([]*Participant, error)
	CountByPool(ctx context.Context, poolID uint64) (int, error)
	// SetWithdrawn flips the withdrawn flag. It must fail if the flag is
	// already set so the exactly-once guarantee survives concurrent raced
	// writers.
	SetWithdrawn(ctx context.Context, poolID uint64, account Address) error
}

// TopicStore persists the topic registry's entries.
type TopicStore interface {
	Create(ctx context.Context, t *Topic) error
	Get(ctx context.Context, id uint64) (*Topic, error)
	Update(ctx context.Context, t *Topic) error
	List(ctx context.Context, opts ListOpts) ([]*Topic, error)
	MaxID(ctx context.Context) (uint64, error)
}

// WithdrawalStore persists completed payout records.
type WithdrawalStore interface {
	Create(ctx context.Context, rec *WithdrawalRecord) error
	ListByPool(ctx context.Context, poolID uint64, opts ListOpts) ([]*WithdrawalRecord, error)
	// ListBefore returns records created before cutoff, oldest first.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*WithdrawalRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
