package domain

import (
	"context"
	"time"
)

// EventType enumerates engine lifecycle events.
type EventType string

const (
	EventNewPool            EventType = "new_pool"
	EventPoolJoined         EventType = "pool_joined"
	EventPoolResolved       EventType = "pool_resolved"
	EventPoolStale          EventType = "pool_stale"
	EventManualResolution   EventType = "manual_resolution"
	EventWinningsWithdrawn  EventType = "winnings_withdrawn"
)

// PoolEvent is the JSON payload published for every ledger mutation. Amounts
// are decimal strings to survive JSON number precision limits.
type PoolEvent struct {
	Type    EventType `json:"type"`
	PoolID  uint64    `json:"pool_id"`
	Actor   string    `json:"actor"`
	State   PoolState `json:"state"`
	Result  string    `json:"result,omitempty"`
	Side    string    `json:"side,omitempty"`
	Stake   string    `json:"stake,omitempty"`
	Payout  string    `json:"payout,omitempty"`
	Retries uint32    `json:"retries,omitempty"`
	// NextRetryAt reports the staleness cooldown deadline.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	At          time.Time  `json:"at"`
}

// EventSink receives engine events. Emit must not fail the ledger mutation
// that produced the event; implementations log and drop on delivery errors.
type EventSink interface {
	Emit(ctx context.Context, ev PoolEvent)
}
