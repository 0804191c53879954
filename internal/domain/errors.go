package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Callers branch with errors.Is; stores and the engine wrap
// these with call-site context.
var (
	// Input validation.
	ErrPoolNotFound        = errors.New("invalid pool reference")
	ErrTopicNotFound       = errors.New("unknown topic")
	ErrTopicDisabled       = errors.New("topic disabled")
	ErrInvalidPrediction   = errors.New("invalid prediction")
	ErrInvalidEventParam   = errors.New("malformed event parameter")
	ErrInvalidEventCount   = errors.New("event count out of bounds")
	ErrLengthMismatch      = errors.New("mismatched event array lengths")
	ErrMaturityOutOfBounds = errors.New("maturity out of bounds")
	ErrInvalidOptions      = errors.New("invalid options")
	ErrStakeTooSmall       = errors.New("stake below minimum")
	ErrPoolFull            = errors.New("pool player limit reached")
	ErrWrongPoolMode       = errors.New("operation does not match pool mode")

	// Authorization.
	ErrInsufficientFunds = errors.New("insufficient balance or allowance")
	ErrUnauthorized      = errors.New("unauthorized")

	// Domain.
	ErrPlayerAlreadyInPool = errors.New("player already in pool")
	ErrPlayerNotInPool     = errors.New("player not in pool")
	ErrPlayerDidNotWin     = errors.New("player did not win pool")
	ErrAlreadyWithdrawn    = errors.New("winnings already withdrawn")

	// State guards. Matched by StateError and RetryError.
	ErrActionNotAllowed = errors.New("action not allowed for pool state")
	ErrRetryNotReached  = errors.New("stale retry window not reached")

	// Infrastructure.
	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
)

// StateError rejects an action attempted in a lifecycle state that does not
// permit it. It carries the derived state so callers can react.
type StateError struct {
	PoolID uint64
	State  PoolState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("pool %d: action not allowed in state %s", e.PoolID, e.State)
}

// Is makes errors.Is(err, ErrActionNotAllowed) match.
func (e *StateError) Is(target error) bool {
	return target == ErrActionNotAllowed
}

// RetryError rejects a close attempt made before the stale-retry cooldown
// has elapsed.
type RetryError struct {
	PoolID      uint64
	Retries     uint32
	NextRetryAt time.Time
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("pool %d: retry %d not reached, next attempt at %s",
		e.PoolID, e.Retries, e.NextRetryAt.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrRetryNotReached) match.
func (e *RetryError) Is(target error) bool {
	return target == ErrRetryNotReached
}
