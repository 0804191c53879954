package domain

import (
	"math/big"
	"time"
)

// Participant is one account's entry in one pool. At most one entry exists
// per (pool, account) pair.
type Participant struct {
	PoolID     uint64
	Account    Address
	Prediction string
	// Tickets is the ticket quantity for poll pools; always 1 for
	// event-gate pools.
	Tickets  uint64
	NetStake *big.Int
	FeePaid  *big.Int
	// Withdrawn flips false -> true exactly once, before any value leaves
	// custody.
	Withdrawn bool
	JoinedAt  time.Time
}

// WithdrawalRecord documents a completed payout.
type WithdrawalRecord struct {
	ID        string
	PoolID    uint64
	Account   Address
	Stake     *big.Int
	WinShare  *big.Int
	Payout    *big.Int
	CreatedAt time.Time
}
