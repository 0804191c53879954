package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Address identifies an account. Accounts are 20-byte addresses, the same
// identity scheme the custody token uses.
type Address = common.Address

// PoolMode selects how a pool resolves.
type PoolMode string

const (
	// PoolModeEventGate pools carry one or more boolean events and resolve
	// to "yes" only when every event resolves "yes".
	PoolModeEventGate PoolMode = "event_gate"
	// PoolModePoll pools carry a single event and a declared option set;
	// the oracle picks the winning option directly.
	PoolModePoll PoolMode = "poll"
)

// PoolState is a lifecycle state. Only Open, Resolved, Stale and
// ManualResolution are stored; ClosedForJoin and AwaitingResolution are
// derived from the stored deadlines so the ledger cannot drift from the
// wall clock.
type PoolState string

const (
	PoolOpen               PoolState = "open"
	PoolClosedForJoin      PoolState = "closed_for_join"
	PoolAwaitingResolution PoolState = "awaiting_resolution"
	PoolResolved           PoolState = "resolved"
	PoolStale              PoolState = "stale"
	PoolManual             PoolState = "manual_resolution"
)

// Terminal reports whether s permits no further lifecycle transitions short
// of an owner override.
func (s PoolState) Terminal() bool {
	return s == PoolResolved || s == PoolManual
}

// Sides for event-gate pools.
const (
	SideYes = "yes"
	SideNo  = "no"
)

// EventSpec describes one future event a pool stakes on: which topic judges
// it, the topic-specific parameters, and when its outcome becomes
// determinable.
type EventSpec struct {
	TopicID  uint64        `json:"topic_id"`
	Params   hexutil.Bytes `json:"params"`
	Maturity time.Time     `json:"maturity"`
}

// Pool is a single staking round. It is an append-only ledger entry: created
// once, mutated only by joins, resolution attempts and withdrawals, never
// deleted.
type Pool struct {
	ID      uint64
	Mode    PoolMode
	Creator Address

	// Events holds the staked-on events; exactly one entry in poll mode.
	Events []EventSpec
	// Options is the declared option set (poll mode only).
	Options []string
	// TicketPrice is the fixed stake per ticket (poll mode only).
	TicketPrice *big.Int

	// Phase is the stored lifecycle phase. Use StateAt for the derived
	// state including the time-gated pseudo-states.
	Phase  PoolState
	Result string

	StakeBySide  map[string]*big.Int
	PlayerCount  int
	StaleRetries uint32
	NextRetryAt  time.Time

	CreatedAt    time.Time
	JoinDeadline time.Time
	UpdatedAt    time.Time
}

// StateAt derives the effective lifecycle state at the given instant. While
// the stored phase is Open, the join deadline and the latest maturity carve
// it into Open, ClosedForJoin and AwaitingResolution.
func (p *Pool) StateAt(now time.Time) PoolState {
	if p.Phase != PoolOpen {
		return p.Phase
	}
	if now.Before(p.JoinDeadline) {
		return PoolOpen
	}
	if now.Before(p.LatestMaturity()) {
		return PoolClosedForJoin
	}
	return PoolAwaitingResolution
}

// EarliestMaturity returns the soonest event maturity.
func (p *Pool) EarliestMaturity() time.Time {
	var t time.Time
	for _, ev := range p.Events {
		if t.IsZero() || ev.Maturity.Before(t) {
			t = ev.Maturity
		}
	}
	return t
}

// LatestMaturity returns the maturity after which every event in the pool is
// determinable.
func (p *Pool) LatestMaturity() time.Time {
	var t time.Time
	for _, ev := range p.Events {
		if ev.Maturity.After(t) {
			t = ev.Maturity
		}
	}
	return t
}

// Sides returns the valid side set: yes/no for event-gate pools, the declared
// options for poll pools.
func (p *Pool) Sides() []string {
	if p.Mode == PoolModePoll {
		return p.Options
	}
	return []string{SideYes, SideNo}
}

// ValidSide reports whether side is a member of the pool's side set.
func (p *Pool) ValidSide(side string) bool {
	for _, s := range p.Sides() {
		if s == side {
			return true
		}
	}
	return false
}

// SideStake returns the aggregate net stake on side, never nil.
func (p *Pool) SideStake(side string) *big.Int {
	if v, ok := p.StakeBySide[side]; ok && v != nil {
		return v
	}
	return new(big.Int)
}

// TotalStaked sums the per-side aggregates. By the conservation invariant it
// equals the sum of all participants' net stakes.
func (p *Pool) TotalStaked() *big.Int {
	total := new(big.Int)
	for _, v := range p.StakeBySide {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// Clone returns a deep copy. The engine mutates copies and persists them so
// a failed call never leaves a half-updated pool visible.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.Events = make([]EventSpec, len(p.Events))
	for i, ev := range p.Events {
		cp.Events[i] = EventSpec{
			TopicID:  ev.TopicID,
			Params:   append(hexutil.Bytes(nil), ev.Params...),
			Maturity: ev.Maturity,
		}
	}
	cp.Options = append([]string(nil), p.Options...)
	if p.TicketPrice != nil {
		cp.TicketPrice = new(big.Int).Set(p.TicketPrice)
	}
	cp.StakeBySide = make(map[string]*big.Int, len(p.StakeBySide))
	for side, v := range p.StakeBySide {
		cp.StakeBySide[side] = new(big.Int).Set(v)
	}
	return &cp
}
