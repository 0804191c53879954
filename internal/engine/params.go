package engine

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// Params are the engine's constructor-time constants. They are immutable
// after New; there is no runtime reconfiguration path.
type Params struct {
	// Fee rates in basis points, separate for each mode and path.
	CreateFeeBps     uint32
	JoinFeeBps       uint32
	PollCreateFeeBps uint32
	PollJoinFeeBps   uint32

	// JoinPeriod bounds how long after creation a pool accepts joins; the
	// effective deadline is capped at the earliest event maturity.
	JoinPeriod time.Duration

	MinMaturityPeriod time.Duration
	MaxMaturityPeriod time.Duration

	MaxEventsPerPool      int
	MaxOptionsPerPool     int
	MaxPlayersPerPool     int
	MaxPollPlayersPerPool int

	MinStake *big.Int

	MaxStaleRetries      uint32
	StaleExtensionPeriod time.Duration

	// Owner may set manual results and administer topics.
	Owner domain.Address
	// FeeRecipient receives every protocol fee.
	FeeRecipient domain.Address
}

// DefaultParams mirrors the production deployment constants.
func DefaultParams() Params {
	minStake, _ := new(big.Int).SetString("100000000000000000000", 10) // 100 tokens at 18 decimals
	return Params{
		CreateFeeBps:          50,
		JoinFeeBps:            30,
		PollCreateFeeBps:      50,
		PollJoinFeeBps:        30,
		JoinPeriod:            10_000 * time.Second,
		MinMaturityPeriod:     time.Hour,
		MaxMaturityPeriod:     12 * 7 * 24 * time.Hour,
		MaxEventsPerPool:      10,
		MaxOptionsPerPool:     100,
		MaxPlayersPerPool:     100,
		MaxPollPlayersPerPool: 100_000,
		MinStake:              minStake,
		MaxStaleRetries:       3,
		StaleExtensionPeriod:  time.Hour,
	}
}

// Validate checks Params for invalid values and returns a combined error
// describing every problem found.
func (p Params) Validate() error {
	var errs []string

	for _, r := range []struct {
		name string
		bps  uint32
	}{
		{"create_fee_bps", p.CreateFeeBps},
		{"join_fee_bps", p.JoinFeeBps},
		{"poll_create_fee_bps", p.PollCreateFeeBps},
		{"poll_join_fee_bps", p.PollJoinFeeBps},
	} {
		if r.bps >= bpsDenominator {
			errs = append(errs, fmt.Sprintf("%s must be < %d, got %d", r.name, bpsDenominator, r.bps))
		}
	}

	if p.JoinPeriod <= 0 {
		errs = append(errs, "join_period must be positive")
	}
	if p.MinMaturityPeriod <= 0 {
		errs = append(errs, "min_maturity_period must be positive")
	}
	if p.MaxMaturityPeriod < p.MinMaturityPeriod {
		errs = append(errs, "max_maturity_period must not be below min_maturity_period")
	}
	if p.MaxEventsPerPool < 1 {
		errs = append(errs, "max_events_per_pool must be >= 1")
	}
	if p.MaxOptionsPerPool < 2 {
		errs = append(errs, "max_options_per_pool must be >= 2")
	}
	if p.MaxPlayersPerPool < 1 {
		errs = append(errs, "max_players_per_pool must be >= 1")
	}
	if p.MaxPollPlayersPerPool < 1 {
		errs = append(errs, "max_poll_players_per_pool must be >= 1")
	}
	if p.MinStake == nil || p.MinStake.Sign() <= 0 {
		errs = append(errs, "min_stake must be positive")
	}
	if p.StaleExtensionPeriod <= 0 {
		errs = append(errs, "stale_extension_period must be positive")
	}
	if p.FeeRecipient == (domain.Address{}) {
		errs = append(errs, "fee_recipient must be set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("engine params invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// maxPlayers returns the player cap for a pool mode.
func (p Params) maxPlayers(mode domain.PoolMode) int {
	if mode == domain.PoolModePoll {
		return p.MaxPollPlayersPerPool
	}
	return p.MaxPlayersPerPool
}

// feeRate returns the bps rate for a mode/path pair.
func (p Params) feeRate(mode domain.PoolMode, join bool) uint32 {
	switch {
	case mode == domain.PoolModePoll && join:
		return p.PollJoinFeeBps
	case mode == domain.PoolModePoll:
		return p.PollCreateFeeBps
	case join:
		return p.JoinFeeBps
	default:
		return p.CreateFeeBps
	}
}
