package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// ParticipantStore implements domain.ParticipantStore using PostgreSQL.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

// NewParticipantStore creates a new ParticipantStore backed by the given
// connection pool.
func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

const participantCols = `pool_id, account, prediction, tickets,
	net_stake::text, fee_paid::text, withdrawn, joined_at`

// Create inserts a participant entry. The primary key enforces the
// one-entry-per-account rule.
func (s *ParticipantStore) Create(ctx context.Context, p *domain.Participant) error {
	const query = `
		INSERT INTO participants (
			pool_id, account, prediction, tickets,
			net_stake, fee_paid, withdrawn, joined_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pool_id, account) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query,
		int64(p.PoolID), p.Account.Hex(), p.Prediction, int64(p.Tickets),
		bigText(p.NetStake), bigText(p.FeePaid), p.Withdrawn, p.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlayerAlreadyInPool
	}
	return nil
}

// Get retrieves one account's entry in a pool.
func (s *ParticipantStore) Get(ctx context.Context, poolID uint64, account domain.Address) (*domain.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+participantCols+` FROM participants WHERE pool_id = $1 AND account = $2`,
		int64(poolID), account.Hex())
	p, err := scanParticipant(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get participant: %w", err)
	}
	return p, nil
}

// Delete removes an entry. Only called to unwind a failed join.
func (s *ParticipantStore) Delete(ctx context.Context, poolID uint64, account domain.Address) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM participants WHERE pool_id = $1 AND account = $2`,
		int64(poolID), account.Hex())
	if err != nil {
		return fmt.Errorf("postgres: delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByPool returns a pool's entries in join order.
func (s *ParticipantStore) ListByPool(ctx context.Context, poolID uint64, opts domain.ListOpts) ([]*domain.Participant, error) {
	query := `SELECT ` + participantCols + ` FROM participants
		WHERE pool_id = $1 ORDER BY joined_at ASC, account ASC`
	args := []any{int64(poolID)}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list participants: %w", err)
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate participants: %w", err)
	}
	return out, nil
}

// CountByPool counts a pool's entries.
func (s *ParticipantStore) CountByPool(ctx context.Context, poolID uint64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM participants WHERE pool_id = $1`, int64(poolID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count participants: %w", err)
	}
	return n, nil
}

// SetWithdrawn flips the withdrawn flag. The predicate makes the flip
// first-writer-wins: a raced second caller matches zero rows.
func (s *ParticipantStore) SetWithdrawn(ctx context.Context, poolID uint64, account domain.Address) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE participants SET withdrawn = TRUE
		 WHERE pool_id = $1 AND account = $2 AND withdrawn = FALSE`,
		int64(poolID), account.Hex())
	if err != nil {
		return fmt.Errorf("postgres: set withdrawn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM participants WHERE pool_id = $1 AND account = $2)`,
			int64(poolID), account.Hex()).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check participant: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyWithdrawn
	}
	return nil
}

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var (
		p        domain.Participant
		poolID   int64
		account  string
		tickets  int64
		netStake string
		feePaid  string
		joinedAt time.Time
	)
	err := row.Scan(&poolID, &account, &p.Prediction, &tickets,
		&netStake, &feePaid, &p.Withdrawn, &joinedAt)
	if err != nil {
		return nil, err
	}

	p.PoolID = uint64(poolID)
	p.Account = common.HexToAddress(account)
	p.Tickets = uint64(tickets)
	p.JoinedAt = joinedAt
	if p.NetStake, err = parseBig(netStake); err != nil {
		return nil, err
	}
	if p.FeePaid, err = parseBig(feePaid); err != nil {
		return nil, err
	}
	return &p, nil
}

// Compile-time interface check.
var _ domain.ParticipantStore = (*ParticipantStore)(nil)
