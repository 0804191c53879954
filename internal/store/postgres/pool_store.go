package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// PoolStore implements domain.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given connection pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

const poolCols = `id, mode, creator, events, options, ticket_price::text,
	phase, result, stake_by_side, player_count, stale_retries,
	next_retry_at, created_at, join_deadline, updated_at`

// Create inserts a new pool row.
func (s *PoolStore) Create(ctx context.Context, p *domain.Pool) error {
	events, stakes, options, err := encodePool(p)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO pools (
			id, mode, creator, events, options, ticket_price,
			phase, result, stake_by_side, player_count, stale_retries,
			next_retry_at, created_at, join_deadline, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15
		)`
	_, err = s.pool.Exec(ctx, query,
		int64(p.ID), string(p.Mode), p.Creator.Hex(), events, options, bigText(p.TicketPrice),
		string(p.Phase), p.Result, stakes, p.PlayerCount, int32(p.StaleRetries),
		nullTime(p.NextRetryAt), p.CreatedAt, p.JoinDeadline, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create pool %d: %w", p.ID, err)
	}
	return nil
}

// Get retrieves a pool by id.
func (s *PoolStore) Get(ctx context.Context, id uint64) (*domain.Pool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolCols+` FROM pools WHERE id = $1`, int64(id))
	p, err := scanPool(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPoolNotFound
		}
		return nil, fmt.Errorf("postgres: get pool %d: %w", id, err)
	}
	return p, nil
}

// Update rewrites a pool's mutable columns.
func (s *PoolStore) Update(ctx context.Context, p *domain.Pool) error {
	_, stakes, _, err := encodePool(p)
	if err != nil {
		return err
	}

	const query = `
		UPDATE pools SET
			phase         = $2,
			result        = $3,
			stake_by_side = $4,
			player_count  = $5,
			stale_retries = $6,
			next_retry_at = $7,
			updated_at    = $8
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		int64(p.ID), string(p.Phase), p.Result, stakes,
		p.PlayerCount, int32(p.StaleRetries), nullTime(p.NextRetryAt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update pool %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPoolNotFound
	}
	return nil
}

// Delete removes a pool row. Only called to unwind a failed creation, so a
// missing row is an error.
func (s *PoolStore) Delete(ctx context.Context, id uint64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pools WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("postgres: delete pool %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPoolNotFound
	}
	return nil
}

// List returns pools ordered by id descending.
func (s *PoolStore) List(ctx context.Context, opts domain.ListOpts) ([]*domain.Pool, error) {
	query := `SELECT ` + poolCols + ` FROM pools ORDER BY id DESC`
	args := []any{}
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
		return nil, fmt.Errorf("postgres: list pools: %w", err)
	}
	defer rows.Close()
	return collectPools(rows)
}

// ListResolvedBefore returns terminal pools last updated before cutoff,
// oldest first.
func (s *PoolStore) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Pool, error) {
	query := `SELECT ` + poolCols + ` FROM pools
		WHERE phase IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at ASC`
	args := []any{string(domain.PoolResolved), string(domain.PoolManual), cutoff}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved pools: %w", err)
	}
	defer rows.Close()
	return collectPools(rows)
}

// MaxID returns the highest assigned pool id, 0 when the table is empty.
func (s *PoolStore) MaxID(ctx context.Context) (uint64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM pools`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("postgres: max pool id: %w", err)
	}
	return uint64(max), nil
}

func collectPools(rows pgx.Rows) ([]*domain.Pool, error) {
	var out []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pool: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate pools: %w", err)
	}
	return out, nil
}

// encodePool serializes the JSONB columns.
func encodePool(p *domain.Pool) (events, stakes, options []byte, err error) {
	events, err = json.Marshal(p.Events)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: marshal pool %d events: %w", p.ID, err)
	}

	stakeStrs := make(map[string]string, len(p.StakeBySide))
	for side, v := range p.StakeBySide {
		if v == nil {
			v = new(big.Int)
		}
		stakeStrs[side] = v.String()
	}
	stakes, err = json.Marshal(stakeStrs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: marshal pool %d stakes: %w", p.ID, err)
	}

	if p.Options != nil {
		options, err = json.Marshal(p.Options)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres: marshal pool %d options: %w", p.ID, err)
		}
	}
	return events, stakes, options, nil
}

// scanPool scans a single pool row.
func scanPool(row pgx.Row) (*domain.Pool, error) {
	var (
		p           domain.Pool
		id          int64
		mode        string
		creator     string
		events      []byte
		options     []byte
		ticketPrice *string
		phase       string
		stakes      []byte
		retries     int32
		nextRetry   *time.Time
	)
	err := row.Scan(
		&id, &mode, &creator, &events, &options, &ticketPrice,
		&phase, &p.Result, &stakes, &p.PlayerCount, &retries,
		&nextRetry, &p.CreatedAt, &p.JoinDeadline, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ID = uint64(id)
	p.Mode = domain.PoolMode(mode)
	p.Creator = common.HexToAddress(creator)
	p.Phase = domain.PoolState(phase)
	p.StaleRetries = uint32(retries)
	if nextRetry != nil {
		p.NextRetryAt = *nextRetry
	}

	if err := json.Unmarshal(events, &p.Events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &p.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if ticketPrice != nil {
		p.TicketPrice, err = parseBig(*ticketPrice)
		if err != nil {
			return nil, err
		}
	}

	var stakeStrs map[string]string
	if err := json.Unmarshal(stakes, &stakeStrs); err != nil {
		return nil, fmt.Errorf("unmarshal stakes: %w", err)
	}
	p.StakeBySide = make(map[string]*big.Int, len(stakeStrs))
	for side, s := range stakeStrs {
		v, err := parseBig(s)
		if err != nil {
			return nil, err
		}
		p.StakeBySide[side] = v
	}

	return &p, nil
}

// bigText renders a big.Int for a NUMERIC column, NULL when nil.
func bigText(v *big.Int) any {
	if v == nil {
		return nil
	}
	return v.String()
}

// parseBig parses a NUMERIC column rendered as text.
func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric %q", s)
	}
	return v, nil
}

// nullTime renders a time for a nullable column, NULL when zero.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Compile-time interface check.
var _ domain.PoolStore = (*PoolStore)(nil)
