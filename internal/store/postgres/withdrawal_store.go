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

// WithdrawalStore implements domain.WithdrawalStore using PostgreSQL.
type WithdrawalStore struct {
	pool *pgxpool.Pool
}

// NewWithdrawalStore creates a new WithdrawalStore backed by the given
// connection pool.
func NewWithdrawalStore(pool *pgxpool.Pool) *WithdrawalStore {
	return &WithdrawalStore{pool: pool}
}

const withdrawalCols = `id, pool_id, account, stake::text, win_share::text,
	payout::text, created_at`

// Create inserts a payout record.
func (s *WithdrawalStore) Create(ctx context.Context, rec *domain.WithdrawalRecord) error {
	const query = `
		INSERT INTO withdrawals (id, pool_id, account, stake, win_share, payout, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, int64(rec.PoolID), rec.Account.Hex(),
		bigText(rec.Stake), bigText(rec.WinShare), bigText(rec.Payout), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create withdrawal %s: %w", rec.ID, err)
	}
	return nil
}

// ListByPool returns a pool's payout records, newest first.
func (s *WithdrawalStore) ListByPool(ctx context.Context, poolID uint64, opts domain.ListOpts) ([]*domain.WithdrawalRecord, error) {
	query := `SELECT ` + withdrawalCols + ` FROM withdrawals
		WHERE pool_id = $1 ORDER BY created_at DESC`
	args := []any{int64(poolID)}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.query(ctx, query, args...)
}

// ListBefore returns records created before cutoff, oldest first.
func (s *WithdrawalStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WithdrawalRecord, error) {
	query := `SELECT ` + withdrawalCols + ` FROM withdrawals
		WHERE created_at < $1 ORDER BY created_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return s.query(ctx, query, args...)
}

func (s *WithdrawalStore) query(ctx context.Context, query string, args ...any) ([]*domain.WithdrawalRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []*domain.WithdrawalRecord
	for rows.Next() {
		rec, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan withdrawal: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate withdrawals: %w", err)
	}
	return out, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRecord, error) {
	var (
		rec      domain.WithdrawalRecord
		poolID   int64
		account  string
		stake    string
		winShare string
		payout   string
	)
	err := row.Scan(&rec.ID, &poolID, &account, &stake, &winShare, &payout, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.PoolID = uint64(poolID)
	rec.Account = common.HexToAddress(account)
	if rec.Stake, err = parseBig(stake); err != nil {
		return nil, err
	}
	if rec.WinShare, err = parseBig(winShare); err != nil {
		return nil, err
	}
	if rec.Payout, err = parseBig(payout); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Compile-time interface check.
var _ domain.WithdrawalStore = (*WithdrawalStore)(nil)
