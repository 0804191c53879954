package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// TopicStore implements domain.TopicStore using PostgreSQL.
type TopicStore struct {
	pool *pgxpool.Pool
}

// NewTopicStore creates a new TopicStore backed by the given connection pool.
func NewTopicStore(pool *pgxpool.Pool) *TopicStore {
	return &TopicStore{pool: pool}
}

const topicCols = `id, title, description, evaluator, enabled, created_at`

// Create inserts a new topic row.
func (s *TopicStore) Create(ctx context.Context, t *domain.Topic) error {
	const query = `
		INSERT INTO topics (id, title, description, evaluator, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`
	_, err := s.pool.Exec(ctx, query,
		int64(t.ID), t.Title, t.Description, t.Evaluator, t.Enabled)
	if err != nil {
		return fmt.Errorf("postgres: create topic %d: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a topic by id.
func (s *TopicStore) Get(ctx context.Context, id uint64) (*domain.Topic, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+topicCols+` FROM topics WHERE id = $1`, int64(id))
	t, err := scanTopic(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTopicNotFound
		}
		return nil, fmt.Errorf("postgres: get topic %d: %w", id, err)
	}
	return t, nil
}

// Update rewrites a topic's mutable columns.
func (s *TopicStore) Update(ctx context.Context, t *domain.Topic) error {
	const query = `
		UPDATE topics SET title = $2, description = $3, evaluator = $4, enabled = $5
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		int64(t.ID), t.Title, t.Description, t.Evaluator, t.Enabled)
	if err != nil {
		return fmt.Errorf("postgres: update topic %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTopicNotFound
	}
	return nil
}

// List returns topics ordered by id.
func (s *TopicStore) List(ctx context.Context, opts domain.ListOpts) ([]*domain.Topic, error) {
	query := `SELECT ` + topicCols + ` FROM topics ORDER BY id ASC`
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
		return nil, fmt.Errorf("postgres: list topics: %w", err)
	}
	defer rows.Close()

	var out []*domain.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan topic: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate topics: %w", err)
	}
	return out, nil
}

// MaxID returns the highest assigned topic id, 0 when the table is empty.
func (s *TopicStore) MaxID(ctx context.Context) (uint64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM topics`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("postgres: max topic id: %w", err)
	}
	return uint64(max), nil
}

func scanTopic(row pgx.Row) (*domain.Topic, error) {
	var (
		t  domain.Topic
		id int64
	)
	err := row.Scan(&id, &t.Title, &t.Description, &t.Evaluator, &t.Enabled, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ID = uint64(id)
	return &t, nil
}

// Compile-time interface check.
var _ domain.TopicStore = (*TopicStore)(nil)
