package domain

import "time"

// Topic binds an identifier to an outcome evaluator. Pools reference topics
// by id; disabled topics reject new pools but existing pools still resolve.
type Topic struct {
	ID          uint64
	Title       string
	Description string
	// Evaluator is the registered name of the evaluator implementation.
	Evaluator string
	Enabled   bool
	CreatedAt time.Time
}
