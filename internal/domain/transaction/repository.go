package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction data access
type Repository interface {
	// GetByID retrieves a transaction by its provider id
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// ListByUserID retrieves transactions for a user, newest first
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Transaction, error)

	// ListByUserSince retrieves all transactions for a user dated on or
	// after the given day, newest first
	ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]*Transaction, error)

	// Upsert creates or updates a transaction based on its provider id.
	// A pending row that later posts as settled is updated in place.
	Upsert(ctx context.Context, params UpsertParams) (*Transaction, error)

	// MarkRecurring flags transactions as part of a recurring pattern
	MarkRecurring(ctx context.Context, ids []string) error

	// CountByUserID returns the number of stored transactions for a user
	CountByUserID(ctx context.Context, userID int64) (int, error)
}
