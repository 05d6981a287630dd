package income

import "context"

// Repository defines the interface for income data access
type Repository interface {
	// Create creates a new income entry
	Create(ctx context.Context, params CreateParams) (*Income, error)

	// GetByID retrieves an income entry by id
	GetByID(ctx context.Context, id int64) (*Income, error)

	// ListByUserID retrieves all income entries for a user, newest first
	ListByUserID(ctx context.Context, userID int64) ([]*Income, error)

	// GetByProvenanceID retrieves the sync-owned income row for a source key
	GetByProvenanceID(ctx context.Context, userID int64, provenanceID string) (*Income, error)

	// Update applies partial updates to an income entry
	Update(ctx context.Context, id int64, params UpdateParams) (*Income, error)

	// Delete removes an income entry
	Delete(ctx context.Context, id int64) error
}
