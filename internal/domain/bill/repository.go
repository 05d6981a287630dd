package bill

import "context"

// Repository defines the interface for bill data access
type Repository interface {
	// Create creates a new bill
	Create(ctx context.Context, params CreateParams) (*Bill, error)

	// GetByID retrieves a bill by id
	GetByID(ctx context.Context, id int64) (*Bill, error)

	// ListByUserID retrieves all bills for a user ordered by due date
	ListByUserID(ctx context.Context, userID int64) ([]*Bill, error)

	// GetByProvenanceID retrieves the sync-owned bill for a provider id
	GetByProvenanceID(ctx context.Context, userID int64, provenanceID string) (*Bill, error)

	// FindByName retrieves a bill by exact name for a user (used by
	// recurring-pattern detection, which keys heuristic bills by name)
	FindByName(ctx context.Context, userID int64, name string) (*Bill, error)

	// Update applies partial updates to a bill
	Update(ctx context.Context, id int64, params UpdateParams) (*Bill, error)

	// Delete removes a bill
	Delete(ctx context.Context, id int64) error
}
