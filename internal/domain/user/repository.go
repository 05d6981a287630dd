package user

import "context"

// Repository defines the interface for user data access.
// Implemented in the infrastructure layer.
type Repository interface {
	// Create registers a new user.
	Create(ctx context.Context, params CreateParams) (*User, error)

	// GetByID retrieves a user by id. The sealed access token is returned
	// as stored; decryption is the sync boundary's job.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByItemID retrieves the user owning a Plaid item.
	GetByItemID(ctx context.Context, itemID string) (*User, error)

	// SetLink stores a sealed access token and item id and moves the user
	// to the linked state in one statement. Overwrites any existing link.
	SetLink(ctx context.Context, userID int64, sealedToken, itemID string) error

	// SetLinkState updates only the link state tag.
	SetLinkState(ctx context.Context, userID int64, state LinkState) error

	// TouchLastSynced records a completed sync.
	TouchLastSynced(ctx context.Context, userID int64) error

	// Unlink clears the link and, when reset is true, deletes all
	// provider-sourced rows (accounts, transactions, provenance-tagged
	// bills and incomes) in a single transaction.
	Unlink(ctx context.Context, userID int64, reset bool) error
}
