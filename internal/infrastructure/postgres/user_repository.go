package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"billpay/internal/domain/user"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, role, plaid_access_token, item_id, link_state, last_synced_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	var u user.User
	var accessToken, itemID sql.NullString
	var lastSynced sql.NullTime

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&accessToken, &itemID, &u.LinkState, &lastSynced,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accessToken.Valid && accessToken.String != "" {
		u.AccessToken = &accessToken.String
	}
	if itemID.Valid && itemID.String != "" {
		u.ItemID = &itemID.String
	}
	if lastSynced.Valid {
		u.LastSyncedAt = &lastSynced.Time
	}

	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, params user.CreateParams) (*user.User, error) {
	role := params.Role
	if role == "" {
		role = user.RoleUser
	}

	query := `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, params.Email, params.PasswordHash, role))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, user.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return u, nil
}

func (r *UserRepository) GetByItemID(ctx context.Context, itemID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE item_id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, itemID))
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by item: %w", err)
	}

	return u, nil
}

// SetLink stores the sealed token and item id and moves the user to linked
// in one statement, keeping the token/item invariant intact.
func (r *UserRepository) SetLink(ctx context.Context, userID int64, sealedToken, itemID string) error {
	if sealedToken == "" || itemID == "" {
		return user.ErrInconsistentLink
	}

	query := `
		UPDATE users
		SET plaid_access_token = $2, item_id = $3, link_state = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, userID, sealedToken, itemID, user.LinkStateLinked)
	if err != nil {
		return fmt.Errorf("failed to set link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) SetLinkState(ctx context.Context, userID int64, state user.LinkState) error {
	if !state.Valid() {
		return user.ErrInvalidTransition
	}

	query := `UPDATE users SET link_state = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, state)
	if err != nil {
		return fmt.Errorf("failed to set link state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

// ListLinked returns every user currently holding a provider link. Not part
// of the domain repository interface; used by admin tooling for batch resyncs.
func (r *UserRepository) ListLinked(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE link_state = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, user.LinkStateLinked)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *UserRepository) TouchLastSynced(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_synced_at = CURRENT_TIMESTAMP WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to touch last synced: %w", err)
	}
	return nil
}

// Unlink clears the link and, when reset is true, deletes all
// provider-sourced rows. Runs in a single transaction: either every
// deletion and the token clear commit together or none are visible.
func (r *UserRepository) Unlink(ctx context.Context, userID int64, reset bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin unlink transaction: %w", err)
	}
	defer tx.Rollback()

	if reset {
		// Transactions before accounts (FK order). Bills and incomes are
		// filtered on provenance so user-entered rows survive.
		deletes := []string{
			`DELETE FROM transactions WHERE user_id = $1`,
			`DELETE FROM accounts WHERE user_id = $1`,
			`DELETE FROM bills WHERE user_id = $1 AND plaid_bill_id IS NOT NULL`,
			`DELETE FROM incomes WHERE user_id = $1 AND plaid_income_id IS NOT NULL`,
		}
		for _, q := range deletes {
			if _, err := tx.ExecContext(ctx, q, userID); err != nil {
				return fmt.Errorf("failed to delete provider data: %w", err)
			}
		}
	}

	clearLink := `
		UPDATE users
		SET plaid_access_token = NULL, item_id = NULL, link_state = $2,
		    last_synced_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, clearLink, userID, user.LinkStateNone)
	if err != nil {
		return fmt.Errorf("failed to clear link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return user.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unlink: %w", err)
	}

	return nil
}
