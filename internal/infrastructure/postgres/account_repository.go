package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billpay/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, name, official_name, account_type, subtype, mask,
       current_balance, available_balance, iso_currency_code, last_synced, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*account.Account, error) {
	var acc account.Account
	var officialName, subtype, mask sql.NullString
	var current, available sql.NullFloat64

	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.Name, &officialName,
		&acc.AccountType, &subtype, &mask,
		&current, &available, &acc.Currency,
		&acc.LastSynced, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if officialName.Valid {
		acc.OfficialName = &officialName.String
	}
	if subtype.Valid {
		acc.Subtype = &subtype.String
	}
	if mask.Valid {
		acc.Mask = &mask.String
	}
	if current.Valid {
		acc.CurrentBalance = &current.Float64
	}
	if available.Valid {
		acc.AvailableBalance = &available.Float64
	}

	return &acc, nil
}

// GetByID retrieves an account by its provider id
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// ListByUserID retrieves all accounts for a specific user
func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// Upsert creates or updates an account keyed by its provider id. Re-running a
// sync updates balances and metadata in place; it never duplicates rows.
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO accounts (
			id, user_id, name, official_name, account_type, subtype, mask,
			current_balance, available_balance, iso_currency_code, last_synced
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			official_name = EXCLUDED.official_name,
			account_type = EXCLUDED.account_type,
			subtype = EXCLUDED.subtype,
			mask = EXCLUDED.mask,
			current_balance = EXCLUDED.current_balance,
			available_balance = EXCLUDED.available_balance,
			iso_currency_code = EXCLUDED.iso_currency_code,
			last_synced = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(
		ctx, query,
		params.ID, params.UserID, params.Name, nullStringPtr(params.OfficialName),
		params.AccountType, nullStringPtr(params.Subtype), nullStringPtr(params.Mask),
		nullFloat64Ptr(params.CurrentBalance), nullFloat64Ptr(params.AvailableBalance),
		params.Currency,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}

	return acc, nil
}

// Exists checks if an account with the given provider id exists
func (r *AccountRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}

	return exists, nil
}

// Helper functions shared by the repositories in this package.

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat64Ptr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullBoolPtr(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
