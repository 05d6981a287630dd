package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"billpay/internal/domain/transaction"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, account_id, name, merchant_name, amount, date, pending,
       category, payment_channel, is_recurring, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var merchantName, category, paymentChannel sql.NullString

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &tx.Name, &merchantName,
		&tx.Amount, &tx.Date, &tx.Pending,
		&category, &paymentChannel, &tx.IsRecurring,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if merchantName.Valid {
		tx.MerchantName = &merchantName.String
	}
	if category.Valid {
		tx.Category = &category.String
	}
	if paymentChannel.Valid {
		tx.PaymentChannel = &paymentChannel.String
	}

	return &tx, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return tx, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *TransactionRepository) ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND date >= $2
		ORDER BY date DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions since %s: %w", since.Format("2006-01-02"), err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]*transaction.Transaction, error) {
	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// Upsert creates or updates a transaction keyed by its provider id. A pending
// row that later posts settles in place under the same id. The is_recurring
// flag is deliberately not in the update set so re-syncs don't clear it.
func (r *TransactionRepository) Upsert(ctx context.Context, params transaction.UpsertParams) (*transaction.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO transactions (
			id, user_id, account_id, name, merchant_name, amount, date, pending,
			category, payment_channel
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			merchant_name = EXCLUDED.merchant_name,
			amount = EXCLUDED.amount,
			date = EXCLUDED.date,
			pending = EXCLUDED.pending,
			category = EXCLUDED.category,
			payment_channel = EXCLUDED.payment_channel,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRowContext(
		ctx, query,
		params.ID, params.UserID, params.AccountID, params.Name,
		nullStringPtr(params.MerchantName), params.Amount, params.Date, params.Pending,
		nullStringPtr(params.Category), nullStringPtr(params.PaymentChannel),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert transaction: %w", err)
	}

	return tx, nil
}

func (r *TransactionRepository) MarkRecurring(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE transactions SET is_recurring = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = ANY($1)`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark transactions recurring: %w", err)
	}
	return nil
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
