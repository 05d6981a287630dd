package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"billpay/internal/domain/bill"
)

type BillRepository struct {
	db *DB
}

func NewBillRepository(db *DB) *BillRepository {
	return &BillRepository{db: db}
}

const billColumns = `id, user_id, plaid_bill_id, name, amount, due_date, frequency, category,
       status, autopay, notes, created_at, updated_at`

func scanBill(row interface{ Scan(...any) error }) (*bill.Bill, error) {
	var b bill.Bill
	var provenanceID, category, notes sql.NullString

	err := row.Scan(
		&b.ID, &b.UserID, &provenanceID, &b.Name, &b.Amount, &b.DueDate,
		&b.Frequency, &category, &b.Status, &b.Autopay, &notes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if provenanceID.Valid {
		b.ProvenanceID = &provenanceID.String
	}
	if category.Valid {
		b.Category = &category.String
	}
	if notes.Valid {
		b.Notes = &notes.String
	}

	return &b, nil
}

func (r *BillRepository) Create(ctx context.Context, params bill.CreateParams) (*bill.Bill, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	frequency := params.Frequency
	if frequency == "" {
		frequency = "monthly"
	}
	status := params.Status
	if status == "" {
		status = bill.StatusUnpaid
	}

	query := `
		INSERT INTO bills (user_id, plaid_bill_id, name, amount, due_date, frequency, category, status, autopay, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + billColumns

	b, err := scanBill(r.db.QueryRowContext(
		ctx, query,
		params.UserID, nullStringPtr(params.ProvenanceID), params.Name, params.Amount,
		params.DueDate, frequency, nullStringPtr(params.Category), status, params.Autopay,
		nullStringPtr(params.Notes),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create bill: %w", err)
	}

	return b, nil
}

func (r *BillRepository) GetByID(ctx context.Context, id int64) (*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	b, err := scanBill(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, bill.ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	return b, nil
}

func (r *BillRepository) ListByUserID(ctx context.Context, userID int64) ([]*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 ORDER BY due_date, name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []*bill.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bills: %w", err)
	}

	return bills, nil
}

func (r *BillRepository) GetByProvenanceID(ctx context.Context, userID int64, provenanceID string) (*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 AND plaid_bill_id = $2`

	b, err := scanBill(r.db.QueryRowContext(ctx, query, userID, provenanceID))
	if err == sql.ErrNoRows {
		return nil, bill.ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill by provenance: %w", err)
	}

	return b, nil
}

func (r *BillRepository) FindByName(ctx context.Context, userID int64, name string) (*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 AND LOWER(name) = $2 LIMIT 1`

	b, err := scanBill(r.db.QueryRowContext(ctx, query, userID, strings.ToLower(name)))
	if err == sql.ErrNoRows {
		return nil, bill.ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bill by name: %w", err)
	}

	return b, nil
}

func (r *BillRepository) Update(ctx context.Context, id int64, params bill.UpdateParams) (*bill.Bill, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE bills
		SET name = COALESCE($2, name),
		    amount = COALESCE($3, amount),
		    due_date = COALESCE($4, due_date),
		    status = COALESCE($5, status),
		    autopay = COALESCE($6, autopay),
		    notes = COALESCE($7, notes),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + billColumns

	b, err := scanBill(r.db.QueryRowContext(
		ctx, query,
		id, params.Name, params.Amount, nullTimePtr(params.DueDate),
		params.Status, nullBoolPtr(params.Autopay), params.Notes,
	))
	if err == sql.ErrNoRows {
		return nil, bill.ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update bill: %w", err)
	}

	return b, nil
}

func (r *BillRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM bills WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return bill.ErrBillNotFound
	}

	return nil
}
