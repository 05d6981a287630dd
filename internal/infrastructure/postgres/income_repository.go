package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"billpay/internal/domain/income"
)

type IncomeRepository struct {
	db *DB
}

func NewIncomeRepository(db *DB) *IncomeRepository {
	return &IncomeRepository{db: db}
}

const incomeColumns = `id, user_id, plaid_income_id, source, gross_amount, net_amount, frequency,
       date, notes, created_at, updated_at`

func scanIncome(row interface{ Scan(...any) error }) (*income.Income, error) {
	var in income.Income
	var provenanceID, notes sql.NullString
	var netAmount sql.NullFloat64

	err := row.Scan(
		&in.ID, &in.UserID, &provenanceID, &in.Source, &in.GrossAmount,
		&netAmount, &in.Frequency, &in.Date, &notes,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if provenanceID.Valid {
		in.ProvenanceID = &provenanceID.String
	}
	if netAmount.Valid {
		in.NetAmount = &netAmount.Float64
	}
	if notes.Valid {
		in.Notes = &notes.String
	}

	return &in, nil
}

func (r *IncomeRepository) Create(ctx context.Context, params income.CreateParams) (*income.Income, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO incomes (user_id, plaid_income_id, source, gross_amount, net_amount, frequency, date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + incomeColumns

	in, err := scanIncome(r.db.QueryRowContext(
		ctx, query,
		params.UserID, nullStringPtr(params.ProvenanceID), params.Source, params.GrossAmount,
		nullFloat64Ptr(params.NetAmount), params.Frequency, params.Date, nullStringPtr(params.Notes),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create income: %w", err)
	}

	return in, nil
}

func (r *IncomeRepository) GetByID(ctx context.Context, id int64) (*income.Income, error) {
	query := `SELECT ` + incomeColumns + ` FROM incomes WHERE id = $1`

	in, err := scanIncome(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, income.ErrIncomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get income: %w", err)
	}

	return in, nil
}

func (r *IncomeRepository) ListByUserID(ctx context.Context, userID int64) ([]*income.Income, error) {
	query := `SELECT ` + incomeColumns + ` FROM incomes WHERE user_id = $1 ORDER BY date DESC, source`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomes: %w", err)
	}
	defer rows.Close()

	var incomes []*income.Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan income: %w", err)
		}
		incomes = append(incomes, in)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incomes: %w", err)
	}

	return incomes, nil
}

func (r *IncomeRepository) GetByProvenanceID(ctx context.Context, userID int64, provenanceID string) (*income.Income, error) {
	query := `SELECT ` + incomeColumns + ` FROM incomes WHERE user_id = $1 AND plaid_income_id = $2`

	in, err := scanIncome(r.db.QueryRowContext(ctx, query, userID, provenanceID))
	if err == sql.ErrNoRows {
		return nil, income.ErrIncomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get income by provenance: %w", err)
	}

	return in, nil
}

func (r *IncomeRepository) Update(ctx context.Context, id int64, params income.UpdateParams) (*income.Income, error) {
	query := `
		UPDATE incomes
		SET source = COALESCE($2, source),
		    gross_amount = COALESCE($3, gross_amount),
		    net_amount = COALESCE($4, net_amount),
		    frequency = COALESCE($5, frequency),
		    date = COALESCE($6, date),
		    notes = COALESCE($7, notes),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + incomeColumns

	in, err := scanIncome(r.db.QueryRowContext(
		ctx, query,
		id, params.Source, params.GrossAmount, params.NetAmount,
		params.Frequency, nullTimePtr(params.Date), params.Notes,
	))
	if err == sql.ErrNoRows {
		return nil, income.ErrIncomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update income: %w", err)
	}

	return in, nil
}

func (r *IncomeRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM incomes WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete income: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return income.ErrIncomeNotFound
	}

	return nil
}
