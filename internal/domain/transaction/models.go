package transaction

import (
	"errors"
	"time"
)

// Transaction status values from the aggregation API map onto the Pending flag:
// a pending transaction may later post as settled under the same provider id.

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrForbidden           = errors.New("access forbidden")
	ErrInvalidInput        = errors.New("invalid input")
)

// Transaction represents a transaction sourced from the aggregation API.
// The ID is the provider's transaction id and is unique per user; syncs
// upsert by this id and never duplicate rows.
type Transaction struct {
	ID             string    `json:"id"` // provider transaction id
	UserID         int64     `json:"userId"`
	AccountID      string    `json:"accountId"`
	Name           string    `json:"name"`
	MerchantName   *string   `json:"merchantName,omitempty"`
	Amount         float64   `json:"amount"` // positive = outflow, negative = inflow (provider convention)
	Date           time.Time `json:"date"`
	Pending        bool      `json:"pending"`
	Category       *string   `json:"category,omitempty"`
	PaymentChannel *string   `json:"paymentChannel,omitempty"`
	IsRecurring    bool      `json:"isRecurring"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IsInflow reports whether the transaction credits the account. The provider
// reports outflows as positive amounts, so deposits are negative.
func (t *Transaction) IsInflow() bool {
	return t.Amount < 0
}

// UpsertParams contains parameters for upserting a transaction during sync.
type UpsertParams struct {
	ID             string
	UserID         int64
	AccountID      string
	Name           string
	MerchantName   *string
	Amount         float64
	Date           time.Time
	Pending        bool
	Category       *string
	PaymentChannel *string
}

// Validate validates the upsert parameters.
func (p UpsertParams) Validate() error {
	if p.ID == "" {
		return errors.New("transaction ID is required for upsert")
	}
	if p.UserID <= 0 {
		return errors.New("valid user ID is required for upsert")
	}
	if p.AccountID == "" {
		return errors.New("account ID is required")
	}
	if p.Name == "" {
		return errors.New("transaction name is required")
	}
	if p.Date.IsZero() {
		return errors.New("transaction date is required")
	}
	return nil
}
