package bill

import (
	"errors"
	"time"
)

// Bill status values
const (
	StatusUnpaid = "unpaid"
	StatusPaid   = "paid"
)

// Domain errors
var (
	ErrBillNotFound  = errors.New("bill not found")
	ErrForbidden     = errors.New("access forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidStatus = errors.New("invalid bill status")
)

// Bill represents a recurring payable obligation. A bill with a ProvenanceID
// was derived from provider liability data: it is owned by the sync pipeline,
// replaced on each sync, and deleted on unlink. A bill without one was entered
// by the user and survives unlink.
type Bill struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	ProvenanceID *string   `json:"provenanceId,omitempty"` // provider liability/account id
	Name         string    `json:"name"`
	Amount       float64   `json:"amount"`
	DueDate      time.Time `json:"dueDate"`
	Frequency    string    `json:"frequency"`
	Category     *string   `json:"category,omitempty"`
	Status       string    `json:"status"`
	Autopay      bool      `json:"autopay"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsProviderOwned reports whether the bill is owned by the sync pipeline.
func (b *Bill) IsProviderOwned() bool {
	return b.ProvenanceID != nil && *b.ProvenanceID != ""
}

// IsValidStatus checks whether the status is a known bill status.
func IsValidStatus(s string) bool {
	return s == StatusUnpaid || s == StatusPaid
}

// CreateParams contains parameters for creating a bill (manual entry or sync).
type CreateParams struct {
	UserID       int64
	ProvenanceID *string
	Name         string
	Amount       float64
	DueDate      time.Time
	Frequency    string
	Category     *string
	Status       string
	Autopay      bool
	Notes        *string
}

// Validate validates the create parameters.
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Name == "" {
		return errors.New("bill name is required")
	}
	if p.DueDate.IsZero() {
		return errors.New("due date is required")
	}
	if p.Status != "" && !IsValidStatus(p.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// UpdateParams contains optional fields for updating a bill.
type UpdateParams struct {
	Name    *string
	Amount  *float64
	DueDate *time.Time
	Status  *string
	Autopay *bool
	Notes   *string
}

// Validate validates the update parameters.
func (p UpdateParams) Validate() error {
	if p.Status != nil && !IsValidStatus(*p.Status) {
		return ErrInvalidStatus
	}
	if p.Name != nil && *p.Name == "" {
		return errors.New("bill name cannot be empty")
	}
	return nil
}
