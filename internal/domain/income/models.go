package income

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrIncomeNotFound = errors.New("income not found")
	ErrForbidden      = errors.New("access forbidden")
	ErrInvalidInput   = errors.New("invalid input")
)

// Income represents a recurring receivable. The provenance rule mirrors Bill:
// a row with a ProvenanceID is owned by the sync pipeline and deleted on
// unlink; a row without one is user-entered and persists.
type Income struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	ProvenanceID *string   `json:"provenanceId,omitempty"` // normalized deposit source key
	Source       string    `json:"source"`
	GrossAmount  float64   `json:"grossAmount"`
	NetAmount    *float64  `json:"netAmount,omitempty"`
	Frequency    string    `json:"frequency"`
	Date         time.Time `json:"date"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsProviderOwned reports whether the income row is owned by the sync pipeline.
func (i *Income) IsProviderOwned() bool {
	return i.ProvenanceID != nil && *i.ProvenanceID != ""
}

// CreateParams contains parameters for creating an income entry.
type CreateParams struct {
	UserID       int64
	ProvenanceID *string
	Source       string
	GrossAmount  float64
	NetAmount    *float64
	Frequency    string
	Date         time.Time
	Notes        *string
}

// Validate validates the create parameters.
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Source == "" {
		return errors.New("income source is required")
	}
	if p.GrossAmount <= 0 {
		return errors.New("gross amount must be positive")
	}
	if p.Frequency == "" {
		return errors.New("frequency is required")
	}
	if p.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

// UpdateParams contains optional fields for updating an income entry.
type UpdateParams struct {
	Source      *string
	GrossAmount *float64
	NetAmount   *float64
	Frequency   *string
	Date        *time.Time
	Notes       *string
}
