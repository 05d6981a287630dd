package account

import (
	"errors"
	"time"
)

// Account types and subtypes as reported by the aggregation API.
var (
	accountTypes = map[string]struct{}{
		"depository": {},
		"credit":     {},
		"loan":       {},
		"investment": {},
		"brokerage":  {},
		"other":      {},
	}
	// Common ISO 4217 currency codes
	validCurrencies = map[string]struct{}{
		"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CHF": {},
		"CAD": {}, "AUD": {}, "NZD": {}, "CNY": {}, "INR": {},
		"MXN": {}, "BRL": {}, "SEK": {}, "NOK": {}, "DKK": {},
		"PLN": {}, "KRW": {}, "SGD": {}, "HKD": {},
	}
)

// Domain errors
var (
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAccountNotFound    = errors.New("account not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCurrency    = errors.New("valid ISO 4217 currency is required")
)

// Account represents a financial account sourced from the aggregation API.
// The ID is the provider's account id; accounts exist only while linked and
// are deleted en masse on unlink.
type Account struct {
	ID               string    `json:"id"` // provider account id
	UserID           int64     `json:"userId"`
	Name             string    `json:"name"`
	OfficialName     *string   `json:"officialName,omitempty"`
	AccountType      string    `json:"accountType"`
	Subtype          *string   `json:"subtype,omitempty"`
	Mask             *string   `json:"mask,omitempty"`
	CurrentBalance   *float64  `json:"currentBalance"`
	AvailableBalance *float64  `json:"availableBalance"`
	Currency         string    `json:"currency"`
	LastSynced       time.Time `json:"lastSynced"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// UpsertParams contains parameters for upserting an account during sync.
type UpsertParams struct {
	ID               string
	UserID           int64
	Name             string
	OfficialName     *string
	AccountType      string
	Subtype          *string
	Mask             *string
	CurrentBalance   *float64
	AvailableBalance *float64
	Currency         string
}

// Validate validates the upsert parameters.
func (p UpsertParams) Validate() error {
	if p.ID == "" {
		return errors.New("account ID is required for upsert")
	}
	if p.UserID <= 0 {
		return errors.New("valid user ID is required for upsert")
	}
	if p.Name == "" {
		return errors.New("account name is required")
	}
	if p.AccountType == "" {
		return errors.New("account type is required")
	}
	if !IsValidAccountType(p.AccountType) {
		return ErrInvalidAccountType
	}
	if p.Currency == "" || !IsValidCurrency(p.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

// IsValidAccountType checks if the provided account type is valid.
func IsValidAccountType(t string) bool {
	_, ok := accountTypes[t]
	return ok
}

// IsValidCurrency checks if the provided currency is a valid ISO 4217 code.
func IsValidCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	_, ok := validCurrencies[c]
	return ok
}
