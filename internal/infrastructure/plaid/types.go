package plaid

import (
	"fmt"
	"time"
)

// LinkTokenCreateRequest carries the parameters for a link token request.
type LinkTokenCreateRequest struct {
	ClientName   string
	ClientUserID string
	Products     []string
	CountryCodes []string
	RedirectURI  string
	Webhook      string
}

// LinkTokenCreateResponse is the API response for a link token request.
type LinkTokenCreateResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

// ExchangeResponse is the API response for a public token exchange.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// Account represents an account from the Plaid API
type Account struct {
	AccountID    string   `json:"account_id"`
	Name         string   `json:"name"`
	OfficialName *string  `json:"official_name"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
	Mask         *string  `json:"mask"`
	Balances     Balances `json:"balances"`
}

// Balances represents account balance data
type Balances struct {
	Available       *float64 `json:"available"`
	Current         *float64 `json:"current"`
	ISOCurrencyCode *string  `json:"iso_currency_code"`
}

// AccountsGetResponse is the API response for an accounts fetch.
type AccountsGetResponse struct {
	Accounts  []Account `json:"accounts"`
	Item      Item      `json:"item"`
	RequestID string    `json:"request_id"`
}

// Item represents the connection between one user and one institution.
type Item struct {
	ItemID        string `json:"item_id"`
	InstitutionID string `json:"institution_id"`
}

// Transaction represents a transaction from the Plaid API
type Transaction struct {
	TransactionID           string                   `json:"transaction_id"`
	AccountID               string                   `json:"account_id"`
	Name                    string                   `json:"name"`
	MerchantName            *string                  `json:"merchant_name"`
	Amount                  float64                  `json:"amount"` // positive = outflow
	DateString              string                   `json:"date"`   // YYYY-MM-DD
	Pending                 bool                     `json:"pending"`
	PaymentChannel          string                   `json:"payment_channel"`
	PersonalFinanceCategory *PersonalFinanceCategory `json:"personal_finance_category"`
}

// PersonalFinanceCategory is Plaid's normalized category taxonomy.
type PersonalFinanceCategory struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

// GetDate parses and returns the transaction date
func (t *Transaction) GetDate() (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", t.DateString)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", t.DateString, err)
	}
	return parsed, nil
}

// TransactionsGetResponse is the API response for a transactions fetch.
type TransactionsGetResponse struct {
	Accounts          []Account     `json:"accounts"`
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	RequestID         string        `json:"request_id"`
}

// Liabilities groups liability data by kind.
type Liabilities struct {
	Credit   []CreditLiability   `json:"credit"`
	Student  []StudentLiability  `json:"student"`
	Mortgage []MortgageLiability `json:"mortgage"`
}

// CreditLiability represents a credit card liability
type CreditLiability struct {
	AccountID            *string  `json:"account_id"`
	LastStatementBalance *float64 `json:"last_statement_balance"`
	MinimumPaymentAmount *float64 `json:"minimum_payment_amount"`
	NextPaymentDueDate   *string  `json:"next_payment_due_date"` // YYYY-MM-DD
	IsOverdue            *bool    `json:"is_overdue"`
}

// StudentLiability represents a student loan liability
type StudentLiability struct {
	AccountID            *string  `json:"account_id"`
	LoanName             *string  `json:"loan_name"`
	MinimumPaymentAmount *float64 `json:"minimum_payment_amount"`
	NextPaymentDueDate   *string  `json:"next_payment_due_date"`
}

// MortgageLiability represents a mortgage liability
type MortgageLiability struct {
	AccountID          *string  `json:"account_id"`
	NextMonthlyPayment *float64 `json:"next_monthly_payment"`
	NextPaymentDueDate *string  `json:"next_payment_due_date"`
}

// LiabilitiesGetResponse is the API response for a liabilities fetch.
type LiabilitiesGetResponse struct {
	Accounts    []Account   `json:"accounts"`
	Liabilities Liabilities `json:"liabilities"`
	RequestID   string      `json:"request_id"`
}

// ParseDueDate parses a YYYY-MM-DD due date pointer; nil in, zero time out.
func ParseDueDate(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date '%s': %w", *s, err)
	}
	return parsed, nil
}
