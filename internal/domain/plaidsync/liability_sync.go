package plaidsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"billpay/internal/domain/bill"
	"billpay/internal/infrastructure/plaid"
)

// Two float amounts are the same bill amount when they differ by less than
// a cent. Keeps repeated syncs from churning rows over float noise.
const amountEpsilon = 0.009

// LiabilitySyncResult contains the results of a liability sync operation.
type LiabilitySyncResult struct {
	Found   int      `json:"found"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"` // liabilities without a due date
	Errors  []string `json:"errors,omitempty"`
}

// syncLiabilities turns credit card, student loan and mortgage liabilities
// into bills. Each bill is keyed by (user, provider account id) through its
// provenance id, so re-syncs update amount and due date in place. Liabilities
// without a due date are skipped: a bill must be payable by a date.
func (s *Service) syncLiabilities(ctx context.Context, userID int64, accessToken string) (*LiabilitySyncResult, error) {
	resp, err := s.client.LiabilitiesGet(ctx, accessToken)
	if err != nil {
		return nil, upstreamError(err)
	}

	accountNames := make(map[string]string, len(resp.Accounts))
	for _, acc := range resp.Accounts {
		accountNames[acc.AccountID] = acc.Name
	}

	result := &LiabilitySyncResult{
		Found: len(resp.Liabilities.Credit) + len(resp.Liabilities.Student) + len(resp.Liabilities.Mortgage),
	}

	for _, credit := range resp.Liabilities.Credit {
		name := nameFor(accountNames, credit.AccountID, "Credit Card")
		amount := firstAmount(credit.MinimumPaymentAmount, credit.LastStatementBalance)
		s.upsertLiabilityBill(ctx, userID, credit.AccountID, name, amount, credit.NextPaymentDueDate, "Credit Card", result)
	}

	for _, loan := range resp.Liabilities.Student {
		base := "Student Loan"
		if loan.LoanName != nil && *loan.LoanName != "" {
			base = *loan.LoanName
		} else if loan.AccountID != nil {
			if name, ok := accountNames[*loan.AccountID]; ok && name != "" {
				base = name
			}
		}
		amount := firstAmount(loan.MinimumPaymentAmount)
		s.upsertLiabilityBill(ctx, userID, loan.AccountID, base+" Payment", amount, loan.NextPaymentDueDate, "Student Loan", result)
	}

	for _, mortgage := range resp.Liabilities.Mortgage {
		name := nameFor(accountNames, mortgage.AccountID, "Mortgage")
		amount := firstAmount(mortgage.NextMonthlyPayment)
		s.upsertLiabilityBill(ctx, userID, mortgage.AccountID, name, amount, mortgage.NextPaymentDueDate, "Mortgage", result)
	}

	log.Printf("User %d: liability sync done - found=%d created=%d updated=%d skipped=%d errors=%d",
		userID, result.Found, result.Created, result.Updated, result.Skipped, len(result.Errors))

	return result, nil
}

// upsertLiabilityBill creates or updates one liability-derived bill.
// A missing account id or due date makes the liability unusable as a bill.
func (s *Service) upsertLiabilityBill(
	ctx context.Context,
	userID int64,
	accountID *string,
	name string,
	amount float64,
	dueDateStr *string,
	category string,
	result *LiabilitySyncResult,
) {
	if accountID == nil || *accountID == "" {
		result.Skipped++
		return
	}
	dueDate, err := plaid.ParseDueDate(dueDateStr)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("liability %s: %v", *accountID, err))
		return
	}
	if dueDate.IsZero() {
		result.Skipped++
		return
	}

	existing, err := s.bills.GetByProvenanceID(ctx, userID, *accountID)
	if err != nil && !errors.Is(err, bill.ErrBillNotFound) {
		result.Errors = append(result.Errors, fmt.Sprintf("liability %s: %v", *accountID, err))
		return
	}

	if existing == nil {
		notes := fmt.Sprintf("Automatically created from linked %s liability", category)
		_, err := s.bills.Create(ctx, bill.CreateParams{
			UserID:       userID,
			ProvenanceID: accountID,
			Name:         name,
			Amount:       amount,
			DueDate:      dueDate,
			Category:     &category,
			Status:       bill.StatusUnpaid,
			Notes:        &notes,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("liability %s: %v", *accountID, err))
			return
		}
		result.Created++
		return
	}

	// Update only when something actually moved.
	var params bill.UpdateParams
	changed := false
	if math.Abs(existing.Amount-amount) > amountEpsilon {
		params.Amount = &amount
		changed = true
	}
	if !sameDay(existing.DueDate, dueDate) {
		params.DueDate = &dueDate
		changed = true
	}
	if !changed {
		return
	}

	if _, err := s.bills.Update(ctx, existing.ID, params); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("liability %s: %v", *accountID, err))
		return
	}
	result.Updated++
}

func nameFor(names map[string]string, accountID *string, fallback string) string {
	if accountID != nil {
		if name, ok := names[*accountID]; ok && name != "" {
			return name + " Payment"
		}
	}
	return fallback + " Payment"
}

// firstAmount returns the first non-nil, non-zero amount, or 0.
func firstAmount(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil && *c != 0 {
			return *c
		}
	}
	return 0
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
