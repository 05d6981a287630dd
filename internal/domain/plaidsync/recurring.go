package plaidsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"billpay/internal/domain/bill"
	"billpay/internal/domain/transaction"
)

const (
	recurringLookbackDays = 90
	recurringMinHits      = 2
)

// detectRecurringBills scans recent debits for repeated merchant names. Two
// or more same-named debits mark those transactions recurring and, if no bill
// with that name exists yet, create one from the pattern. Heuristic bills
// carry no provenance id: the user owns them, they are freely editable, and
// they survive unlink.
func (s *Service) detectRecurringBills(ctx context.Context, userID int64) error {
	since := time.Now().AddDate(0, 0, -recurringLookbackDays)
	txs, err := s.transactions.ListByUserSince(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	byName := make(map[string][]*transaction.Transaction)
	for _, tx := range txs {
		if tx.IsInflow() {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(tx.Name))
		if name == "" {
			continue
		}
		byName[name] = append(byName[name], tx)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	detected := 0
	for _, name := range names {
		group := byName[name]
		if len(group) < recurringMinHits {
			continue
		}

		ids := make([]string, 0, len(group))
		for _, tx := range group {
			if !tx.IsRecurring {
				ids = append(ids, tx.ID)
			}
		}
		if len(ids) > 0 {
			if err := s.transactions.MarkRecurring(ctx, ids); err != nil {
				return fmt.Errorf("failed to mark recurring transactions: %w", err)
			}
		}

		if err := s.createRecurringBill(ctx, userID, name, group); err != nil {
			return err
		}
		detected++
	}

	if detected > 0 {
		log.Printf("User %d: detected %d recurring payment patterns", userID, detected)
	}
	return nil
}

// createRecurringBill creates a heuristic bill for a recurring pattern unless
// one with the same name already exists (at most one bill per merchant name).
func (s *Service) createRecurringBill(ctx context.Context, userID int64, name string, group []*transaction.Transaction) error {
	_, err := s.bills.FindByName(ctx, userID, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, bill.ErrBillNotFound) {
		return fmt.Errorf("failed to look up bill %q: %w", name, err)
	}

	var total float64
	latest := group[0].Date
	var category *string
	for _, tx := range group {
		total += math.Abs(tx.Amount)
		if tx.Date.After(latest) {
			latest = tx.Date
		}
		if category == nil && tx.Category != nil {
			category = tx.Category
		}
	}
	avg := math.Round(total/float64(len(group))*100) / 100

	status := bill.StatusUnpaid
	if !latest.After(time.Now()) {
		status = bill.StatusPaid
	}

	notes := "Automatically detected from recurring transactions"
	_, err = s.bills.Create(ctx, bill.CreateParams{
		UserID:    userID,
		Name:      titleCase(name),
		Amount:    avg,
		DueDate:   latest,
		Frequency: "monthly",
		Category:  category,
		Status:    status,
		Notes:     &notes,
	})
	if err != nil {
		return fmt.Errorf("failed to create recurring bill %q: %w", name, err)
	}
	return nil
}
