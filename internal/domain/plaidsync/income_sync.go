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
	"unicode"

	"billpay/internal/domain/income"
	"billpay/internal/domain/transaction"
)

// IncomeCandidate is a deposit the classifier judged to be income.
type IncomeCandidate struct {
	SourceKey string  // normalized grouping key
	Source    string  // display name
	Amount    float64 // positive magnitude
	Date      time.Time
}

// DepositClassifier decides whether a transaction looks like an income
// deposit. Swappable so smarter models can replace the keyword heuristic.
type DepositClassifier interface {
	ClassifyDeposit(tx *transaction.Transaction) (*IncomeCandidate, bool)
}

// KeywordDepositClassifier is the default heuristic: a credit of at least
// $200 whose description mentions a payroll-like keyword.
type KeywordDepositClassifier struct{}

const minIncomeDeposit = 200.00

var incomeKeywords = []string{"salary", "payroll", "deposit", "direct dep"}

func (KeywordDepositClassifier) ClassifyDeposit(tx *transaction.Transaction) (*IncomeCandidate, bool) {
	if !tx.IsInflow() {
		return nil, false
	}
	amount := math.Abs(tx.Amount)
	if amount < minIncomeDeposit {
		return nil, false
	}

	name := strings.ToLower(strings.TrimSpace(tx.Name))
	matched := false
	for _, kw := range incomeKeywords {
		if strings.Contains(name, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, false
	}

	return &IncomeCandidate{
		SourceKey: name,
		Source:    titleCase(name),
		Amount:    amount,
		Date:      tx.Date,
	}, true
}

// IncomeSyncResult contains the results of an income detection pass.
type IncomeSyncResult struct {
	Deposits int      `json:"deposits"` // classified deposits
	Sources  int      `json:"sources"`  // distinct income sources
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Errors   []string `json:"errors,omitempty"`
}

const incomeLookbackDays = 90

// syncIncome scans recently stored deposits through the classifier, groups
// them by source, and upserts one income row per source keyed by its
// provenance id. Amounts are averaged across the group; the date is the most
// recent deposit.
func (s *Service) syncIncome(ctx context.Context, userID int64) (*IncomeSyncResult, error) {
	since := time.Now().AddDate(0, 0, -incomeLookbackDays)
	txs, err := s.transactions.ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	groups := make(map[string][]*IncomeCandidate)
	for _, tx := range txs {
		if candidate, ok := s.classifier.ClassifyDeposit(tx); ok {
			groups[candidate.SourceKey] = append(groups[candidate.SourceKey], candidate)
		}
	}

	result := &IncomeSyncResult{Sources: len(groups)}
	for _, g := range groups {
		result.Deposits += len(g)
	}

	// Deterministic order keeps logs and tests stable.
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := s.upsertIncomeSource(ctx, userID, key, groups[key], result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("income source %q: %v", key, err))
		}
	}

	log.Printf("User %d: income sync done - deposits=%d sources=%d created=%d updated=%d errors=%d",
		userID, result.Deposits, result.Sources, result.Created, result.Updated, len(result.Errors))

	return result, nil
}

func (s *Service) upsertIncomeSource(ctx context.Context, userID int64, key string, deposits []*IncomeCandidate, result *IncomeSyncResult) error {
	var total float64
	latest := deposits[0].Date
	for _, d := range deposits {
		total += d.Amount
		if d.Date.After(latest) {
			latest = d.Date
		}
	}
	avg := math.Round(total/float64(len(deposits))*100) / 100

	existing, err := s.incomes.GetByProvenanceID(ctx, userID, key)
	if err != nil && !errors.Is(err, income.ErrIncomeNotFound) {
		return err
	}

	if existing == nil {
		notes := "Automatically detected from deposits"
		_, err := s.incomes.Create(ctx, income.CreateParams{
			UserID:       userID,
			ProvenanceID: &key,
			Source:       deposits[0].Source,
			GrossAmount:  avg,
			NetAmount:    &avg,
			Frequency:    "bi-weekly",
			Date:         latest,
			Notes:        &notes,
		})
		if err != nil {
			return err
		}
		result.Created++
		return nil
	}

	if _, err := s.incomes.Update(ctx, existing.ID, income.UpdateParams{
		GrossAmount: &avg,
		NetAmount:   &avg,
		Date:        &latest,
	}); err != nil {
		return err
	}
	result.Updated++
	return nil
}

// titleCase capitalizes the first letter of each word for display names.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
