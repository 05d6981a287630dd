package plaidsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"billpay/internal/domain/transaction"
	"billpay/internal/infrastructure/plaid"
)

const transactionFetchCount = 500

// TransactionSyncResult contains the results of a transaction sync operation.
type TransactionSyncResult struct {
	Found   int `json:"found"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"` // transactions for accounts we don't know
	// NotReady means the upstream has not finished preparing transaction
	// data for a fresh link yet; retry in a few seconds.
	NotReady bool     `json:"notReady,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// syncTransactions fetches the recent transaction window and upserts each row
// by its provider transaction id. A pending transaction that later posts
// settles in place; rows are never duplicated.
func (s *Service) syncTransactions(ctx context.Context, userID int64, accessToken string) (*TransactionSyncResult, error) {
	days := s.cfg.TransactionWindowDays
	if days <= 0 {
		days = 30
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	resp, err := s.client.TransactionsGet(ctx, accessToken,
		start.Format("2006-01-02"), end.Format("2006-01-02"), transactionFetchCount)
	if err != nil {
		var apiErr *plaid.APIError
		if errors.As(err, &apiErr) && apiErr.ProductNotReady() {
			// Common right after linking: data is still being prepared.
			log.Printf("User %d: transactions not ready yet, retry shortly", userID)
			return &TransactionSyncResult{NotReady: true}, nil
		}
		return nil, upstreamError(err)
	}

	result := &TransactionSyncResult{Found: len(resp.Transactions)}
	log.Printf("User %d: syncing %d transactions (%s window)", userID, result.Found, start.Format("2006-01-02"))

	// Accounts must exist before their transactions; anything referencing an
	// unknown account is skipped, not an error.
	knownAccounts := make(map[string]struct{})
	local, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user accounts: %w", err)
	}
	for _, acc := range local {
		knownAccounts[acc.ID] = struct{}{}
	}

	for _, apiTx := range resp.Transactions {
		if _, ok := knownAccounts[apiTx.AccountID]; !ok {
			result.Skipped++
			continue
		}

		if err := s.upsertTransaction(ctx, userID, &apiTx, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("transaction %s: %v", apiTx.TransactionID, err))
		}
	}

	log.Printf("User %d: transaction sync done - found=%d created=%d updated=%d skipped=%d errors=%d",
		userID, result.Found, result.Created, result.Updated, result.Skipped, len(result.Errors))

	return result, nil
}

func (s *Service) upsertTransaction(ctx context.Context, userID int64, apiTx *plaid.Transaction, result *TransactionSyncResult) error {
	date, err := apiTx.GetDate()
	if err != nil {
		return err
	}

	existing, err := s.transactions.GetByID(ctx, apiTx.TransactionID)
	if err != nil && !errors.Is(err, transaction.ErrTransactionNotFound) {
		return fmt.Errorf("failed to check existing transaction: %w", err)
	}

	params := transaction.UpsertParams{
		ID:           apiTx.TransactionID,
		UserID:       userID,
		AccountID:    apiTx.AccountID,
		Name:         apiTx.Name,
		MerchantName: apiTx.MerchantName,
		Amount:       apiTx.Amount,
		Date:         date,
		Pending:      apiTx.Pending,
	}
	if apiTx.PersonalFinanceCategory != nil && apiTx.PersonalFinanceCategory.Primary != "" {
		params.Category = &apiTx.PersonalFinanceCategory.Primary
	}
	if apiTx.PaymentChannel != "" {
		params.PaymentChannel = &apiTx.PaymentChannel
	}

	if _, err := s.transactions.Upsert(ctx, params); err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}

	if existing == nil {
		result.Created++
	} else {
		result.Updated++
	}
	return nil
}
