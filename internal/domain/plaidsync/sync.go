package plaidsync

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// SyncSummary aggregates the outcome of one full sync pass. Sub-syncs fail
// independently: a failure in one is recorded as a warning and the rest still
// run, except for a vault decryption failure which aborts everything.
type SyncSummary struct {
	UserID         int64                  `json:"userId"`
	Accounts       *AccountSyncResult     `json:"accounts,omitempty"`
	Transactions   *TransactionSyncResult `json:"transactions,omitempty"`
	Liabilities    *LiabilitySyncResult   `json:"liabilities,omitempty"`
	Income         *IncomeSyncResult      `json:"income,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	RelinkRequired bool                   `json:"relinkRequired,omitempty"`
}

func (s *SyncSummary) warn(stage string, err error) {
	s.Warnings = append(s.Warnings, fmt.Sprintf("%s: %v", stage, err))
}

// SyncAll runs every sub-sync for the user under their sync lock. Returns
// ErrSyncInProgress when another sync or unlink holds the lock, and
// ErrRelinkRequired when the stored token cannot be opened; otherwise the
// summary carries any partial failures as warnings.
func (s *Service) SyncAll(ctx context.Context, userID int64) (*SyncSummary, error) {
	summary := &SyncSummary{UserID: userID}

	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		return s.syncAll(ctx, userID, summary)
	})
	if err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Service) syncAll(ctx context.Context, userID int64, summary *SyncSummary) error {
	if !s.cfg.Enabled {
		return ErrCredentialsMissing
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	token, err := s.accessToken(u)
	if err != nil {
		if errors.Is(err, ErrRelinkRequired) {
			// A token sealed under a previous key can never be opened again;
			// skip every sub-sync and tell the user to relink.
			summary.RelinkRequired = true
			log.Printf("User %d: stored access token unreadable; relink required", userID)
			if s.notifier != nil {
				s.notifier.RelinkRequired(ctx, userID)
			}
		}
		return err
	}

	summary.Accounts, err = s.syncAccounts(ctx, userID, token)
	if err != nil {
		summary.warn("accounts", err)
	}

	summary.Transactions, err = s.syncTransactions(ctx, userID, token)
	if err != nil {
		summary.warn("transactions", err)
	}

	if s.cfg.ProductEnabled("liabilities") {
		summary.Liabilities, err = s.syncLiabilities(ctx, userID, token)
		if err != nil {
			summary.warn("liabilities", err)
		}
	}

	if s.cfg.ProductEnabled("income") {
		summary.Income, err = s.syncIncome(ctx, userID)
		if err != nil {
			summary.warn("income", err)
		}
	}

	if err := s.detectRecurringBills(ctx, userID); err != nil {
		summary.warn("recurring detection", err)
	}

	if err := s.users.TouchLastSynced(ctx, userID); err != nil {
		summary.warn("bookkeeping", err)
	}

	log.Printf("User %d: sync complete (%d warnings)", userID, len(summary.Warnings))
	if s.notifier != nil {
		s.notifier.SyncCompleted(ctx, userID, summary)
	}
	return nil
}

// SyncAccounts refreshes only the account list, under the user's sync lock.
func (s *Service) SyncAccounts(ctx context.Context, userID int64) (*AccountSyncResult, error) {
	var result *AccountSyncResult
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		token, err := s.tokenForUser(ctx, userID)
		if err != nil {
			return err
		}
		result, err = s.syncAccounts(ctx, userID, token)
		return err
	})
	return result, err
}

// SyncTransactions refreshes only transactions (plus recurring-bill
// detection), under the user's sync lock.
func (s *Service) SyncTransactions(ctx context.Context, userID int64) (*TransactionSyncResult, error) {
	var result *TransactionSyncResult
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		token, err := s.tokenForUser(ctx, userID)
		if err != nil {
			return err
		}
		result, err = s.syncTransactions(ctx, userID, token)
		if err != nil {
			return err
		}
		if err := s.detectRecurringBills(ctx, userID); err != nil {
			log.Printf("User %d: recurring detection failed: %v", userID, err)
		}
		return nil
	})
	return result, err
}

// SyncForItem finds the user owning an item and runs a transaction sync.
// Used by the webhook handler, which only knows the provider's item id.
func (s *Service) SyncForItem(ctx context.Context, itemID string) (*TransactionSyncResult, error) {
	u, err := s.users.GetByItemID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("no user for item %s: %w", itemID, err)
	}
	return s.SyncTransactions(ctx, u.ID)
}

func (s *Service) tokenForUser(ctx context.Context, userID int64) (string, error) {
	if !s.cfg.Enabled {
		return "", ErrCredentialsMissing
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	token, err := s.accessToken(u)
	if err != nil {
		if errors.Is(err, ErrRelinkRequired) && s.notifier != nil {
			s.notifier.RelinkRequired(ctx, userID)
		}
		return "", err
	}
	return token, nil
}
