package plaidsync

import (
	"context"
	"fmt"
	"log"

	"billpay/internal/domain/account"
)

// AccountSyncResult contains the results of an account sync operation.
type AccountSyncResult struct {
	Found   int      `json:"found"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Stale   int      `json:"stale"` // local accounts absent upstream, left untouched
	Errors  []string `json:"errors,omitempty"`
}

// syncAccounts upserts every account reported upstream, keyed by the
// provider's account id. Local accounts missing from the response are never
// deleted here; they are only counted as stale.
func (s *Service) syncAccounts(ctx context.Context, userID int64, accessToken string) (*AccountSyncResult, error) {
	resp, err := s.client.AccountsGet(ctx, accessToken)
	if err != nil {
		return nil, upstreamError(err)
	}

	result := &AccountSyncResult{Found: len(resp.Accounts)}
	log.Printf("User %d: syncing %d accounts", userID, result.Found)

	seen := make(map[string]struct{}, len(resp.Accounts))
	for _, apiAccount := range resp.Accounts {
		seen[apiAccount.AccountID] = struct{}{}

		exists, err := s.accounts.Exists(ctx, apiAccount.AccountID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", apiAccount.AccountID, err))
			continue
		}

		currency := "USD"
		if apiAccount.Balances.ISOCurrencyCode != nil && *apiAccount.Balances.ISOCurrencyCode != "" {
			currency = *apiAccount.Balances.ISOCurrencyCode
		}

		params := account.UpsertParams{
			ID:               apiAccount.AccountID,
			UserID:           userID,
			Name:             apiAccount.Name,
			OfficialName:     apiAccount.OfficialName,
			AccountType:      apiAccount.Type,
			Subtype:          apiAccount.Subtype,
			Mask:             apiAccount.Mask,
			CurrentBalance:   apiAccount.Balances.Current,
			AvailableBalance: apiAccount.Balances.Available,
			Currency:         currency,
		}

		if _, err := s.accounts.Upsert(ctx, params); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", apiAccount.AccountID, err))
			continue
		}

		if exists {
			result.Updated++
		} else {
			result.Created++
		}
	}

	// Count local rows the upstream no longer reports.
	local, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("stale check: %v", err))
	} else {
		for _, acc := range local {
			if _, ok := seen[acc.ID]; !ok {
				result.Stale++
			}
		}
	}

	log.Printf("User %d: account sync done - created=%d updated=%d stale=%d errors=%d",
		userID, result.Created, result.Updated, result.Stale, len(result.Errors))

	return result, nil
}
