package plaidsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"billpay/internal/domain/user"
	"billpay/internal/infrastructure/plaid"
	"billpay/internal/shared/config"
)

// LinkStatus is the read-only view of a user's link returned by the status
// endpoint. The sealed token is never part of it.
type LinkStatus struct {
	Enabled      bool           `json:"enabled"`
	State        user.LinkState `json:"state"`
	Linked       bool           `json:"linked"`
	ItemID       *string        `json:"itemId,omitempty"`
	LastSyncedAt *string        `json:"lastSyncedAt,omitempty"`
}

// CreateLinkToken requests a link token for the user and moves a fresh user
// to link_pending. The product list is sanitized first; if the upstream still
// rejects products, the call is retried once with the rejected products
// removed (falling back to transactions only).
func (s *Service) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	if !s.cfg.Enabled {
		return "", ErrCredentialsMissing
	}
	if !s.cfg.SecretLooksValid() {
		log.Printf("User %d: production secret failed sanity check (%s); refusing to create link token",
			userID, config.MaskSecret(s.cfg.Secret))
		return "", fmt.Errorf("%w: production secret looks misconfigured", ErrCredentialsMissing)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	products := s.cfg.SanitizedProducts()
	token, err := s.createLinkToken(ctx, userID, products)
	if err != nil {
		var apiErr *plaid.APIError
		if errors.As(err, &apiErr) && apiErr.IsProductRejection() {
			retryProducts := removeProducts(products, apiErr.RejectedProducts())
			if len(retryProducts) == 0 {
				retryProducts = []string{"transactions"}
			}
			log.Printf("User %d: provider rejected products %v; retrying with %v",
				userID, apiErr.RejectedProducts(), retryProducts)

			token, err = s.createLinkToken(ctx, userID, retryProducts)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrProductRejected, err)
			}
		} else {
			return "", upstreamError(err)
		}
	}

	// A user without a link enters link_pending; a linked user re-linking
	// keeps their current state until the exchange completes.
	if u.LinkState == user.LinkStateNone {
		if err := s.users.SetLinkState(ctx, userID, user.LinkStatePending); err != nil {
			return "", fmt.Errorf("failed to mark link pending: %w", err)
		}
	}

	return token, nil
}

func (s *Service) createLinkToken(ctx context.Context, userID int64, products []string) (string, error) {
	resp, err := s.client.LinkTokenCreate(ctx, plaid.LinkTokenCreateRequest{
		ClientName:   s.clientName,
		ClientUserID: strconv.FormatInt(userID, 10),
		Products:     products,
		CountryCodes: s.cfg.CountryCodes,
		RedirectURI:  s.cfg.RedirectURI,
		Webhook:      s.webhookURL,
	})
	if err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

// CompleteLink exchanges a public token, seals the resulting access token,
// stores it together with the item id, and runs the initial sync. A failed
// exchange leaves the stored link and state untouched; a failed initial sync
// does NOT fail the link, it is reported in the returned summary.
func (s *Service) CompleteLink(ctx context.Context, userID int64, publicToken string) (*SyncSummary, error) {
	if !s.cfg.Enabled {
		return nil, ErrCredentialsMissing
	}
	if publicToken == "" {
		return nil, fmt.Errorf("%w: public token is required", ErrExchangeFailed)
	}

	exchange, err := s.client.ItemPublicTokenExchange(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if exchange.AccessToken == "" || exchange.ItemID == "" {
		return nil, fmt.Errorf("%w: provider returned an empty token or item id", ErrExchangeFailed)
	}

	sealed, err := s.vault.Encrypt(exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to seal access token: %v", ErrExchangeFailed, err)
	}

	// Last write wins: a second exchange for an already linked user simply
	// replaces the stored link.
	if err := s.users.SetLink(ctx, userID, sealed, exchange.ItemID); err != nil {
		return nil, fmt.Errorf("failed to store link: %w", err)
	}

	log.Printf("User %d: link established (item %s)", userID, exchange.ItemID)

	summary, err := s.SyncAll(ctx, userID)
	if err != nil {
		// The link itself succeeded; surface the sync problem as a warning.
		if summary == nil {
			summary = &SyncSummary{UserID: userID}
		}
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("initial sync failed: %v", err))
		log.Printf("User %d: initial sync after link failed: %v", userID, err)
	}

	return summary, nil
}

// Unlink severs the institution link inside the user's sync lock. When reset
// is true every provider-sourced row is deleted in the same transaction;
// manually entered bills and incomes always survive.
func (s *Service) Unlink(ctx context.Context, userID int64, reset bool) error {
	return s.withUserLock(ctx, userID, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if !u.HasLink() && u.LinkState == user.LinkStateNone {
			return ErrNotLinked
		}

		if err := s.users.Unlink(ctx, userID, reset); err != nil {
			return fmt.Errorf("failed to unlink: %w", err)
		}

		log.Printf("User %d: unlinked (reset=%t)", userID, reset)
		return nil
	})
}

// Status returns the user's link state without touching the upstream.
func (s *Service) Status(ctx context.Context, userID int64) (*LinkStatus, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	status := &LinkStatus{
		Enabled: s.cfg.Enabled,
		State:   u.LinkState,
		Linked:  u.LinkState == user.LinkStateLinked && u.HasLink(),
		ItemID:  u.ItemID,
	}
	if u.LastSyncedAt != nil {
		formatted := u.LastSyncedAt.Format("2006-01-02T15:04:05Z07:00")
		status.LastSyncedAt = &formatted
	}
	return status, nil
}

func removeProducts(products, rejected []string) []string {
	if len(rejected) == 0 {
		return products
	}
	drop := make(map[string]struct{}, len(rejected))
	for _, p := range rejected {
		drop[p] = struct{}{}
	}

	var kept []string
	for _, p := range products {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	return kept
}
