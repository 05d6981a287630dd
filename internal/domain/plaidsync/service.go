// Package plaidsync owns the institution link lifecycle and the data sync
// pipeline: link token issuance, public token exchange, account/transaction/
// liability/income sync, and unlink.
package plaidsync

import (
	"context"
	"errors"
	"fmt"

	"billpay/internal/domain/account"
	"billpay/internal/domain/bill"
	"billpay/internal/domain/income"
	"billpay/internal/domain/transaction"
	"billpay/internal/domain/user"
	"billpay/internal/infrastructure/plaid"
	"billpay/internal/shared/config"
)

// Vault seals and opens access tokens. The plaintext token exists only inside
// this package: it is decrypted immediately before an upstream call and never
// stored or returned.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Locker serializes sync and unlink work per user. Acquire is non-blocking:
// acquired=false means another session holds the lock.
type Locker interface {
	Acquire(ctx context.Context, userID int64) (release func(), acquired bool, err error)
}

// Notifier delivers push notifications for sync outcomes. Optional; a nil
// Notifier disables notifications. Implementations must be best-effort and
// never fail the sync.
type Notifier interface {
	SyncCompleted(ctx context.Context, userID int64, summary *SyncSummary)
	RelinkRequired(ctx context.Context, userID int64)
}

// Service implements the link and sync workflow.
type Service struct {
	cfg          config.PlaidConfig
	client       plaid.ClientInterface
	vault        Vault
	locks        Locker
	users        user.Repository
	accounts     account.Repository
	transactions transaction.Repository
	bills        bill.Repository
	incomes      income.Repository
	notifier     Notifier
	classifier   DepositClassifier

	clientName string
	webhookURL string
}

// NewService creates the link/sync service. notifier may be nil.
func NewService(
	cfg config.PlaidConfig,
	client plaid.ClientInterface,
	vault Vault,
	locks Locker,
	users user.Repository,
	accounts account.Repository,
	transactions transaction.Repository,
	bills bill.Repository,
	incomes income.Repository,
	notifier Notifier,
) *Service {
	return &Service{
		cfg:          cfg,
		client:       client,
		vault:        vault,
		locks:        locks,
		users:        users,
		accounts:     accounts,
		transactions: transactions,
		bills:        bills,
		incomes:      incomes,
		notifier:     notifier,
		classifier:   KeywordDepositClassifier{},
		clientName:   "BillPay",
	}
}

// SetDepositClassifier replaces the default income deposit classifier.
func (s *Service) SetDepositClassifier(c DepositClassifier) {
	if c != nil {
		s.classifier = c
	}
}

// SetClientName sets the application name shown inside the Link widget.
func (s *Service) SetClientName(name string) {
	if name != "" {
		s.clientName = name
	}
}

// SetWebhookURL sets the webhook URL registered with new link tokens.
func (s *Service) SetWebhookURL(url string) {
	s.webhookURL = url
}

// Enabled reports whether the aggregation integration is configured.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// withUserLock runs fn while holding the user's sync lock.
func (s *Service) withUserLock(ctx context.Context, userID int64, fn func(context.Context) error) error {
	release, acquired, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		return ErrSyncInProgress
	}
	defer release()

	return fn(ctx)
}

// accessToken opens the user's sealed access token. Any decryption failure
// means the key changed since the token was sealed; that is a relink, not a
// retry.
func (s *Service) accessToken(u *user.User) (string, error) {
	if !u.HasLink() {
		return "", ErrNotLinked
	}
	token, err := s.vault.Decrypt(*u.AccessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRelinkRequired, err)
	}
	if token == "" {
		return "", ErrRelinkRequired
	}
	return token, nil
}

// upstreamError maps a client error onto the workflow taxonomy, preserving
// the underlying *plaid.APIError for errors.As.
func upstreamError(err error) error {
	var apiErr *plaid.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, apiErr.Error())
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
