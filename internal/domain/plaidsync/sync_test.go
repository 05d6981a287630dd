package plaidsync

import (
	"context"
	"errors"
	"testing"

	"billpay/internal/domain/user"
	"billpay/internal/infrastructure/plaid"
)

func strptr(s string) *string   { return &s }
func f64ptr(f float64) *float64 { return &f }

func twoAccountsResponse() *plaid.AccountsGetResponse {
	return &plaid.AccountsGetResponse{
		Accounts: []plaid.Account{
			{
				AccountID: "acc-1",
				Name:      "Checking",
				Type:      "depository",
				Subtype:   strptr("checking"),
				Balances:  plaid.Balances{Current: f64ptr(1500.25), Available: f64ptr(1400.00), ISOCurrencyCode: strptr("USD")},
			},
			{
				AccountID: "acc-2",
				Name:      "Credit Card",
				Type:      "credit",
				Balances:  plaid.Balances{Current: f64ptr(-320.10)},
			},
		},
	}
}

func TestSyncAll_HappyPath(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	env.client.AccountsGetFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
		if accessToken != "access-token" {
			t.Errorf("upstream called with token %q, want unsealed access-token", accessToken)
		}
		return twoAccountsResponse(), nil
	}

	summary, err := env.service.SyncAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}

	if summary.Accounts == nil || summary.Accounts.Created != 2 {
		t.Errorf("accounts = %+v, want 2 created", summary.Accounts)
	}
	if len(summary.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", summary.Warnings)
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LastSyncedAt == nil {
		t.Error("LastSyncedAt not recorded")
	}
	if env.notifier.syncCompleted != 1 {
		t.Errorf("syncCompleted notifications = %d, want 1", env.notifier.syncCompleted)
	}
}

func TestSyncAll_Idempotent(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	env.client.AccountsGetFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
		return twoAccountsResponse(), nil
	}

	if _, err := env.service.SyncAll(context.Background(), 1); err != nil {
		t.Fatalf("first SyncAll() failed: %v", err)
	}
	summary, err := env.service.SyncAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("second SyncAll() failed: %v", err)
	}

	if summary.Accounts.Created != 0 || summary.Accounts.Updated != 2 {
		t.Errorf("second sync created=%d updated=%d, want 0 created, 2 updated",
			summary.Accounts.Created, summary.Accounts.Updated)
	}
	if len(env.accounts.accounts) != 2 {
		t.Errorf("stored accounts = %d, want no duplicates", len(env.accounts.accounts))
	}
}

func TestSyncAll_NotLinked(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	_, err := env.service.SyncAll(context.Background(), 1)
	if !errors.Is(err, ErrNotLinked) {
		t.Errorf("SyncAll() error = %v, want ErrNotLinked", err)
	}
}

func TestSyncAll_DecryptFailureAbortsAndFlagsRelink(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	env.vault.failDecrypt = true

	upstreamCalled := false
	env.client.AccountsGetFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
		upstreamCalled = true
		return twoAccountsResponse(), nil
	}

	summary, err := env.service.SyncAll(context.Background(), 1)
	if !errors.Is(err, ErrRelinkRequired) {
		t.Fatalf("SyncAll() error = %v, want ErrRelinkRequired", err)
	}
	if !summary.RelinkRequired {
		t.Error("summary.RelinkRequired = false, want true")
	}
	if upstreamCalled {
		t.Error("sub-syncs must not run after a decrypt failure")
	}
	if env.notifier.relinkRequired != 1 {
		t.Errorf("relinkRequired notifications = %d, want 1", env.notifier.relinkRequired)
	}
}

func TestSyncAll_PartialFailureBecomesWarning(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	env.client.AccountsGetFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
		return nil, &plaid.APIError{StatusCode: 500, ErrorCode: "INTERNAL_SERVER_ERROR"}
	}

	summary, err := env.service.SyncAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncAll() failed outright, want partial success: %v", err)
	}
	if len(summary.Warnings) == 0 {
		t.Fatal("expected an accounts warning")
	}
	// The other sub-syncs still ran.
	if summary.Transactions == nil {
		t.Error("transaction sync skipped, want it to run despite accounts failure")
	}
}

func TestSyncAll_ConcurrentAttemptRejected(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	release, acquired, _ := env.locks.Acquire(context.Background(), 1)
	if !acquired {
		t.Fatal("test setup: could not pre-acquire lock")
	}
	defer release()

	_, err := env.service.SyncAll(context.Background(), 1)
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("SyncAll() error = %v, want ErrSyncInProgress", err)
	}
}

func TestSyncAll_LockReleasedAfterRun(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	if _, err := env.service.SyncAll(context.Background(), 1); err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}
	// Lock must be free again.
	if _, err := env.service.SyncAll(context.Background(), 1); err != nil {
		t.Errorf("second SyncAll() failed, lock not released: %v", err)
	}
}

func TestSyncForItem_FindsOwningUser(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(7))

	if _, err := env.service.SyncForItem(context.Background(), "item-1"); err != nil {
		t.Fatalf("SyncForItem() failed: %v", err)
	}
}

func TestSyncForItem_UnknownItem(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(7))

	_, err := env.service.SyncForItem(context.Background(), "item-unknown")
	if !errors.Is(err, user.ErrUserNotFound) {
		t.Errorf("SyncForItem() error = %v, want wrapped ErrUserNotFound", err)
	}
}

func TestSyncAccounts_CountsStaleAccounts(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	// A previously synced account the upstream no longer reports.
	env.accounts.Upsert(context.Background(), accountUpsert("acc-old", 1))

	env.client.AccountsGetFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
		return twoAccountsResponse(), nil
	}

	result, err := env.service.SyncAccounts(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncAccounts() failed: %v", err)
	}
	if result.Stale != 1 {
		t.Errorf("Stale = %d, want 1", result.Stale)
	}
	// The stale row is kept, not deleted.
	if _, err := env.accounts.GetByID(context.Background(), "acc-old"); err != nil {
		t.Errorf("stale account deleted, want it kept: %v", err)
	}
}
