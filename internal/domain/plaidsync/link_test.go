package plaidsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"billpay/internal/domain/bill"
	"billpay/internal/domain/income"
	"billpay/internal/domain/transaction"
	"billpay/internal/domain/user"
	"billpay/internal/infrastructure/plaid"
	"billpay/internal/shared/config"
)

func TestCreateLinkToken_DisabledIntegration(t *testing.T) {
	cfg := sandboxConfig()
	cfg.Enabled = false
	env := newTestEnv(cfg, unlinkedUser(1))

	_, err := env.service.CreateLinkToken(context.Background(), 1)
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("CreateLinkToken() error = %v, want ErrCredentialsMissing", err)
	}
}

func TestCreateLinkToken_ProductionSecretSanityCheck(t *testing.T) {
	cfg := sandboxConfig()
	cfg.Environment = config.PlaidEnvProduction
	cfg.Secret = "short" // neither "production-" prefixed nor >= 40 chars
	env := newTestEnv(cfg, unlinkedUser(1))

	_, err := env.service.CreateLinkToken(context.Background(), 1)
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("CreateLinkToken() error = %v, want ErrCredentialsMissing", err)
	}
}

func TestCreateLinkToken_MovesFreshUserToPending(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	token, err := env.service.CreateLinkToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("CreateLinkToken() failed: %v", err)
	}
	if token == "" {
		t.Error("CreateLinkToken() returned empty token")
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LinkState != user.LinkStatePending {
		t.Errorf("LinkState = %q, want %q", u.LinkState, user.LinkStatePending)
	}
}

func TestCreateLinkToken_LinkedUserKeepsState(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	if _, err := env.service.CreateLinkToken(context.Background(), 1); err != nil {
		t.Fatalf("CreateLinkToken() failed: %v", err)
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LinkState != user.LinkStateLinked {
		t.Errorf("LinkState = %q, want linked to remain until exchange", u.LinkState)
	}
}

func TestCreateLinkToken_RetriesWithoutRejectedProducts(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	var requested [][]string
	env.client.LinkTokenCreateFunc = func(ctx context.Context, req plaid.LinkTokenCreateRequest) (*plaid.LinkTokenCreateResponse, error) {
		requested = append(requested, req.Products)
		if len(requested) == 1 {
			return nil, &plaid.APIError{
				StatusCode:   400,
				ErrorCode:    "INVALID_PRODUCT",
				ErrorMessage: `client is not authorized to access the following products: ["liabilities", "income"]`,
			}
		}
		return &plaid.LinkTokenCreateResponse{LinkToken: "link-retry-token"}, nil
	}

	token, err := env.service.CreateLinkToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("CreateLinkToken() failed: %v", err)
	}
	if token != "link-retry-token" {
		t.Errorf("token = %q, want retry token", token)
	}
	if len(requested) != 2 {
		t.Fatalf("upstream called %d times, want 2", len(requested))
	}
	for _, p := range requested[1] {
		if p == "liabilities" || p == "income" {
			t.Errorf("retry still requested rejected product %q", p)
		}
	}
}

func TestCreateLinkToken_AllProductsRejectedFallsBackToTransactions(t *testing.T) {
	cfg := sandboxConfig()
	cfg.Products = []string{"auth"}
	env := newTestEnv(cfg, unlinkedUser(1))

	var requested [][]string
	env.client.LinkTokenCreateFunc = func(ctx context.Context, req plaid.LinkTokenCreateRequest) (*plaid.LinkTokenCreateResponse, error) {
		requested = append(requested, req.Products)
		if len(requested) == 1 {
			return nil, &plaid.APIError{
				StatusCode:   400,
				ErrorCode:    "INVALID_PRODUCT",
				ErrorMessage: `client is not authorized to access the following products: ["auth"]`,
			}
		}
		return &plaid.LinkTokenCreateResponse{LinkToken: "tok"}, nil
	}

	if _, err := env.service.CreateLinkToken(context.Background(), 1); err != nil {
		t.Fatalf("CreateLinkToken() failed: %v", err)
	}
	if len(requested) != 2 || len(requested[1]) != 1 || requested[1][0] != "transactions" {
		t.Errorf("retry products = %v, want [transactions]", requested[1:])
	}
}

func TestCreateLinkToken_RetryFailureIsProductRejected(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	env.client.LinkTokenCreateFunc = func(ctx context.Context, req plaid.LinkTokenCreateRequest) (*plaid.LinkTokenCreateResponse, error) {
		return nil, &plaid.APIError{
			StatusCode:   400,
			ErrorCode:    "INVALID_PRODUCT",
			ErrorMessage: `client is not authorized to access the following products: ["transactions"]`,
		}
	}

	_, err := env.service.CreateLinkToken(context.Background(), 1)
	if !errors.Is(err, ErrProductRejected) {
		t.Errorf("CreateLinkToken() error = %v, want ErrProductRejected", err)
	}

	// A failed attempt must not leave the user stuck in pending.
	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LinkState != user.LinkStateNone {
		t.Errorf("LinkState = %q, want no_link after failure", u.LinkState)
	}
}

func TestCreateLinkToken_UpstreamErrorMapped(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	env.client.LinkTokenCreateFunc = func(ctx context.Context, req plaid.LinkTokenCreateRequest) (*plaid.LinkTokenCreateResponse, error) {
		return nil, &plaid.APIError{StatusCode: 500, ErrorCode: "INTERNAL_SERVER_ERROR"}
	}

	_, err := env.service.CreateLinkToken(context.Background(), 1)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("CreateLinkToken() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestCompleteLink_SealsTokenAndStoresLink(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	summary, err := env.service.CompleteLink(context.Background(), 1, "public-token")
	if err != nil {
		t.Fatalf("CompleteLink() failed: %v", err)
	}
	if summary == nil {
		t.Fatal("CompleteLink() returned nil summary")
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LinkState != user.LinkStateLinked {
		t.Errorf("LinkState = %q, want linked", u.LinkState)
	}
	if u.AccessToken == nil || *u.AccessToken != "sealed:access-token" {
		t.Errorf("stored token = %v, want sealed form, never plaintext", u.AccessToken)
	}
	if u.ItemID == nil || *u.ItemID != "item-1" {
		t.Errorf("stored item = %v, want item-1", u.ItemID)
	}
}

func TestCompleteLink_ExchangeFailureLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	env.client.ItemPublicTokenExchangeFunc = func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
		return nil, &plaid.APIError{StatusCode: 400, ErrorCode: "INVALID_PUBLIC_TOKEN"}
	}

	_, err := env.service.CompleteLink(context.Background(), 1, "bad-token")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("CompleteLink() error = %v, want ErrExchangeFailed", err)
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LinkState != user.LinkStateNone || u.AccessToken != nil {
		t.Errorf("exchange failure must not change stored link: state=%q token=%v", u.LinkState, u.AccessToken)
	}
}

func TestCompleteLink_EmptyPublicToken(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	_, err := env.service.CompleteLink(context.Background(), 1, "")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("CompleteLink() error = %v, want ErrExchangeFailed", err)
	}
}

func TestCompleteLink_SecondLinkOverwrites(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	env.client.ItemPublicTokenExchangeFunc = func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
		return &plaid.ExchangeResponse{AccessToken: "new-access-token", ItemID: "item-2"}, nil
	}

	if _, err := env.service.CompleteLink(context.Background(), 1, "public-token"); err != nil {
		t.Fatalf("CompleteLink() failed: %v", err)
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.ItemID == nil || *u.ItemID != "item-2" {
		t.Errorf("item = %v, want overwrite to item-2 (last write wins)", u.ItemID)
	}
	if u.AccessToken == nil || *u.AccessToken != "sealed:new-access-token" {
		t.Errorf("token = %v, want resealed new token", u.AccessToken)
	}
}

func TestCompleteLink_InitialSyncFailureDoesNotFailLink(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	env.client.AccountsGetFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
		return nil, &plaid.APIError{StatusCode: 500, ErrorCode: "INTERNAL_SERVER_ERROR"}
	}

	summary, err := env.service.CompleteLink(context.Background(), 1, "public-token")
	if err != nil {
		t.Fatalf("CompleteLink() failed although only the sync broke: %v", err)
	}
	if len(summary.Warnings) == 0 {
		t.Error("expected sync warnings in summary")
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LinkState != user.LinkStateLinked {
		t.Errorf("LinkState = %q, want linked despite sync failure", u.LinkState)
	}
}

func TestUnlink_ClearsLink(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	if err := env.service.Unlink(context.Background(), 1, false); err != nil {
		t.Fatalf("Unlink() failed: %v", err)
	}

	u, _ := env.users.GetByID(context.Background(), 1)
	if u.LinkState != user.LinkStateNone || u.AccessToken != nil || u.ItemID != nil {
		t.Errorf("unlink left residue: state=%q token=%v item=%v", u.LinkState, u.AccessToken, u.ItemID)
	}
}

func TestUnlink_NotLinked(t *testing.T) {
	env := newTestEnv(sandboxConfig(), unlinkedUser(1))

	if err := env.service.Unlink(context.Background(), 1, true); !errors.Is(err, ErrNotLinked) {
		t.Errorf("Unlink() error = %v, want ErrNotLinked", err)
	}
}

func TestUnlink_ConflictsWithRunningSync(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	release, acquired, err := env.locks.Acquire(context.Background(), 1)
	if err != nil || !acquired {
		t.Fatalf("test setup: could not pre-acquire lock")
	}
	defer release()

	if err := env.service.Unlink(context.Background(), 1, true); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("Unlink() error = %v, want ErrSyncInProgress", err)
	}
}

func TestUnlink_ResetPreservesManualRows(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	ctx := context.Background()

	// Provider-sourced rows: an account, a transaction, a liability bill and
	// a detected income, all carrying provenance.
	env.accounts.Upsert(ctx, accountUpsert("acc-1", 1))
	env.transactions.Upsert(ctx, transaction.UpsertParams{
		ID:        "tx-1",
		UserID:    1,
		AccountID: "acc-1",
		Name:      "Coffee Shop",
		Amount:    4.50,
		Date:      time.Now(),
	})
	env.bills.Create(ctx, bill.CreateParams{
		UserID:       1,
		ProvenanceID: strptr("acc-cc"),
		Name:         "Sapphire Card Payment",
		Amount:       35.00,
		DueDate:      time.Now().AddDate(0, 0, 14),
		Status:       bill.StatusUnpaid,
	})
	env.incomes.Create(ctx, income.CreateParams{
		UserID:       1,
		ProvenanceID: strptr("acme corp"),
		Source:       "Acme Corp",
		GrossAmount:  2500.00,
		Frequency:    "biweekly",
		Date:         time.Now(),
	})

	// Manually entered rows: no provenance, must survive the reset.
	rent, err := env.bills.Create(ctx, bill.CreateParams{
		UserID:  1,
		Name:    "Rent",
		Amount:  1400.00,
		DueDate: time.Now().AddDate(0, 0, 5),
		Status:  bill.StatusUnpaid,
	})
	if err != nil {
		t.Fatalf("test setup: manual bill: %v", err)
	}
	sideGig, err := env.incomes.Create(ctx, income.CreateParams{
		UserID:      1,
		Source:      "Freelance",
		GrossAmount: 600.00,
		Frequency:   "monthly",
		Date:        time.Now(),
	})
	if err != nil {
		t.Fatalf("test setup: manual income: %v", err)
	}

	if err := env.service.Unlink(ctx, 1, true); err != nil {
		t.Fatalf("Unlink() failed: %v", err)
	}

	if accs, _ := env.accounts.ListByUserID(ctx, 1); len(accs) != 0 {
		t.Errorf("accounts remaining = %d, want 0", len(accs))
	}
	if count, _ := env.transactions.CountByUserID(ctx, 1); count != 0 {
		t.Errorf("transactions remaining = %d, want 0", count)
	}

	bills, _ := env.bills.ListByUserID(ctx, 1)
	if len(bills) != 1 || bills[0].ID != rent.ID {
		t.Fatalf("bills remaining = %+v, want only the manual Rent bill", bills)
	}
	if bills[0].Name != "Rent" || bills[0].IsProviderOwned() {
		t.Errorf("surviving bill = %+v, want the untagged Rent bill", bills[0])
	}

	incomes, _ := env.incomes.ListByUserID(ctx, 1)
	if len(incomes) != 1 || incomes[0].ID != sideGig.ID {
		t.Fatalf("incomes remaining = %+v, want only the manual income", incomes)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	status, err := env.service.Status(context.Background(), 1)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if !status.Linked || status.State != user.LinkStateLinked {
		t.Errorf("Status() = %+v, want linked", status)
	}
	if !status.Enabled {
		t.Error("Status().Enabled = false, want true")
	}
}
