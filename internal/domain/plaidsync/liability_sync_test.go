package plaidsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"billpay/internal/domain/bill"
	"billpay/internal/infrastructure/plaid"
)

func liabilitiesResponse() *plaid.LiabilitiesGetResponse {
	due := time.Now().AddDate(0, 0, 14).Format("2006-01-02")
	return &plaid.LiabilitiesGetResponse{
		Accounts: []plaid.Account{
			{AccountID: "acc-cc", Name: "Sapphire Card", Type: "credit"},
			{AccountID: "acc-mort", Name: "Home Loan", Type: "loan"},
		},
		Liabilities: plaid.Liabilities{
			Credit: []plaid.CreditLiability{{
				AccountID:            strptr("acc-cc"),
				MinimumPaymentAmount: f64ptr(35.00),
				LastStatementBalance: f64ptr(1200.00),
				NextPaymentDueDate:   &due,
			}},
			Student: []plaid.StudentLiability{{
				AccountID:            strptr("acc-student"),
				LoanName:             strptr("Federal Loan"),
				MinimumPaymentAmount: f64ptr(150.00),
				NextPaymentDueDate:   &due,
			}},
			Mortgage: []plaid.MortgageLiability{{
				AccountID:          strptr("acc-mort"),
				NextMonthlyPayment: f64ptr(1850.00),
				NextPaymentDueDate: &due,
			}},
		},
	}
}

func runLiabilitySync(t *testing.T, env *testEnv) *SyncSummary {
	t.Helper()
	summary, err := env.service.SyncAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}
	return summary
}

func TestSyncLiabilities_CreatesProvenanceTaggedBills(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	env.client.LiabilitiesGetFunc = func(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error) {
		return liabilitiesResponse(), nil
	}

	summary := runLiabilitySync(t, env)
	if summary.Liabilities == nil || summary.Liabilities.Created != 3 {
		t.Fatalf("liabilities = %+v, want 3 created", summary.Liabilities)
	}

	cc, err := env.bills.GetByProvenanceID(context.Background(), 1, "acc-cc")
	if err != nil {
		t.Fatalf("credit bill missing: %v", err)
	}
	if cc.Name != "Sapphire Card Payment" {
		t.Errorf("credit bill name = %q, want account name + Payment", cc.Name)
	}
	if cc.Amount != 35.00 {
		t.Errorf("credit bill amount = %.2f, want minimum payment 35.00", cc.Amount)
	}
	if !cc.IsProviderOwned() {
		t.Error("liability bill must carry a provenance id")
	}

	student, err := env.bills.GetByProvenanceID(context.Background(), 1, "acc-student")
	if err != nil {
		t.Fatalf("student bill missing: %v", err)
	}
	if student.Name != "Federal Loan Payment" {
		t.Errorf("student bill name = %q, want loan name + Payment", student.Name)
	}
}

func TestSyncLiabilities_Idempotent(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	env.client.LiabilitiesGetFunc = func(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error) {
		return liabilitiesResponse(), nil
	}

	runLiabilitySync(t, env)
	summary := runLiabilitySync(t, env)

	if summary.Liabilities.Created != 0 {
		t.Errorf("second sync created %d bills, want 0", summary.Liabilities.Created)
	}
	bills, _ := env.bills.ListByUserID(context.Background(), 1)
	if len(bills) != 3 {
		t.Errorf("stored bills = %d, want no duplicates", len(bills))
	}
}

func TestSyncLiabilities_EpsilonSuppressesNoiseUpdates(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	resp := liabilitiesResponse()
	env.client.LiabilitiesGetFunc = func(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error) {
		return resp, nil
	}
	runLiabilitySync(t, env)

	// Within a cent: no update.
	resp.Liabilities.Credit[0].MinimumPaymentAmount = f64ptr(35.005)
	summary := runLiabilitySync(t, env)
	if summary.Liabilities.Updated != 0 {
		t.Errorf("sub-cent change caused %d updates, want 0", summary.Liabilities.Updated)
	}

	// A real change updates in place.
	resp.Liabilities.Credit[0].MinimumPaymentAmount = f64ptr(40.00)
	summary = runLiabilitySync(t, env)
	if summary.Liabilities.Updated != 1 {
		t.Errorf("amount change caused %d updates, want 1", summary.Liabilities.Updated)
	}
	cc, _ := env.bills.GetByProvenanceID(context.Background(), 1, "acc-cc")
	if cc.Amount != 40.00 {
		t.Errorf("amount = %.2f, want 40.00", cc.Amount)
	}
}

func TestSyncLiabilities_SkipsMissingDueDate(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	resp := liabilitiesResponse()
	resp.Liabilities.Credit[0].NextPaymentDueDate = nil
	env.client.LiabilitiesGetFunc = func(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error) {
		return resp, nil
	}

	summary := runLiabilitySync(t, env)
	if summary.Liabilities.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (no due date, no bill)", summary.Liabilities.Skipped)
	}
	if _, err := env.bills.GetByProvenanceID(context.Background(), 1, "acc-cc"); !errors.Is(err, bill.ErrBillNotFound) {
		t.Errorf("bill without due date was created, want skipped")
	}
}

// wrappingBillRepo decorates lookups with error context, the way the SQL
// repository does. The sync must still recognize the not-found sentinel
// through the wrapping.
type wrappingBillRepo struct {
	bill.Repository
}

func (r wrappingBillRepo) GetByProvenanceID(ctx context.Context, userID int64, provenanceID string) (*bill.Bill, error) {
	b, err := r.Repository.GetByProvenanceID(ctx, userID, provenanceID)
	if err != nil {
		return b, fmt.Errorf("bill by provenance %s: %w", provenanceID, err)
	}
	return b, nil
}

func TestSyncLiabilities_WrappedNotFoundStillCreates(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	env.service.bills = wrappingBillRepo{env.bills}

	env.client.LiabilitiesGetFunc = func(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error) {
		return liabilitiesResponse(), nil
	}

	summary := runLiabilitySync(t, env)
	if summary.Liabilities == nil {
		t.Fatal("liabilities result missing")
	}
	if len(summary.Liabilities.Errors) != 0 {
		t.Fatalf("errors = %v, want wrapped not-found treated as absent", summary.Liabilities.Errors)
	}
	if summary.Liabilities.Created != 3 {
		t.Errorf("Created = %d, want 3", summary.Liabilities.Created)
	}
}

func TestSyncLiabilities_ManualBillsUntouched(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))

	manual, err := env.bills.Create(context.Background(), bill.CreateParams{
		UserID:  1,
		Name:    "Rent",
		Amount:  2000,
		DueDate: time.Now().AddDate(0, 0, 5),
	})
	if err != nil {
		t.Fatalf("test setup: %v", err)
	}

	env.client.LiabilitiesGetFunc = func(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error) {
		return liabilitiesResponse(), nil
	}
	runLiabilitySync(t, env)

	got, err := env.bills.GetByID(context.Background(), manual.ID)
	if err != nil {
		t.Fatalf("manual bill disappeared: %v", err)
	}
	if got.Amount != 2000 || got.IsProviderOwned() {
		t.Errorf("manual bill mutated by sync: %+v", got)
	}
}
