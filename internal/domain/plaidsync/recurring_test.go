package plaidsync

import (
	"context"
	"testing"
	"time"

	"billpay/internal/domain/bill"
	"billpay/internal/domain/transaction"
)

func debitTx(id, name string, amount float64, daysAgo int) transaction.UpsertParams {
	return transaction.UpsertParams{
		ID:        id,
		UserID:    1,
		AccountID: "acc-1",
		Name:      name,
		Amount:    amount, // positive = outflow
		Date:      time.Now().AddDate(0, 0, -daysAgo),
	}
}

func TestDetectRecurringBills_RepeatedDebitsCreateOneBill(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	ctx := context.Background()

	env.transactions.Upsert(ctx, debitTx("tx-1", "Netflix", 15.99, 60))
	env.transactions.Upsert(ctx, debitTx("tx-2", "NETFLIX", 15.99, 30))
	env.transactions.Upsert(ctx, debitTx("tx-3", "netflix", 15.99, 1))
	env.transactions.Upsert(ctx, debitTx("tx-4", "One-off Store", 80.00, 10))

	if _, err := env.service.SyncAll(ctx, 1); err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}

	bills, _ := env.bills.ListByUserID(ctx, 1)
	if len(bills) != 1 {
		t.Fatalf("bills = %d, want exactly one per recurring merchant", len(bills))
	}
	b := bills[0]
	if b.Name != "Netflix" {
		t.Errorf("bill name = %q, want Netflix", b.Name)
	}
	if b.Amount != 15.99 {
		t.Errorf("bill amount = %.2f, want averaged 15.99", b.Amount)
	}
	if b.IsProviderOwned() {
		t.Error("heuristic bill must NOT carry a provenance id: the user owns it")
	}

	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		tx, _ := env.transactions.GetByID(ctx, id)
		if !tx.IsRecurring {
			t.Errorf("transaction %s not marked recurring", id)
		}
	}
	oneOff, _ := env.transactions.GetByID(ctx, "tx-4")
	if oneOff.IsRecurring {
		t.Error("single occurrence wrongly marked recurring")
	}
}

func TestDetectRecurringBills_SecondRunDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	ctx := context.Background()

	env.transactions.Upsert(ctx, debitTx("tx-1", "Gym Membership", 45, 40))
	env.transactions.Upsert(ctx, debitTx("tx-2", "Gym Membership", 45, 10))

	if _, err := env.service.SyncAll(ctx, 1); err != nil {
		t.Fatalf("first SyncAll() failed: %v", err)
	}
	if _, err := env.service.SyncAll(ctx, 1); err != nil {
		t.Fatalf("second SyncAll() failed: %v", err)
	}

	bills, _ := env.bills.ListByUserID(ctx, 1)
	if len(bills) != 1 {
		t.Errorf("bills = %d, want 1 after repeated detection", len(bills))
	}
}

func TestDetectRecurringBills_InflowsIgnored(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	ctx := context.Background()

	env.transactions.Upsert(ctx, debitTx("tx-1", "Refund Co", -20, 30))
	env.transactions.Upsert(ctx, debitTx("tx-2", "Refund Co", -20, 5))

	if _, err := env.service.SyncAll(ctx, 1); err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}

	bills, _ := env.bills.ListByUserID(ctx, 1)
	if len(bills) != 0 {
		t.Errorf("bills = %d, inflows must not become bills", len(bills))
	}
}

func TestDetectRecurringBills_RespectsExistingBill(t *testing.T) {
	env := newTestEnv(sandboxConfig(), linkedUser(1))
	ctx := context.Background()

	existing, err := env.bills.Create(ctx, bill.CreateParams{
		UserID:  1,
		Name:    "Netflix",
		Amount:  20.00, // user-adjusted amount
		DueDate: time.Now().AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("test setup: %v", err)
	}

	env.transactions.Upsert(ctx, debitTx("tx-1", "Netflix", 15.99, 30))
	env.transactions.Upsert(ctx, debitTx("tx-2", "Netflix", 15.99, 1))

	if _, err := env.service.SyncAll(ctx, 1); err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}

	got, _ := env.bills.GetByID(ctx, existing.ID)
	if got.Amount != 20.00 {
		t.Errorf("existing bill amount changed to %.2f, want untouched 20.00", got.Amount)
	}
	bills, _ := env.bills.ListByUserID(ctx, 1)
	if len(bills) != 1 {
		t.Errorf("bills = %d, want no new bill next to the existing one", len(bills))
	}
}
