package ledger_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/ledger"
	"github.com/regionspay/invest-engine/internal/model"
	"github.com/regionspay/invest-engine/internal/store"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func seed(t *testing.T) (*store.MemoryStore, *model.Wallet, *model.InvestmentPosition) {
	t.Helper()
	ms := store.NewMemoryStore()

	w := &model.Wallet{
		ID: "w1", OwnerID: "u1", Currency: "USD",
		Balance: d(1000), LedgerBalance: d(1000),
	}
	if err := ms.InsertWallet(context.Background(), w); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	p := &model.InvestmentPosition{
		ID: "p1", OwnerID: "u1", PlanID: "plan1", WalletID: "w1",
		Currency: "USD", Amount: d(500), CurrentValue: d(500),
		Status: model.StatusActive,
	}
	return ms, w, p
}

func TestNewReference_UniqueAndPrefixed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := ledger.NewReference()
		if !strings.HasPrefix(ref, "TXN-") {
			t.Fatalf("reference %q missing prefix", ref)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = true
	}
}

func TestRecord_BoundaryCrossingCreatesPair(t *testing.T) {
	ms, w, p := seed(t)
	ctx := context.Background()

	tx, err := ms.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	records, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.WalletParticipant(w),
		Beneficiary: ledger.PositionParticipant(p),
		Amount:      d(100),
		Rate:        d(1),
		Kind:        model.TxnInvestmentFunding,
		Description: "fund position",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records for wallet->investment, got %d", len(records))
	}
	if records[0].Reference != records[1].Reference {
		t.Errorf("pair should share a reference: %q vs %q",
			records[0].Reference, records[1].Reference)
	}
	if records[0].ID == records[1].ID {
		t.Error("pair must have distinct ids")
	}

	// One id in each holding's history.
	if len(w.TransactionIDs) != 1 || w.TransactionIDs[0] != records[0].ID {
		t.Errorf("wallet history = %v, want [%s]", w.TransactionIDs, records[0].ID)
	}
	if len(p.TransactionIDs) != 1 || p.TransactionIDs[0] != records[1].ID {
		t.Errorf("position history = %v, want [%s]", p.TransactionIDs, records[1].ID)
	}

	for _, rec := range records {
		if rec.Status != model.TxnStatusCompleted {
			t.Errorf("status = %q, want completed", rec.Status)
		}
		if rec.CompletedAt.IsZero() || time.Since(rec.CompletedAt) > time.Minute {
			t.Errorf("completed_at not set at creation: %v", rec.CompletedAt)
		}
	}
}

func TestRecord_SingleRecordForNonBoundaryMovement(t *testing.T) {
	ms, _, p := seed(t)
	ctx := context.Background()

	tx, err := ms.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	records, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.PositionParticipant(p),
		Beneficiary: ledger.ExternalParticipant(model.Destination{Kind: model.HoldingAccount, ID: "acct9"}, "USD"),
		Amount:      d(500),
		Rate:        d(1),
		Kind:        model.TxnRedemption,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record for investment->account, got %d", len(records))
	}
	if len(p.TransactionIDs) != 1 {
		t.Errorf("position should carry the single record id, got %v", p.TransactionIDs)
	}
}

func TestRecord_SuppliedReferenceKept(t *testing.T) {
	ms, w, p := seed(t)
	ctx := context.Background()

	tx, _ := ms.Begin(ctx)
	defer tx.Rollback(ctx)

	records, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.PositionParticipant(p),
		Beneficiary: ledger.WalletParticipant(w),
		Amount:      d(50),
		Rate:        d(1),
		Kind:        model.TxnWithdrawal,
		Reference:   "TXN-FIXED",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	for _, rec := range records {
		if rec.Reference != "TXN-FIXED" {
			t.Errorf("reference = %q, want TXN-FIXED", rec.Reference)
		}
	}
}

func TestRecord_RollbackLeavesNoTrace(t *testing.T) {
	ms, w, p := seed(t)
	ctx := context.Background()

	tx, _ := ms.Begin(ctx)
	if _, err := ledger.Record(ctx, tx, ledger.Movement{
		Source:      ledger.WalletParticipant(w),
		Beneficiary: ledger.PositionParticipant(p),
		Amount:      d(100),
		Rate:        d(1),
		Kind:        model.TxnInvestmentFunding,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	txns, err := ms.LedgerTransactionsByHolding(ctx, "w1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("rolled-back movement left %d ledger records", len(txns))
	}
}
