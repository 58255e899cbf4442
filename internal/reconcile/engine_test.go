package reconcile

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
)

// mockLedger backs both the account store and the balance computation so
// that written adjustments immediately affect subsequent balance reads.
type mockLedger struct {
	account domain.Account
	txs     []domain.TransactionEvent
}

func (m *mockLedger) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if accountID != m.account.ID {
		return nil, domain.ErrAccountNotFound
	}
	a := m.account
	return &a, nil
}

func (m *mockLedger) SetReconciledAt(ctx context.Context, accountID string, ts time.Time) error {
	t := ts
	m.account.LastReconciledAt = &t
	return nil
}

func (m *mockLedger) CreateAdjustment(ctx context.Context, tx domain.TransactionEvent) error {
	m.txs = append(m.txs, tx)
	return nil
}

func (m *mockLedger) AccountBalance(ctx context.Context, account domain.Account, asOf civil.Date) (float64, error) {
	balance := account.OpeningBalance.Amount
	for _, tx := range m.txs {
		if tx.AccountID == account.ID && !asOf.Before(tx.Date) {
			balance += tx.BaseAmount.Amount
		}
	}
	return balance, nil
}

func newTestEngine(opening float64) (*Engine, *mockLedger) {
	ledger := &mockLedger{account: domain.Account{
		ID:             "acc-1",
		WorkspaceID:    "ws-1",
		BaseCurrency:   "USD",
		OpeningBalance: domain.Money{Amount: opening, Currency: "USD"},
	}}
	return NewEngine(ledger, ledger, ledger), ledger
}

func TestReconcileCreatesIncomeAdjustment(t *testing.T) {
	engine, ledger := newTestEngine(950)

	res, err := engine.Reconcile(context.Background(), "acc-1", 1000)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if !res.AdjustmentCreated {
		t.Error("expected an adjustment to be created")
	}
	if res.Delta != 50 {
		t.Errorf("delta = %v, want 50", res.Delta)
	}
	if len(ledger.txs) != 1 {
		t.Fatalf("got %d adjustments, want 1", len(ledger.txs))
	}
	adj := ledger.txs[0]
	if adj.Type != domain.TransactionIncome {
		t.Errorf("adjustment type = %s, want INCOME", adj.Type)
	}
	if adj.OriginalAmount.Amount != 50 || adj.OriginalAmount.Currency != "USD" {
		t.Errorf("adjustment amount = %+v, want 50 USD", adj.OriginalAmount)
	}
	if !adj.IsAdjustment {
		t.Error("adjustment must be flagged as such")
	}
	if ledger.account.LastReconciledAt == nil {
		t.Fatal("watermark not set")
	}

	// The computed balance now matches the asserted one.
	balance, err := ledger.AccountBalance(context.Background(), ledger.account, civil.DateOf(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1000 {
		t.Errorf("post-reconcile balance = %v, want 1000", balance)
	}
}

func TestReconcileNegativeDelta(t *testing.T) {
	engine, ledger := newTestEngine(1000)

	res, err := engine.Reconcile(context.Background(), "acc-1", 900)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if res.Delta != -100 {
		t.Errorf("delta = %v, want -100", res.Delta)
	}
	if ledger.txs[0].Type != domain.TransactionExpense {
		t.Errorf("adjustment type = %s, want EXPENSE", ledger.txs[0].Type)
	}
	if ledger.txs[0].BaseAmount.Amount != -100 {
		t.Errorf("signed base amount = %v, want -100", ledger.txs[0].BaseAmount.Amount)
	}
}

func TestReconcileWithinTolerance(t *testing.T) {
	engine, ledger := newTestEngine(1000)

	res, err := engine.Reconcile(context.Background(), "acc-1", 1000.005)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if res.AdjustmentCreated {
		t.Error("sub-cent delta must not create an adjustment")
	}
	if len(ledger.txs) != 0 {
		t.Errorf("got %d adjustments, want 0", len(ledger.txs))
	}
	if ledger.account.LastReconciledAt == nil {
		t.Error("watermark must advance even without an adjustment")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	engine, ledger := newTestEngine(950)

	if _, err := engine.Reconcile(context.Background(), "acc-1", 1000); err != nil {
		t.Fatalf("first Reconcile error: %v", err)
	}
	res, err := engine.Reconcile(context.Background(), "acc-1", 1000)
	if err != nil {
		t.Fatalf("second Reconcile error: %v", err)
	}
	if math.Abs(res.Delta) > deltaTolerance {
		t.Errorf("second delta = %v, want ~0", res.Delta)
	}
	if res.AdjustmentCreated || len(ledger.txs) != 1 {
		t.Errorf("second run created another adjustment (total %d)", len(ledger.txs))
	}
}

func TestReconcileUnknownAccount(t *testing.T) {
	engine, _ := newTestEngine(0)

	_, err := engine.Reconcile(context.Background(), "acc-missing", 100)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Reconcile error = %v, want ErrAccountNotFound", err)
	}
}

func TestReconcileWatermarkMonotonic(t *testing.T) {
	engine, ledger := newTestEngine(1000)
	future := time.Now().Add(24 * time.Hour)
	ledger.account.LastReconciledAt = &future

	if _, err := engine.Reconcile(context.Background(), "acc-1", 1000); err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if !ledger.account.LastReconciledAt.Equal(future) {
		t.Errorf("watermark regressed to %v, want %v", ledger.account.LastReconciledAt, future)
	}
}

func TestCheckWritable(t *testing.T) {
	reconciled := time.Date(2026, time.August, 15, 14, 0, 0, 0, time.UTC)
	account := domain.Account{ID: "acc-1", LastReconciledAt: &reconciled}

	tests := []struct {
		name         string
		date         civil.Date
		isAdjustment bool
		wantLocked   bool
	}{
		{"before watermark", civil.Date{Year: 2026, Month: time.August, Day: 10}, false, true},
		{"on watermark day", civil.Date{Year: 2026, Month: time.August, Day: 15}, false, true},
		{"after watermark", civil.Date{Year: 2026, Month: time.August, Day: 16}, false, false},
		{"adjustment exempt", civil.Date{Year: 2026, Month: time.August, Day: 10}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWritable(account, tt.date, tt.isAdjustment)
			if tt.wantLocked && !errors.Is(err, domain.ErrPeriodLocked) {
				t.Errorf("CheckWritable = %v, want ErrPeriodLocked", err)
			}
			if !tt.wantLocked && err != nil {
				t.Errorf("CheckWritable = %v, want nil", err)
			}
		})
	}
}

func TestCheckWritableUnlockedAccount(t *testing.T) {
	account := domain.Account{ID: "acc-1"}
	if err := CheckWritable(account, civil.Date{Year: 2020, Month: time.January, Day: 1}, false); err != nil {
		t.Errorf("CheckWritable on never-reconciled account = %v, want nil", err)
	}
}
