package reconcile

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
	"github.com/dvloznov/budgetbook/internal/logger"
	"github.com/google/uuid"
)

// deltaTolerance absorbs floating-point noise: asserted and computed balances
// within a cent of each other are treated as already matching.
const deltaTolerance = 0.01

// adjustmentDescription marks reconciliation adjustments in the transaction log.
const adjustmentDescription = "Reconciliation adjustment"

// AccountStore reads accounts and advances the reconciliation watermark.
// SetReconciledAt must never move an existing watermark backward.
type AccountStore interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	SetReconciledAt(ctx context.Context, accountID string, ts time.Time) error
}

// AdjustmentWriter appends a reconciliation adjustment to the transaction log.
type AdjustmentWriter interface {
	CreateAdjustment(ctx context.Context, tx domain.TransactionEvent) error
}

// BalanceSource computes an account's current balance in its base currency
// through the given day. *report.Builder satisfies this.
type BalanceSource interface {
	AccountBalance(ctx context.Context, account domain.Account, asOf civil.Date) (float64, error)
}

// Result is the outcome of one reconciliation run.
type Result struct {
	AdjustmentCreated bool    `json:"adjustment_created"`
	Delta             float64 `json:"delta"`
}

// Engine reconciles a user-asserted account balance against the computed one,
// emitting a corrective adjustment when they diverge and advancing the
// account's reconciliation watermark.
type Engine struct {
	accounts AccountStore
	writer   AdjustmentWriter
	balances BalanceSource

	now func() time.Time // overridable in tests
}

// NewEngine wires an Engine over its collaborators.
func NewEngine(accounts AccountStore, writer AdjustmentWriter, balances BalanceSource) *Engine {
	return &Engine{
		accounts: accounts,
		writer:   writer,
		balances: balances,
		now:      time.Now,
	}
}

// Reconcile compares assertedBalance against the computed balance for the
// account. A delta beyond the tolerance produces one adjustment transaction
// dated today in the account's base currency. The watermark advances to now
// regardless of whether an adjustment was needed.
func (e *Engine) Reconcile(ctx context.Context, accountID string, assertedBalance float64) (Result, error) {
	log := logger.FromContext(ctx)

	account, err := e.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("Reconcile: loading account: %w", err)
	}

	now := e.now()
	today := civil.DateOf(now)

	systemBalance, err := e.balances.AccountBalance(ctx, *account, today)
	if err != nil {
		return Result{}, fmt.Errorf("Reconcile: computing balance: %w", err)
	}

	delta := assertedBalance - systemBalance
	result := Result{Delta: delta}

	if math.Abs(delta) > deltaTolerance {
		txType := domain.TransactionIncome
		if delta < 0 {
			txType = domain.TransactionExpense
		}
		adjustment := domain.TransactionEvent{
			ID:             uuid.New().String(),
			WorkspaceID:    account.WorkspaceID,
			AccountID:      account.ID,
			Date:           today,
			Type:           txType,
			OriginalAmount: domain.Money{Amount: math.Abs(delta), Currency: account.BaseCurrency},
			BaseAmount:     domain.Money{Amount: delta, Currency: account.BaseCurrency},
			IsAdjustment:   true,
			Description:    adjustmentDescription,
		}
		if err := e.writer.CreateAdjustment(ctx, adjustment); err != nil {
			return Result{}, fmt.Errorf("Reconcile: writing adjustment: %w", err)
		}
		result.AdjustmentCreated = true
		log.Info().
			Str("account_id", account.ID).
			Float64("delta", delta).
			Str("type", string(txType)).
			Msg("reconciliation adjustment created")
	}

	// Monotonic watermark: never regress an already-later lock.
	watermark := now
	if account.LastReconciledAt != nil && account.LastReconciledAt.After(watermark) {
		watermark = *account.LastReconciledAt
	}
	if err := e.accounts.SetReconciledAt(ctx, account.ID, watermark); err != nil {
		return Result{}, fmt.Errorf("Reconcile: setting watermark: %w", err)
	}

	return result, nil
}

// IsDateLocked reports whether the account's reconciliation watermark covers
// the given calendar day.
func IsDateLocked(account domain.Account, d civil.Date) bool {
	if account.LastReconciledAt == nil {
		return false
	}
	return !d.After(civil.DateOf(*account.LastReconciledAt))
}

// CheckWritable enforces the period lock on the transaction write path:
// non-adjustment writes dated on or before the watermark's calendar day are
// rejected with domain.ErrPeriodLocked. Adjustments are exempt.
func CheckWritable(account domain.Account, d civil.Date, isAdjustment bool) error {
	if isAdjustment {
		return nil
	}
	if IsDateLocked(account, d) {
		return fmt.Errorf("CheckWritable: account %s date %v: %w",
			account.ID, d, domain.ErrPeriodLocked)
	}
	return nil
}
