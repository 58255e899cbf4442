package report

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
)

// TransactionSource lists a workspace's transactions dated on or before
// dateLte, ordered by date ascending.
type TransactionSource interface {
	ListTransactions(ctx context.Context, workspaceID string, dateLte civil.Date) ([]domain.TransactionEvent, error)
}

// LedgerSource lists a workspace's budget ledger entries dated on or before
// dateLte, ordered by date ascending.
type LedgerSource interface {
	ListLedgerEntries(ctx context.Context, workspaceID string, dateLte civil.Date) ([]domain.LedgerEvent, error)
}

// AccountSource lists a workspace's non-archived accounts.
type AccountSource interface {
	ListAccounts(ctx context.Context, workspaceID string) ([]domain.Account, error)
}

// RateSource resolves one conversion rate into the reporting currency for
// every distinct currency in the set. *fx.Resolver satisfies this.
type RateSource interface {
	Rates(ctx context.Context, currencies []domain.CurrencyCode, reporting domain.CurrencyCode) (map[domain.CurrencyCode]float64, error)
}
