package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// TransactionType classifies a transaction event.
type TransactionType string

const (
	TransactionIncome   TransactionType = "INCOME"
	TransactionExpense  TransactionType = "EXPENSE"
	TransactionTransfer TransactionType = "TRANSFER"
)

// TransactionEvent is one workspace transaction as stored in the event log.
// BaseAmount is signed (positive = inflow, negative = outflow) and denominated
// in the owning account's base currency. Date is a calendar day with no time
// component.
type TransactionEvent struct {
	ID          string
	WorkspaceID string
	AccountID   string
	Date        civil.Date
	Type        TransactionType

	OriginalAmount Money
	BaseAmount     Money

	CategoryID    string
	CategoryName  string
	SubcategoryID string
	Subcategory   string

	// IsAdjustment marks transactions emitted by the reconciliation engine.
	// Adjustments are exempt from the period lock.
	IsAdjustment bool
	Description  string
}

// LedgerType classifies a budget ledger entry.
type LedgerType string

const (
	LedgerFund   LedgerType = "FUND"
	LedgerSpend  LedgerType = "SPEND"
	LedgerAdjust LedgerType = "ADJUST"
)

// LedgerEvent is one append-only budget funding ledger entry.
type LedgerEvent struct {
	ID          string
	WorkspaceID string
	BudgetID    string
	Date        civil.Date
	Type        LedgerType
	Amount      Money
}

// ReservedSign is the contribution direction of a ledger entry to a budget's
// reserved balance: Fund and Adjust increase it, everything else decreases it.
func (e LedgerEvent) ReservedSign() float64 {
	if e.Type == LedgerFund || e.Type == LedgerAdjust {
		return 1
	}
	return -1
}

// Account is a workspace account holding an opening balance in its base
// currency. LastReconciledAt, when set, is the reconciliation lock boundary:
// no non-adjustment transaction dated on or before its calendar day may be
// written.
type Account struct {
	ID             string
	WorkspaceID    string
	BaseCurrency   CurrencyCode
	OpeningBalance Money

	LastReconciledAt *time.Time
	Archived         bool
}

// FxRate is one cached conversion rate for a (base, quote) currency pair.
// Rows are replaced wholesale on refresh; a rate past ExpiresAt may still be
// served as a stale fallback when the live fetch fails.
type FxRate struct {
	Base      CurrencyCode
	Quote     CurrencyCode
	Rate      float64
	FetchedAt time.Time
	ExpiresAt time.Time
	Source    string
}

// Expired reports whether the rate is past its expiry at the given instant.
func (r FxRate) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
