package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
)

// Config locates the dataset holding the budgetbook tables. Passed explicitly
// to every repository constructor; there is no package-level default.
type Config struct {
	ProjectID string
	DatasetID string
}

const (
	accountsTable     = "accounts"
	transactionsTable = "transactions"
	ledgerTable       = "budget_ledger"
	fxRatesTable      = "fx_rates"
)

// AccountRow is one row of the accounts table.
type AccountRow struct {
	AccountID      string  `bigquery:"account_id"` // REQUIRED
	WorkspaceID    string  `bigquery:"workspace_id"`
	BaseCurrency   string  `bigquery:"base_currency"`
	OpeningBalance float64 `bigquery:"opening_balance"`

	Archived         bigquery.NullBool      `bigquery:"archived"`           // BOOLEAN, NULLABLE
	LastReconciledTS bigquery.NullTimestamp `bigquery:"last_reconciled_ts"` // TIMESTAMP, NULLABLE
	CreatedTS        bigquery.NullTimestamp `bigquery:"created_ts"`         // TIMESTAMP, NULLABLE
}

func (r *AccountRow) toDomain() domain.Account {
	a := domain.Account{
		ID:           r.AccountID,
		WorkspaceID:  r.WorkspaceID,
		BaseCurrency: domain.NormalizeCurrency(r.BaseCurrency),
		OpeningBalance: domain.Money{
			Amount:   r.OpeningBalance,
			Currency: domain.NormalizeCurrency(r.BaseCurrency),
		},
		Archived: r.Archived.Valid && r.Archived.Bool,
	}
	if r.LastReconciledTS.Valid {
		ts := r.LastReconciledTS.Timestamp
		a.LastReconciledAt = &ts
	}
	return a
}

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	TransactionID string     `bigquery:"transaction_id"` // REQUIRED
	WorkspaceID   string     `bigquery:"workspace_id"`
	AccountID     string     `bigquery:"account_id"`
	Date          civil.Date `bigquery:"transaction_date"` // DATE
	Type          string     `bigquery:"type"`             // INCOME | EXPENSE | TRANSFER

	OriginalAmount   float64 `bigquery:"original_amount"`
	OriginalCurrency string  `bigquery:"original_currency"`
	BaseAmount       float64 `bigquery:"base_amount"` // signed, account base currency
	BaseCurrency     string  `bigquery:"base_currency"`

	CategoryID      bigquery.NullString `bigquery:"category_id"`      // NULLABLE
	CategoryName    bigquery.NullString `bigquery:"category_name"`    // NULLABLE
	SubcategoryID   bigquery.NullString `bigquery:"subcategory_id"`   // NULLABLE
	SubcategoryName bigquery.NullString `bigquery:"subcategory_name"` // NULLABLE

	IsAdjustment bigquery.NullBool   `bigquery:"is_adjustment"` // BOOLEAN, NULLABLE
	Description  bigquery.NullString `bigquery:"description"`   // NULLABLE
	CreatedTS    time.Time           `bigquery:"created_ts"`    // REQUIRED (default CURRENT_TIMESTAMP)
}

func (r *TransactionRow) toDomain() domain.TransactionEvent {
	return domain.TransactionEvent{
		ID:          r.TransactionID,
		WorkspaceID: r.WorkspaceID,
		AccountID:   r.AccountID,
		Date:        r.Date,
		Type:        domain.TransactionType(r.Type),
		OriginalAmount: domain.Money{
			Amount:   r.OriginalAmount,
			Currency: domain.NormalizeCurrency(r.OriginalCurrency),
		},
		BaseAmount: domain.Money{
			Amount:   r.BaseAmount,
			Currency: domain.NormalizeCurrency(r.BaseCurrency),
		},
		CategoryID:    r.CategoryID.StringVal,
		CategoryName:  r.CategoryName.StringVal,
		SubcategoryID: r.SubcategoryID.StringVal,
		Subcategory:   r.SubcategoryName.StringVal,
		IsAdjustment:  r.IsAdjustment.Valid && r.IsAdjustment.Bool,
		Description:   r.Description.StringVal,
	}
}

func transactionRowFromDomain(tx domain.TransactionEvent, now time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:    tx.ID,
		WorkspaceID:      tx.WorkspaceID,
		AccountID:        tx.AccountID,
		Date:             tx.Date,
		Type:             string(tx.Type),
		OriginalAmount:   tx.OriginalAmount.Amount,
		OriginalCurrency: string(tx.OriginalAmount.Currency),
		BaseAmount:       tx.BaseAmount.Amount,
		BaseCurrency:     string(tx.BaseAmount.Currency),
		CategoryID:       nullString(tx.CategoryID),
		CategoryName:     nullString(tx.CategoryName),
		SubcategoryID:    nullString(tx.SubcategoryID),
		SubcategoryName:  nullString(tx.Subcategory),
		IsAdjustment:     bigquery.NullBool{Bool: tx.IsAdjustment, Valid: true},
		Description:      nullString(tx.Description),
		CreatedTS:        now,
	}
}

// nullString writes NULL for unset optional columns instead of "".
func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// LedgerRow is one row of the budget_ledger table. Append-only.
type LedgerRow struct {
	LedgerEntryID string     `bigquery:"ledger_entry_id"` // REQUIRED
	WorkspaceID   string     `bigquery:"workspace_id"`
	BudgetID      string     `bigquery:"budget_id"`
	Date          civil.Date `bigquery:"entry_date"` // DATE
	Type          string     `bigquery:"type"`       // FUND | SPEND | ADJUST
	Amount        float64    `bigquery:"amount"`
	Currency      string     `bigquery:"currency"`
}

func (r *LedgerRow) toDomain() domain.LedgerEvent {
	return domain.LedgerEvent{
		ID:          r.LedgerEntryID,
		WorkspaceID: r.WorkspaceID,
		BudgetID:    r.BudgetID,
		Date:        r.Date,
		Type:        domain.LedgerType(r.Type),
		Amount: domain.Money{
			Amount:   r.Amount,
			Currency: domain.NormalizeCurrency(r.Currency),
		},
	}
}

// FxRateRow is one row of the fx_rates cache table, keyed on (base, quote).
// Refreshes overwrite the pair's row; no history accumulates.
type FxRateRow struct {
	BaseCode  string    `bigquery:"base_code"` // REQUIRED
	QuoteCode string    `bigquery:"quote_code"`
	Rate      float64   `bigquery:"rate"`
	FetchedTS time.Time `bigquery:"fetched_ts"`
	ExpiresTS time.Time `bigquery:"expires_ts"`
	Source    string    `bigquery:"source"`
}

func (r *FxRateRow) toDomain() domain.FxRate {
	return domain.FxRate{
		Base:      domain.NormalizeCurrency(r.BaseCode),
		Quote:     domain.NormalizeCurrency(r.QuoteCode),
		Rate:      r.Rate,
		FetchedAt: r.FetchedTS,
		ExpiresAt: r.ExpiresTS,
		Source:    r.Source,
	}
}
