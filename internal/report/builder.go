package report

import (
	"context"
	"fmt"
	"math"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
	"github.com/dvloznov/budgetbook/internal/logger"
)

const (
	uncategorizedName = "Uncategorized"
	otherSubcategory  = "Other"
)

// Builder computes workspace reports from the raw event streams. It holds no
// state between calls; every report is rebuilt from scratch.
type Builder struct {
	accounts     AccountSource
	transactions TransactionSource
	ledger       LedgerSource
	rates        RateSource
}

// NewBuilder wires a Builder over its four collaborators.
func NewBuilder(accounts AccountSource, transactions TransactionSource, ledger LedgerSource, rates RateSource) *Builder {
	return &Builder{
		accounts:     accounts,
		transactions: transactions,
		ledger:       ledger,
		rates:        rates,
	}
}

// BuildReport computes the full report for one workspace and window, with all
// amounts converted into the reporting currency. A failed rate resolution for
// any currency in use fails the whole report; no partial numbers are returned.
func (b *Builder) BuildReport(ctx context.Context, workspaceID string, w Window, reporting domain.CurrencyCode) (*domain.Report, error) {
	log := logger.FromContext(ctx)
	reporting = domain.NormalizeCurrency(string(reporting))

	accounts, err := b.accounts.ListAccounts(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: listing accounts: %w", err)
	}
	// Accounts anchor a workspace in this store; a workspace without any is
	// indistinguishable from one that does not exist.
	if len(accounts) == 0 {
		return nil, fmt.Errorf("BuildReport: workspace %s has no accounts: %w",
			workspaceID, domain.ErrWorkspaceNotFound)
	}
	txs, err := b.transactions.ListTransactions(ctx, workspaceID, w.End)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: listing transactions: %w", err)
	}
	entries, err := b.ledger.ListLedgerEntries(ctx, workspaceID, w.End)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: listing ledger entries: %w", err)
	}

	// One rate per distinct currency in use. Account base currencies cover
	// the transaction stream; ledger entries carry their own budget currency.
	var currencies []domain.CurrencyCode
	for _, a := range accounts {
		currencies = append(currencies, a.BaseCurrency)
	}
	for _, e := range entries {
		currencies = append(currencies, e.Amount.Currency)
	}
	rates, err := b.rates.Rates(ctx, currencies, reporting)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: resolving rates: %w", err)
	}

	// Seed cumulative state from opening balances and pre-window history.
	var balance, reserved float64
	for _, a := range accounts {
		rate, ok := rates[domain.NormalizeCurrency(string(a.BaseCurrency))]
		if !ok {
			return nil, fmt.Errorf("BuildReport: no resolved rate for account currency %s", a.BaseCurrency)
		}
		balance += domain.Convert(a.OpeningBalance.Amount, rate)
	}

	labels := w.Labels()
	buckets := make(map[string]*domain.ReportBucket, len(labels))
	for _, label := range labels {
		buckets[label] = &domain.ReportBucket{Label: label}
	}
	reservedDelta := make(map[string]float64, len(labels))

	income := newBreakdown()
	expense := newBreakdown()
	var totalFunding float64

	for _, tx := range txs {
		rate, ok := rates[domain.NormalizeCurrency(string(tx.BaseAmount.Currency))]
		if !ok {
			return nil, fmt.Errorf("BuildReport: no resolved rate for transaction currency %s", tx.BaseAmount.Currency)
		}
		converted := domain.Convert(tx.BaseAmount.Amount, rate)

		if tx.Date.Before(w.Start) {
			balance += converted
			continue
		}
		bucket, ok := buckets[w.BucketLabel(tx.Date)]
		if !ok {
			// Dated past the window end; the stores filter on dateLte so this
			// is a data inconsistency, not a normal path.
			return nil, fmt.Errorf("BuildReport: transaction %s dated %v outside window", tx.ID, tx.Date)
		}

		switch tx.Type {
		case domain.TransactionIncome:
			bucket.Income += math.Abs(converted)
			income.add(tx, math.Abs(converted))
		case domain.TransactionExpense:
			bucket.Expenses += math.Abs(converted)
			expense.add(tx, math.Abs(converted))
		}
		// Transfers count toward neither income nor expenses but still move
		// net and the running balance.
		bucket.Net += converted
	}

	for _, e := range entries {
		rate, ok := rates[domain.NormalizeCurrency(string(e.Amount.Currency))]
		if !ok {
			return nil, fmt.Errorf("BuildReport: no resolved rate for ledger currency %s", e.Amount.Currency)
		}
		converted := domain.Convert(e.Amount.Amount, rate)

		if e.Date.Before(w.Start) {
			reserved += e.ReservedSign() * converted
			continue
		}
		label := w.BucketLabel(e.Date)
		if _, ok := buckets[label]; !ok {
			return nil, fmt.Errorf("BuildReport: ledger entry %s dated %v outside window", e.ID, e.Date)
		}
		reservedDelta[label] += e.ReservedSign() * converted
		if e.Type == domain.LedgerFund {
			totalFunding += converted
		}
	}

	// Cumulative pass in label order: running balance from bucket nets,
	// running reserved from the per-bucket deltas.
	out := &domain.Report{
		WorkspaceID:       workspaceID,
		ReportingCurrency: reporting,
		Daily:             w.Daily,
	}
	runningBalance := balance
	runningReserved := reserved
	var totalIncome, totalExpenses float64
	for _, label := range labels {
		bucket := buckets[label]
		runningBalance += bucket.Net
		runningReserved += reservedDelta[label]

		totalIncome += bucket.Income
		totalExpenses += bucket.Expenses

		out.Buckets = append(out.Buckets, domain.ReportBucket{
			Label:    label,
			Income:   domain.Round2(bucket.Income),
			Expenses: domain.Round2(bucket.Expenses),
			Net:      domain.Round2(bucket.Net),
			Balance:  domain.Round2(runningBalance),
			SafeCash: domain.Round2(runningBalance - runningReserved),
		})
	}

	out.TotalIncome = domain.Round2(totalIncome)
	out.TotalExpenses = domain.Round2(totalExpenses)
	out.GrossFlow = domain.Round2(totalIncome - totalExpenses)
	out.TotalFunding = domain.Round2(totalFunding)
	out.NetFlow = domain.Round2(totalIncome - totalExpenses - totalFunding)
	out.IncomeByCategory = income.sorted()
	out.ExpenseByCategory = expense.sorted()

	log.Debug().
		Str("workspace_id", workspaceID).
		Str("currency", string(reporting)).
		Int("buckets", len(out.Buckets)).
		Int("transactions", len(txs)).
		Int("ledger_entries", len(entries)).
		Msg("report built")
	return out, nil
}

// AccountBalance computes a single account's current balance in its own base
// currency through the given day: opening balance plus every signed base
// amount dated on or before asOf. No FX conversion is involved.
func (b *Builder) AccountBalance(ctx context.Context, account domain.Account, asOf civil.Date) (float64, error) {
	txs, err := b.transactions.ListTransactions(ctx, account.WorkspaceID, asOf)
	if err != nil {
		return 0, fmt.Errorf("AccountBalance: listing transactions: %w", err)
	}
	balance := account.OpeningBalance.Amount
	for _, tx := range txs {
		if tx.AccountID == account.ID {
			balance += tx.BaseAmount.Amount
		}
	}
	return balance, nil
}

// breakdown accumulates category and subcategory totals for one side
// (income or expense) of the report.
type breakdown struct {
	categories map[string]float64
	subs       map[string]map[string]float64
}

func newBreakdown() *breakdown {
	return &breakdown{
		categories: make(map[string]float64),
		subs:       make(map[string]map[string]float64),
	}
}

func (bd *breakdown) add(tx domain.TransactionEvent, value float64) {
	category := tx.CategoryName
	if category == "" {
		category = uncategorizedName
	}
	sub := tx.Subcategory
	if sub == "" {
		sub = otherSubcategory
	}
	bd.categories[category] += value
	if bd.subs[category] == nil {
		bd.subs[category] = make(map[string]float64)
	}
	bd.subs[category][sub] += value
}

// sorted renders the breakdown descending by value, ties broken by name so
// identical inputs always yield identical reports.
func (bd *breakdown) sorted() []domain.CategoryTotal {
	out := make([]domain.CategoryTotal, 0, len(bd.categories))
	for name, value := range bd.categories {
		ct := domain.CategoryTotal{Name: name, Value: domain.Round2(value)}
		for sub, sv := range bd.subs[name] {
			ct.Subcategories = append(ct.Subcategories, domain.SubcategoryTotal{
				Name:  sub,
				Value: domain.Round2(sv),
			})
		}
		sort.Slice(ct.Subcategories, func(i, j int) bool {
			a, b := ct.Subcategories[i], ct.Subcategories[j]
			if a.Value != b.Value {
				return a.Value > b.Value
			}
			return a.Name < b.Name
		})
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}
