package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
	"github.com/dvloznov/budgetbook/internal/reconcile"
	"google.golang.org/api/iterator"
)

// TransactionRepository reads and appends workspace transactions. It
// satisfies report.TransactionSource and reconcile.AdjustmentWriter, and its
// CreateTransaction enforces the reconciliation period lock.
type TransactionRepository struct {
	client   *bigquery.Client
	cfg      Config
	accounts *AccountRepository
}

// NewTransactionRepository creates a TransactionRepository with its own client.
func NewTransactionRepository(ctx context.Context, cfg Config) (*TransactionRepository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: creating client: %w", err)
	}
	return NewTransactionRepositoryWithClient(client, cfg), nil
}

// NewTransactionRepositoryWithClient creates a TransactionRepository over a
// shared client.
func NewTransactionRepositoryWithClient(client *bigquery.Client, cfg Config) *TransactionRepository {
	return &TransactionRepository{
		client:   client,
		cfg:      cfg,
		accounts: NewAccountRepositoryWithClient(client, cfg),
	}
}

// Close closes the underlying client.
func (r *TransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListTransactions returns the workspace's transactions dated on or before
// dateLte, ordered by date ascending.
func (r *TransactionRepository) ListTransactions(ctx context.Context, workspaceID string, dateLte civil.Date) ([]domain.TransactionEvent, error) {
	query := fmt.Sprintf(`
		SELECT
			transaction_id,
			workspace_id,
			account_id,
			transaction_date,
			type,
			original_amount,
			original_currency,
			base_amount,
			base_currency,
			category_id,
			category_name,
			subcategory_id,
			subcategory_name,
			is_adjustment,
			description,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE workspace_id = @workspace_id
		  AND transaction_date <= @date_lte
		ORDER BY transaction_date, created_ts
	`, r.cfg.ProjectID, r.cfg.DatasetID, transactionsTable)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "workspace_id", Value: workspaceID},
		{Name: "date_lte", Value: dateLte},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []domain.TransactionEvent
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iterating: %w", err)
		}
		txs = append(txs, row.toDomain())
	}
	return txs, nil
}

// CreateTransaction appends one transaction after checking the owning
// account's reconciliation lock. Non-adjustment writes dated on or before the
// watermark fail with domain.ErrPeriodLocked.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx domain.TransactionEvent) error {
	account, err := r.accounts.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	if err := reconcile.CheckWritable(*account, tx.Date, tx.IsAdjustment); err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return r.insert(ctx, tx)
}

// CreateAdjustment appends a reconciliation adjustment. Adjustments bypass
// the period lock by definition.
func (r *TransactionRepository) CreateAdjustment(ctx context.Context, tx domain.TransactionEvent) error {
	if !tx.IsAdjustment {
		return fmt.Errorf("CreateAdjustment: transaction %s not flagged as adjustment", tx.ID)
	}
	return r.insert(ctx, tx)
}

func (r *TransactionRepository) insert(ctx context.Context, tx domain.TransactionEvent) error {
	table := r.client.DatasetInProject(r.cfg.ProjectID, r.cfg.DatasetID).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, []*TransactionRow{transactionRowFromDomain(tx, time.Now().UTC())}); err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// IsDateLocked reports whether the account's reconciliation watermark covers
// the given calendar day.
func (r *TransactionRepository) IsDateLocked(ctx context.Context, accountID string, d civil.Date) (bool, error) {
	account, err := r.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("IsDateLocked: %w", err)
	}
	return reconcile.IsDateLocked(*account, d), nil
}
