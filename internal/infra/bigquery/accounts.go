package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budgetbook/internal/domain"
	"google.golang.org/api/iterator"
)

// AccountRepository reads and updates workspace accounts. It satisfies both
// report.AccountSource and reconcile.AccountStore.
type AccountRepository struct {
	client *bigquery.Client
	cfg    Config
}

// NewAccountRepository creates an AccountRepository with its own client.
func NewAccountRepository(ctx context.Context, cfg Config) (*AccountRepository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewAccountRepository: creating client: %w", err)
	}
	return NewAccountRepositoryWithClient(client, cfg), nil
}

// NewAccountRepositoryWithClient creates an AccountRepository over a shared client.
func NewAccountRepositoryWithClient(client *bigquery.Client, cfg Config) *AccountRepository {
	return &AccountRepository{client: client, cfg: cfg}
}

// Close closes the underlying client.
func (r *AccountRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListAccounts returns the workspace's non-archived accounts.
func (r *AccountRepository) ListAccounts(ctx context.Context, workspaceID string) ([]domain.Account, error) {
	query := fmt.Sprintf(`
		SELECT
			account_id,
			workspace_id,
			base_currency,
			opening_balance,
			archived,
			last_reconciled_ts,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE workspace_id = @workspace_id
		  AND (archived IS NULL OR archived = FALSE)
		ORDER BY account_id
	`, r.cfg.ProjectID, r.cfg.DatasetID, accountsTable)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "workspace_id", Value: workspaceID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query read: %w", err)
	}

	var accounts []domain.Account
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: iterating: %w", err)
		}
		accounts = append(accounts, row.toDomain())
	}
	return accounts, nil
}

// GetAccount returns one account by id, or domain.ErrAccountNotFound.
func (r *AccountRepository) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	query := fmt.Sprintf(`
		SELECT
			account_id,
			workspace_id,
			base_currency,
			opening_balance,
			archived,
			last_reconciled_ts,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE account_id = @account_id
		LIMIT 1
	`, r.cfg.ProjectID, r.cfg.DatasetID, accountsTable)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: query read: %w", err)
	}

	var row AccountRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetAccount: %s: %w", accountID, domain.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: iterating: %w", err)
	}
	account := row.toDomain()
	return &account, nil
}

// SetReconciledAt advances the account's reconciliation watermark. GREATEST
// keeps the update monotonic even under concurrent reconciliations.
func (r *AccountRepository) SetReconciledAt(ctx context.Context, accountID string, ts time.Time) error {
	query := fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET last_reconciled_ts = GREATEST(IFNULL(last_reconciled_ts, TIMESTAMP '1970-01-01'), @ts)
		WHERE account_id = @account_id
	`, r.cfg.ProjectID, r.cfg.DatasetID, accountsTable)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "ts", Value: ts},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("SetReconciledAt: running update: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("SetReconciledAt: waiting for job: %w", err)
	}
	if status.Err() != nil {
		return fmt.Errorf("SetReconciledAt: job failed: %w", status.Err())
	}
	return nil
}
