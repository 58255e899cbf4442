package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
	"google.golang.org/api/iterator"
)

// LedgerRepository reads the append-only budget funding ledger. It satisfies
// report.LedgerSource.
type LedgerRepository struct {
	client *bigquery.Client
	cfg    Config
}

// NewLedgerRepository creates a LedgerRepository with its own client.
func NewLedgerRepository(ctx context.Context, cfg Config) (*LedgerRepository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerRepository: creating client: %w", err)
	}
	return NewLedgerRepositoryWithClient(client, cfg), nil
}

// NewLedgerRepositoryWithClient creates a LedgerRepository over a shared client.
func NewLedgerRepositoryWithClient(client *bigquery.Client, cfg Config) *LedgerRepository {
	return &LedgerRepository{client: client, cfg: cfg}
}

// Close closes the underlying client.
func (r *LedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListLedgerEntries returns the workspace's ledger entries dated on or before
// dateLte, ordered by date ascending.
func (r *LedgerRepository) ListLedgerEntries(ctx context.Context, workspaceID string, dateLte civil.Date) ([]domain.LedgerEvent, error) {
	query := fmt.Sprintf(`
		SELECT
			ledger_entry_id,
			workspace_id,
			budget_id,
			entry_date,
			type,
			amount,
			currency
		FROM `+"`%s.%s.%s`"+`
		WHERE workspace_id = @workspace_id
		  AND entry_date <= @date_lte
		ORDER BY entry_date, ledger_entry_id
	`, r.cfg.ProjectID, r.cfg.DatasetID, ledgerTable)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "workspace_id", Value: workspaceID},
		{Name: "date_lte", Value: dateLte},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListLedgerEntries: query read: %w", err)
	}

	var entries []domain.LedgerEvent
	for {
		var row LedgerRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListLedgerEntries: iterating: %w", err)
		}
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}
