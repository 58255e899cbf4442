package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budgetbook/internal/domain"
	"google.golang.org/api/iterator"
)

// FxCacheRepository is the durable FX rate cache, one row per (base, quote)
// pair. It satisfies fx.CacheStore. Upserts replace the pair's row wholesale;
// concurrent refreshes race and last-write-wins, which is fine for rates.
type FxCacheRepository struct {
	client *bigquery.Client
	cfg    Config
}

// NewFxCacheRepository creates an FxCacheRepository with its own client.
func NewFxCacheRepository(ctx context.Context, cfg Config) (*FxCacheRepository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewFxCacheRepository: creating client: %w", err)
	}
	return NewFxCacheRepositoryWithClient(client, cfg), nil
}

// NewFxCacheRepositoryWithClient creates an FxCacheRepository over a shared client.
func NewFxCacheRepositoryWithClient(client *bigquery.Client, cfg Config) *FxCacheRepository {
	return &FxCacheRepository{client: client, cfg: cfg}
}

// Close closes the underlying client.
func (r *FxCacheRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Get returns the cached rate for the pair, or (nil, nil) on a clean miss.
// Expiry is not checked here; the resolver decides whether a stale row is
// still acceptable.
func (r *FxCacheRepository) Get(ctx context.Context, base, quote domain.CurrencyCode) (*domain.FxRate, error) {
	query := fmt.Sprintf(`
		SELECT
			base_code,
			quote_code,
			rate,
			fetched_ts,
			expires_ts,
			source
		FROM `+"`%s.%s.%s`"+`
		WHERE base_code = @base
		  AND quote_code = @quote
		ORDER BY fetched_ts DESC
		LIMIT 1
	`, r.cfg.ProjectID, r.cfg.DatasetID, fxRatesTable)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "base", Value: string(domain.NormalizeCurrency(string(base)))},
		{Name: "quote", Value: string(domain.NormalizeCurrency(string(quote)))},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: query read: %w", err)
	}

	var row FxRateRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: iterating: %w", err)
	}
	rate := row.toDomain()
	return &rate, nil
}

// Upsert replaces any existing row for the (base, quote) pair with the given
// rate. MERGE keeps the table at one row per pair instead of accumulating
// history.
func (r *FxCacheRepository) Upsert(ctx context.Context, rate domain.FxRate) error {
	query := fmt.Sprintf(`
		MERGE `+"`%s.%s.%s`"+` t
		USING (SELECT @base AS base_code, @quote AS quote_code) s
		ON t.base_code = s.base_code AND t.quote_code = s.quote_code
		WHEN MATCHED THEN UPDATE SET
			rate = @rate,
			fetched_ts = @fetched_ts,
			expires_ts = @expires_ts,
			source = @source
		WHEN NOT MATCHED THEN INSERT
			(base_code, quote_code, rate, fetched_ts, expires_ts, source)
		VALUES
			(@base, @quote, @rate, @fetched_ts, @expires_ts, @source)
	`, r.cfg.ProjectID, r.cfg.DatasetID, fxRatesTable)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "base", Value: string(rate.Base)},
		{Name: "quote", Value: string(rate.Quote)},
		{Name: "rate", Value: rate.Rate},
		{Name: "fetched_ts", Value: rate.FetchedAt},
		{Name: "expires_ts", Value: rate.ExpiresAt},
		{Name: "source", Value: rate.Source},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("Upsert: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("Upsert: waiting for job: %w", err)
	}
	if status.Err() != nil {
		return fmt.Errorf("Upsert: job failed: %w", status.Err())
	}
	return nil
}
