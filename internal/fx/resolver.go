package fx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/budgetbook/internal/domain"
	"github.com/dvloznov/budgetbook/internal/logger"
)

// DefaultTTL is how long a fetched rate is considered fresh.
const DefaultTTL = 12 * time.Hour

// Provider fetches live conversion rates from an external FX service.
type Provider interface {
	// LatestRates returns all known quote rates against the given base
	// currency. Any failure (unreachable upstream, non-2xx response,
	// malformed body) is reported as an error wrapping domain.ErrFxFetchFailed.
	LatestRates(ctx context.Context, base domain.CurrencyCode) (map[domain.CurrencyCode]float64, error)

	// Name identifies the provider, recorded as the source of cached rates.
	Name() string
}

// CacheStore is the durable rate cache, keyed by (base, quote) pair.
// Get returns (nil, nil) on a clean miss. Upsert replaces any existing row for
// the pair; concurrent writers may race and last-write-wins is fine, rates are
// replaceable facts, not counters.
type CacheStore interface {
	Get(ctx context.Context, base, quote domain.CurrencyCode) (*domain.FxRate, error)
	Upsert(ctx context.Context, rate domain.FxRate) error
}

// Config carries resolver tuning. Zero values fall back to defaults.
type Config struct {
	// TTL is the freshness window stamped onto newly fetched rates.
	TTL time.Duration
}

// Resolver resolves a single conversion rate per currency pair, backed by the
// durable cache with graceful degradation to stale rates when the provider is
// down.
type Resolver struct {
	provider Provider
	cache    CacheStore
	ttl      time.Duration

	now func() time.Time // overridable in tests
}

// NewResolver creates a Resolver over the given provider and cache.
func NewResolver(provider Provider, cache CacheStore, cfg Config) *Resolver {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Resolve returns the rate converting one unit of from into to.
//
// Same-currency pairs return 1.0 immediately with no I/O. Otherwise a fresh
// cached rate wins; on a miss the provider is called and the result cached
// with the configured TTL. If the provider fails, the most recent cached rate
// is served regardless of expiry; only when no cached rate exists at all does
// the call fail, with domain.ErrNoRateAvailable.
func (r *Resolver) Resolve(ctx context.Context, from, to domain.CurrencyCode) (float64, error) {
	from = domain.NormalizeCurrency(string(from))
	to = domain.NormalizeCurrency(string(to))
	if from == to {
		return 1.0, nil
	}

	log := logger.FromContext(ctx)
	now := r.now()

	cached, err := r.cache.Get(ctx, from, to)
	if err != nil {
		// A broken cache read degrades to a plain provider fetch.
		log.Warn().Err(err).Str("base", string(from)).Str("quote", string(to)).
			Msg("fx cache read failed")
		cached = nil
	}
	if cached != nil && !cached.Expired(now) {
		return cached.Rate, nil
	}

	rates, err := r.provider.LatestRates(ctx, from)
	if err == nil {
		rate, ok := rates[to]
		if !ok {
			err = fmt.Errorf("provider returned no %s rate for base %s: %w",
				to, from, domain.ErrFxFetchFailed)
		} else {
			row := domain.FxRate{
				Base:      from,
				Quote:     to,
				Rate:      rate,
				FetchedAt: now,
				ExpiresAt: now.Add(r.ttl),
				Source:    r.provider.Name(),
			}
			if uerr := r.cache.Upsert(ctx, row); uerr != nil {
				log.Warn().Err(uerr).Str("base", string(from)).Str("quote", string(to)).
					Msg("fx cache upsert failed")
			}
			return rate, nil
		}
	}

	// Provider is down or malformed; fall back to whatever the cache still
	// holds for the pair, however stale.
	if cached != nil {
		log.Warn().Err(err).
			Str("base", string(from)).Str("quote", string(to)).
			Time("fetched_at", cached.FetchedAt).
			Msg("fx provider unavailable, serving stale cached rate")
		return cached.Rate, nil
	}
	return 0, fmt.Errorf("Resolve %s->%s: %v: %w", from, to, err, domain.ErrNoRateAvailable)
}

// Rates resolves one rate into the reporting currency for every distinct
// currency in the set, fanning the resolutions out concurrently. Any single
// failure fails the whole call; callers must not build reports on partial
// rate maps.
func (r *Resolver) Rates(ctx context.Context, currencies []domain.CurrencyCode, reporting domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	reporting = domain.NormalizeCurrency(string(reporting))

	distinct := make(map[domain.CurrencyCode]struct{}, len(currencies)+1)
	distinct[reporting] = struct{}{}
	for _, c := range currencies {
		distinct[domain.NormalizeCurrency(string(c))] = struct{}{}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		rateMap  = make(map[domain.CurrencyCode]float64, len(distinct))
		firstErr error
	)
	for c := range distinct {
		wg.Add(1)
		go func(c domain.CurrencyCode) {
			defer wg.Done()
			rate, err := r.Resolve(ctx, c, reporting)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			rateMap[c] = rate
		}(c)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("Rates: %w", firstErr)
	}
	return rateMap, nil
}
