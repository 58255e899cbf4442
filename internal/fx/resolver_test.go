package fx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/budgetbook/internal/domain"
)

type mockProvider struct {
	mu    sync.Mutex
	calls int
	rates map[domain.CurrencyCode]float64
	err   error

	// delay simulates a slow upstream; inFlight/maxInFlight record how many
	// fetches overlapped.
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func (m *mockProvider) LatestRates(ctx context.Context, base domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.rates, nil
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockCache struct {
	mu   sync.Mutex
	rows map[string]domain.FxRate
}

func newMockCache() *mockCache {
	return &mockCache{rows: make(map[string]domain.FxRate)}
}

func (m *mockCache) Get(ctx context.Context, base, quote domain.CurrencyCode) (*domain.FxRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[string(base)+"/"+string(quote)]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *mockCache) Upsert(ctx context.Context, rate domain.FxRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[string(rate.Base)+"/"+string(rate.Quote)] = rate
	return nil
}

func TestResolveSameCurrencyNoIO(t *testing.T) {
	provider := &mockProvider{}
	r := NewResolver(provider, newMockCache(), Config{})

	rate, err := r.Resolve(context.Background(), "usd", "USD")
	if err != nil {
		t.Fatalf("Resolve(usd, USD) error: %v", err)
	}
	if rate != 1.0 {
		t.Errorf("Resolve(usd, USD) = %v, want 1.0", rate)
	}
	if provider.callCount() != 0 {
		t.Errorf("same-currency resolve hit the provider %d times, want 0", provider.callCount())
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	provider := &mockProvider{rates: map[domain.CurrencyCode]float64{"USD": 1.1}}
	cache := newMockCache()
	r := NewResolver(provider, cache, Config{TTL: 12 * time.Hour})

	rate, err := r.Resolve(context.Background(), "EUR", "USD")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if rate != 1.1 {
		t.Errorf("Resolve = %v, want 1.1", rate)
	}

	// Second call inside the expiry window must be served from the cache.
	if _, err := r.Resolve(context.Background(), "EUR", "USD"); err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount())
	}

	row, _ := cache.Get(context.Background(), "EUR", "USD")
	if row == nil {
		t.Fatal("expected a cached row after resolve")
	}
	if got := row.ExpiresAt.Sub(row.FetchedAt); got != 12*time.Hour {
		t.Errorf("cached TTL = %v, want 12h", got)
	}
	if row.Source != "mock" {
		t.Errorf("cached source = %q, want mock", row.Source)
	}
}

func TestResolveStaleFallback(t *testing.T) {
	provider := &mockProvider{err: errors.New("upstream down")}
	cache := newMockCache()
	stale := domain.FxRate{
		Base: "EUR", Quote: "USD", Rate: 1.08,
		FetchedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-36 * time.Hour),
		Source:    "mock",
	}
	if err := cache.Upsert(context.Background(), stale); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(provider, cache, Config{})

	rate, err := r.Resolve(context.Background(), "EUR", "USD")
	if err != nil {
		t.Fatalf("Resolve with stale cache should not fail, got: %v", err)
	}
	if rate != 1.08 {
		t.Errorf("Resolve = %v, want stale rate 1.08", rate)
	}
}

func TestResolveNoRateAvailable(t *testing.T) {
	provider := &mockProvider{err: errors.New("upstream down")}
	r := NewResolver(provider, newMockCache(), Config{})

	_, err := r.Resolve(context.Background(), "EUR", "USD")
	if !errors.Is(err, domain.ErrNoRateAvailable) {
		t.Errorf("Resolve error = %v, want ErrNoRateAvailable", err)
	}
}

func TestResolveMissingQuoteFallsBack(t *testing.T) {
	// Provider responds but lacks the requested quote currency.
	provider := &mockProvider{rates: map[domain.CurrencyCode]float64{"GBP": 0.85}}
	r := NewResolver(provider, newMockCache(), Config{})

	_, err := r.Resolve(context.Background(), "EUR", "USD")
	if !errors.Is(err, domain.ErrNoRateAvailable) {
		t.Errorf("Resolve error = %v, want ErrNoRateAvailable", err)
	}
}

func TestRatesFanOut(t *testing.T) {
	provider := &mockProvider{rates: map[domain.CurrencyCode]float64{"USD": 2.0}}
	r := NewResolver(provider, newMockCache(), Config{})

	rates, err := r.Rates(context.Background(), []domain.CurrencyCode{"EUR", "GBP", "USD", "eur"}, "USD")
	if err != nil {
		t.Fatalf("Rates error: %v", err)
	}
	if len(rates) != 3 {
		t.Errorf("got %d rates, want 3 (EUR, GBP, USD)", len(rates))
	}
	if rates["USD"] != 1.0 {
		t.Errorf("rates[USD] = %v, want 1.0", rates["USD"])
	}
	if rates["EUR"] != 2.0 || rates["GBP"] != 2.0 {
		t.Errorf("converted rates = %v, want 2.0 each", rates)
	}
}

func TestRatesFanOutOverlapsUnderSlowProvider(t *testing.T) {
	provider := &mockProvider{
		rates: map[domain.CurrencyCode]float64{"USD": 2.0},
		delay: 50 * time.Millisecond,
	}
	r := NewResolver(provider, newMockCache(), Config{})

	rates, err := r.Rates(context.Background(), []domain.CurrencyCode{"EUR", "GBP", "CHF"}, "USD")
	if err != nil {
		t.Fatalf("Rates error: %v", err)
	}
	if len(rates) != 4 {
		t.Errorf("got %d rates, want 4", len(rates))
	}

	provider.mu.Lock()
	maxInFlight := provider.maxInFlight
	provider.mu.Unlock()
	if maxInFlight < 2 {
		t.Errorf("max in-flight fetches = %d, want >= 2 (resolutions must fan out, not run serially)", maxInFlight)
	}
}

func TestRatesFailsWhole(t *testing.T) {
	provider := &mockProvider{err: errors.New("upstream down")}
	r := NewResolver(provider, newMockCache(), Config{})

	_, err := r.Rates(context.Background(), []domain.CurrencyCode{"EUR"}, "USD")
	if !errors.Is(err, domain.ErrNoRateAvailable) {
		t.Errorf("Rates error = %v, want ErrNoRateAvailable", err)
	}
}
