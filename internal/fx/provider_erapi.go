package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/budgetbook/internal/domain"
)

const defaultERAPIBaseURL = "https://open.er-api.com/v6/latest"

// ERAPIProvider fetches live rates from the open.er-api.com exchange rate API.
// One GET per base currency returns every quote rate at once.
type ERAPIProvider struct {
	cli     *http.Client
	baseURL string
}

// NewERAPIProvider creates a provider against the public endpoint.
func NewERAPIProvider() *ERAPIProvider {
	return &ERAPIProvider{
		cli:     &http.Client{Timeout: 8 * time.Second},
		baseURL: defaultERAPIBaseURL,
	}
}

// NewERAPIProviderWithURL creates a provider against a custom endpoint.
// Used by tests with an httptest server.
func NewERAPIProviderWithURL(baseURL string) *ERAPIProvider {
	return &ERAPIProvider{
		cli:     &http.Client{Timeout: 8 * time.Second},
		baseURL: baseURL,
	}
}

// Name implements Provider.
func (p *ERAPIProvider) Name() string {
	return "open.er-api.com"
}

// LatestRates implements Provider. Every failure mode (transport error,
// non-2xx status, malformed body, missing rates) collapses into
// domain.ErrFxFetchFailed.
func (p *ERAPIProvider) LatestRates(ctx context.Context, base domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	base = domain.NormalizeCurrency(string(base))
	if base == "" {
		return nil, fmt.Errorf("LatestRates: empty base currency: %w", domain.ErrFxFetchFailed)
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("LatestRates: building request: %v: %w", err, domain.ErrFxFetchFailed)
	}
	req.Header.Set("User-Agent", "budgetbook/1.0")

	resp, err := p.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LatestRates: calling provider: %v: %w", err, domain.ErrFxFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("LatestRates: provider http %d: %w", resp.StatusCode, domain.ErrFxFetchFailed)
	}

	var raw struct {
		Result   string             `json:"result"`
		BaseCode string             `json:"base_code"`
		Rates    map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("LatestRates: decoding body: %v: %w", err, domain.ErrFxFetchFailed)
	}
	if raw.Result != "success" || len(raw.Rates) == 0 {
		return nil, fmt.Errorf("LatestRates: provider result %q with %d rates: %w",
			raw.Result, len(raw.Rates), domain.ErrFxFetchFailed)
	}

	rates := make(map[domain.CurrencyCode]float64, len(raw.Rates))
	for code, rate := range raw.Rates {
		rates[domain.NormalizeCurrency(code)] = rate
	}
	return rates, nil
}
