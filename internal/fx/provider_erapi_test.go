package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/budgetbook/internal/domain"
)

func TestERAPIProviderLatestRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/EUR" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"success","base_code":"EUR","rates":{"USD":1.1,"gbp":0.85,"EUR":1}}`))
	}))
	defer srv.Close()

	p := NewERAPIProviderWithURL(srv.URL)
	rates, err := p.LatestRates(context.Background(), "eur")
	if err != nil {
		t.Fatalf("LatestRates error: %v", err)
	}
	if rates["USD"] != 1.1 {
		t.Errorf("rates[USD] = %v, want 1.1", rates["USD"])
	}
	if rates["GBP"] != 0.85 {
		t.Errorf("rates[GBP] = %v, want 0.85 (codes normalized)", rates["GBP"])
	}
}

func TestERAPIProviderFailureModes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":`))
			},
		},
		{
			name: "error result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
			},
		},
		{
			name: "empty rates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"success","rates":{}}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewERAPIProviderWithURL(srv.URL)
			_, err := p.LatestRates(context.Background(), "EUR")
			if !errors.Is(err, domain.ErrFxFetchFailed) {
				t.Errorf("LatestRates error = %v, want ErrFxFetchFailed", err)
			}
		})
	}
}
