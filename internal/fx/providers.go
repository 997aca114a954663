package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Provider fetches a live USD/ZAR rate from a single upstream source.
type Provider interface {
	Name() string
	FetchUSDZAR(ctx context.Context) (float64, error)
}

// httpProvider is the shared shape for the three USD/ZAR providers: GET a
// JSON document, pull one field out of it.
type httpProvider struct {
	name       string
	url        string
	httpClient *http.Client
	extract    func(body []byte) (float64, error)
}

func (p *httpProvider) Name() string { return p.name }

func (p *httpProvider) FetchUSDZAR(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: request failed: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: unexpected status %d", p.name, resp.StatusCode)
	}
	var buf [1 << 16]byte
	n, _ := resp.Body.Read(buf[:])
	rate, err := p.extract(buf[:n])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", p.name, err)
	}
	return rate, nil
}

// NewExchangeRateAPIProvider hits exchangerate-api.com's free latest-rates
// endpoint for USD base, pulling the ZAR conversion rate.
func NewExchangeRateAPIProvider() Provider {
	return &httpProvider{
		name:       "exchangerate-api",
		url:        "https://api.exchangerate-api.com/v4/latest/USD",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		extract: func(body []byte) (float64, error) {
			var payload struct {
				Rates map[string]float64 `json:"rates"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return 0, err
			}
			rate, ok := payload.Rates["ZAR"]
			if !ok {
				return 0, fmt.Errorf("ZAR rate missing from response")
			}
			return rate, nil
		},
	}
}

// NewFrankfurterProvider hits the Frankfurter ECB-rates mirror.
func NewFrankfurterProvider() Provider {
	return &httpProvider{
		name:       "frankfurter",
		url:        "https://api.frankfurter.app/latest?from=USD&to=ZAR",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		extract: func(body []byte) (float64, error) {
			var payload struct {
				Rates map[string]float64 `json:"rates"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return 0, err
			}
			rate, ok := payload.Rates["ZAR"]
			if !ok {
				return 0, fmt.Errorf("ZAR rate missing from response")
			}
			return rate, nil
		},
	}
}

// NewFixerFreeProvider hits a third, independent open USD/ZAR endpoint used
// as the last provider in the failover chain.
func NewFixerFreeProvider() Provider {
	return &httpProvider{
		name:       "fixer-free",
		url:        "https://open.er-api.com/v6/latest/USD",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		extract: func(body []byte) (float64, error) {
			var payload struct {
				Rates map[string]float64 `json:"rates"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return 0, err
			}
			rate, ok := payload.Rates["ZAR"]
			if !ok {
				return 0, fmt.Errorf("ZAR rate missing from response")
			}
			return rate, nil
		},
	}
}
