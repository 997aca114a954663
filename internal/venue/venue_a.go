package venue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/dtarb/arbengine/internal/metrics"
	"github.com/dtarb/arbengine/internal/risk"
)

// VenueAClient is a REST client for the ZAR-quoted spot venue (Luno-shaped
// API: basic auth, form-encoded market orders, ticker/balance GETs).
type VenueAClient struct {
	httpClient *http.Client
	baseURL    string
	pair       string
	authHeader string
	hasCreds   bool
	retry      RetryConfig
	breaker    *gobreaker.CircuitBreaker
}

// VenueAConfig configures a VenueAClient.
type VenueAConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Pair      string
}

// NewVenueAClient builds a venue A REST client. breaker may be nil, in which
// case calls run without circuit-breaker protection (tests commonly do this).
func NewVenueAClient(cfg VenueAConfig, breaker *risk.CircuitBreakerManager) *VenueAClient {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.APIKey + ":" + cfg.APISecret))
	return &VenueAClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		pair:       cfg.Pair,
		authHeader: "Basic " + creds,
		hasCreds:   cfg.APIKey != "" && cfg.APISecret != "",
		retry:      DefaultRetryConfig(),
		breaker:    breakerFor(breaker, (*risk.CircuitBreakerManager).VenueA),
	}
}

const errAPIKeyNotConfigured = "API key not configured"

// Name implements Venue.
func (c *VenueAClient) Name() string { return "venue_a" }

type venueATicker struct {
	Bid        string `json:"bid"`
	Ask        string `json:"ask"`
	LastTrade  string `json:"last_trade"`
	Pair       string `json:"pair"`
	StatusCode string `json:"error_code"`
}

// GetQuote implements Venue.
func (c *VenueAClient) GetQuote(ctx context.Context) (quote Quote, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordVenueAPICall(c.Name(), "get_quote", float64(time.Since(start).Microseconds())/1000, err)
	}()

	var ticker venueATicker
	err = WithBreaker(c.breaker, func() error {
		return WithRetry(ctx, c.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet,
				fmt.Sprintf("%s/ticker?pair=%s", c.baseURL, c.pair), nil)
			if err != nil {
				return err
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("venue_a ticker: 429 too many requests")
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("venue_a ticker: unexpected status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&ticker)
		})
	})
	if err != nil {
		return Quote{}, fmt.Errorf("venue_a get quote: %w", err)
	}

	bid, err := strconv.ParseFloat(ticker.Bid, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("venue_a quote: missing/invalid bid: %w", err)
	}
	ask, err := strconv.ParseFloat(ticker.Ask, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("venue_a quote: missing/invalid ask: %w", err)
	}
	last, err := strconv.ParseFloat(ticker.LastTrade, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("venue_a quote: missing/invalid last trade: %w", err)
	}

	return Quote{
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Venue:     c.Name(),
		Pair:      c.pair,
		Timestamp: time.Now(),
	}, nil
}

type venueABalanceEntry struct {
	Asset    string `json:"asset"`
	Balance  string `json:"balance"`
	Reserved string `json:"reserved"`
}

type venueABalanceResponse struct {
	Balance []venueABalanceEntry `json:"balance"`
}

// GetBalance implements Venue.
func (c *VenueAClient) GetBalance(ctx context.Context, currency string) (bal Balance, err error) {
	if !c.hasCreds {
		return Balance{}, fmt.Errorf("venue_a get balance: %s", errAPIKeyNotConfigured)
	}

	start := time.Now()
	defer func() {
		metrics.RecordVenueAPICall(c.Name(), "get_balance", float64(time.Since(start).Microseconds())/1000, err)
	}()

	var balResp venueABalanceResponse
	err = WithBreaker(c.breaker, func() error {
		return WithRetry(ctx, c.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/balance", nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", c.authHeader)
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("venue_a balance: unexpected status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&balResp)
		})
	})
	if err != nil {
		return Balance{}, fmt.Errorf("venue_a get balance: %w", err)
	}

	for _, entry := range balResp.Balance {
		if !strings.EqualFold(entry.Asset, currency) {
			continue
		}
		avail, _ := strconv.ParseFloat(entry.Balance, 64)
		reserved, _ := strconv.ParseFloat(entry.Reserved, 64)
		return Balance{
			Currency:  currency,
			Available: avail,
			Reserved:  reserved,
			Total:     avail + reserved,
		}, nil
	}
	return Balance{}, fmt.Errorf("venue_a balance: currency %s not found", currency)
}

type venueAOrderResponse struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

// PlaceMarketBuy implements Venue, spending quoteAmount ZAR.
func (c *VenueAClient) PlaceMarketBuy(ctx context.Context, quoteAmount float64) (OrderResult, error) {
	return c.placeMarketOrder(ctx, "BUY", url.Values{
		"pair":           {c.pair},
		"type":           {"BUY"},
		"counter_volume": {strconv.FormatFloat(quoteAmount, 'f', 2, 64)},
	})
}

// PlaceMarketSell implements Venue, selling baseAmount BTC.
func (c *VenueAClient) PlaceMarketSell(ctx context.Context, baseAmount float64) (OrderResult, error) {
	return c.placeMarketOrder(ctx, "SELL", url.Values{
		"pair":        {c.pair},
		"type":        {"SELL"},
		"base_volume": {strconv.FormatFloat(baseAmount, 'f', 8, 64)},
	})
}

func (c *VenueAClient) placeMarketOrder(ctx context.Context, side string, form url.Values) (result OrderResult, err error) {
	if !c.hasCreds {
		err = fmt.Errorf("venue_a market order: %s", errAPIKeyNotConfigured)
		return OrderResult{Success: false, Error: errAPIKeyNotConfigured}, err
	}

	start := time.Now()
	defer func() {
		metrics.RecordVenueAPICall(c.Name(), "market_order_"+strings.ToLower(side), float64(time.Since(start).Microseconds())/1000, err)
	}()

	var orderResp venueAOrderResponse
	err = WithBreaker(c.breaker, func() error {
		return WithRetry(ctx, c.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/marketorder",
				strings.NewReader(form.Encode()))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", c.authHeader)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("venue_a market order: unexpected status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&orderResp)
		})
	})
	if err != nil {
		log.Error().Err(err).Str("side", side).Msg("venue_a market order failed")
		return OrderResult{Success: false, Error: err.Error()}, err
	}
	if orderResp.Error != "" {
		return OrderResult{Success: false, Error: orderResp.Error}, fmt.Errorf("venue_a market order rejected: %s", orderResp.Error)
	}
	return OrderResult{Success: true, OrderID: orderResp.OrderID}, nil
}
