package venue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dtarb/arbengine/internal/metrics"
	"github.com/dtarb/arbengine/internal/risk"
)

// VenueBClient is a REST client for the USDT-quoted spot venue, backed by
// the go-binance SDK with a sticky fallback-host probe: when the primary
// host starts failing, the client walks the fallback list and pins the
// first host that answers, mirroring the venue's documented multi-region
// failover behaviour.
type VenueBClient struct {
	client       *binance.Client
	symbol       string
	limiter      *rate.Limiter
	retry        RetryConfig
	fallbackURLs []string
	activeURL    string
	hasCreds     bool
	breaker      *gobreaker.CircuitBreaker
}

// VenueBConfig configures a VenueBClient.
type VenueBConfig struct {
	APIKey           string
	APISecret        string
	BaseURL          string
	FallbackBaseURLs []string
	Symbol           string
}

// NewVenueBClient builds a venue B REST client around the go-binance SDK.
// breaker may be nil, in which case calls run without circuit-breaker
// protection (tests commonly do this).
func NewVenueBClient(cfg VenueBConfig, breaker *risk.CircuitBreakerManager) *VenueBClient {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	client.BaseURL = cfg.BaseURL

	return &VenueBClient{
		client:       client,
		symbol:       cfg.Symbol,
		limiter:      rate.NewLimiter(rate.Limit(10), 20),
		retry:        DefaultRetryConfig(),
		fallbackURLs: cfg.FallbackBaseURLs,
		activeURL:    cfg.BaseURL,
		hasCreds:     cfg.APIKey != "" && cfg.APISecret != "",
		breaker:      breakerFor(breaker, (*risk.CircuitBreakerManager).VenueB),
	}
}

// Name implements Venue.
func (c *VenueBClient) Name() string { return "venue_b" }

// failover walks the configured hosts, starting from the active one, and
// pins the first that serves a ping successfully.
func (c *VenueBClient) failover(ctx context.Context) error {
	hosts := append([]string{c.activeURL}, c.fallbackURLs...)
	var lastErr error
	for _, host := range hosts {
		c.client.BaseURL = host
		if err := c.client.NewPingService().Do(ctx); err == nil {
			c.activeURL = host
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("venue_b: all hosts unreachable: %w", lastErr)
}

func (c *VenueBClient) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// GetQuote implements Venue using the book-ticker endpoint for top-of-book.
func (c *VenueBClient) GetQuote(ctx context.Context) (quote Quote, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordVenueAPICall(c.Name(), "get_quote", float64(time.Since(start).Microseconds())/1000, err)
	}()

	if err = c.wait(ctx); err != nil {
		return Quote{}, err
	}

	var tickers []*binance.BookTicker
	err = WithBreaker(c.breaker, func() error {
		return WithRetry(ctx, c.retry, func() error {
			var svcErr error
			tickers, svcErr = c.client.NewListBookTickersService().Symbol(c.symbol).Do(ctx)
			if svcErr != nil {
				if failErr := c.failover(ctx); failErr != nil {
					return fmt.Errorf("%w (failover also failed: %v)", svcErr, failErr)
				}
				return svcErr
			}
			return nil
		})
	})
	if err != nil {
		return Quote{}, fmt.Errorf("venue_b get quote: %w", err)
	}
	if len(tickers) == 0 {
		return Quote{}, fmt.Errorf("venue_b get quote: empty book ticker response")
	}

	t := tickers[0]
	bid, err := strconv.ParseFloat(t.BidPrice, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("venue_b quote: invalid bid: %w", err)
	}
	ask, err := strconv.ParseFloat(t.AskPrice, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("venue_b quote: invalid ask: %w", err)
	}

	return Quote{
		Bid:       bid,
		Ask:       ask,
		Last:      (bid + ask) / 2,
		Venue:     c.Name(),
		Pair:      c.symbol,
		Timestamp: time.Now(),
	}, nil
}

// Price returns the mid price for an arbitrary symbol on venue B, satisfying
// fx.BookSource for the USDT/USD stablecoin cross.
func (c *VenueBClient) Price(ctx context.Context, symbol string) (mid float64, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordVenueAPICall(c.Name(), "price_"+symbol, float64(time.Since(start).Microseconds())/1000, err)
	}()

	if err = c.wait(ctx); err != nil {
		return 0, err
	}

	var tickers []*binance.BookTicker
	err = WithBreaker(c.breaker, func() error {
		return WithRetry(ctx, c.retry, func() error {
			var svcErr error
			tickers, svcErr = c.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
			return svcErr
		})
	})
	if err != nil {
		return 0, fmt.Errorf("venue_b price %s: %w", symbol, err)
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("venue_b price %s: empty book ticker response", symbol)
	}

	t := tickers[0]
	bid, err := strconv.ParseFloat(t.BidPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("venue_b price %s: invalid bid: %w", symbol, err)
	}
	ask, err := strconv.ParseFloat(t.AskPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("venue_b price %s: invalid ask: %w", symbol, err)
	}
	return (bid + ask) / 2, nil
}

// GetBalance implements Venue.
func (c *VenueBClient) GetBalance(ctx context.Context, currency string) (bal Balance, err error) {
	if !c.hasCreds {
		return Balance{}, fmt.Errorf("venue_b get balance: %s", errAPIKeyNotConfigured)
	}

	start := time.Now()
	defer func() {
		metrics.RecordVenueAPICall(c.Name(), "get_balance", float64(time.Since(start).Microseconds())/1000, err)
	}()

	if err = c.wait(ctx); err != nil {
		return Balance{}, err
	}

	var account *binance.Account
	err = WithBreaker(c.breaker, func() error {
		return WithRetry(ctx, c.retry, func() error {
			var svcErr error
			account, svcErr = c.client.NewGetAccountService().Do(ctx)
			return svcErr
		})
	})
	if err != nil {
		return Balance{}, fmt.Errorf("venue_b get balance: %w", err)
	}

	for _, b := range account.Balances {
		if b.Asset != currency {
			continue
		}
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		return Balance{
			Currency:  currency,
			Available: free,
			Reserved:  locked,
			Total:     free + locked,
		}, nil
	}
	return Balance{}, fmt.Errorf("venue_b balance: currency %s not found", currency)
}

// PlaceMarketBuy implements Venue, spending quoteAmount USDT (quoteOrderQty).
func (c *VenueBClient) PlaceMarketBuy(ctx context.Context, quoteAmount float64) (OrderResult, error) {
	return c.placeMarketOrder(ctx, binance.SideTypeBuy, func(svc *binance.CreateOrderService) *binance.CreateOrderService {
		return svc.QuoteOrderQty(strconv.FormatFloat(quoteAmount, 'f', 2, 64))
	})
}

// PlaceMarketSell implements Venue, selling baseAmount BTC.
func (c *VenueBClient) PlaceMarketSell(ctx context.Context, baseAmount float64) (OrderResult, error) {
	return c.placeMarketOrder(ctx, binance.SideTypeSell, func(svc *binance.CreateOrderService) *binance.CreateOrderService {
		return svc.Quantity(strconv.FormatFloat(baseAmount, 'f', 8, 64))
	})
}

func (c *VenueBClient) placeMarketOrder(ctx context.Context, side binance.SideType, amount func(*binance.CreateOrderService) *binance.CreateOrderService) (result OrderResult, err error) {
	if !c.hasCreds {
		err = fmt.Errorf("venue_b market order: %s", errAPIKeyNotConfigured)
		return OrderResult{Success: false, Error: errAPIKeyNotConfigured}, err
	}

	start := time.Now()
	defer func() {
		metrics.RecordVenueAPICall(c.Name(), "market_order_"+strings.ToLower(string(side)), float64(time.Since(start).Microseconds())/1000, err)
	}()

	if err = c.wait(ctx); err != nil {
		return OrderResult{}, err
	}

	var order *binance.CreateOrderResponse
	err = WithBreaker(c.breaker, func() error {
		return WithRetry(ctx, c.retry, func() error {
			svc := amount(c.client.NewCreateOrderService().
				Symbol(c.symbol).
				Side(side).
				Type(binance.OrderTypeMarket))
			var svcErr error
			order, svcErr = svc.Do(ctx)
			return svcErr
		})
	})
	if err != nil {
		log.Error().Err(err).Str("side", string(side)).Msg("venue_b market order failed")
		return OrderResult{Success: false, Error: err.Error()}, err
	}

	filledQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	var filledPrice float64
	if len(order.Fills) > 0 {
		filledPrice, _ = strconv.ParseFloat(order.Fills[0].Price, 64)
	}

	return OrderResult{
		Success:      true,
		OrderID:      strconv.FormatInt(order.OrderID, 10),
		FilledAmount: filledQty,
		FilledPrice:  filledPrice,
	}, nil
}
