package venue

import "context"

// Venue defines the trading operations the execution layer needs from a
// counterparty: a top-of-book REST read, a balance read, and market-order
// placement in both directions. Both VenueAClient and VenueBClient satisfy
// this, so execution's Executor.ExecuteLive can treat the two legs uniformly.
type Venue interface {
	// Name identifies the venue for logs and metrics labels.
	Name() string

	// GetQuote polls the current top-of-book for the venue's configured pair.
	GetQuote(ctx context.Context) (Quote, error)

	// GetBalance returns the available/reserved/total balance of a single
	// currency held at the venue.
	GetBalance(ctx context.Context, currency string) (Balance, error)

	// PlaceMarketBuy buys the base asset, spending up to quoteAmount of the
	// quote currency (e.g. ZAR on venue A, USDT on venue B).
	PlaceMarketBuy(ctx context.Context, quoteAmount float64) (OrderResult, error)

	// PlaceMarketSell sells baseAmount of the base asset (BTC) for the quote
	// currency.
	PlaceMarketSell(ctx context.Context, baseAmount float64) (OrderResult, error)
}
