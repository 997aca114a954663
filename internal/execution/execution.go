// Package execution dispatches a selected trade: in paper mode it mutates
// the synthetic floats in place, in live mode it issues the buy and sell
// market orders concurrently and reconciles their results.
package execution

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtarb/arbengine/internal/edge"
	"github.com/dtarb/arbengine/internal/inventory"
	"github.com/dtarb/arbengine/internal/venue"
)

// Fees bundles the two venues' trading fee rates (fractional, e.g. 0.001).
type Fees struct {
	VenueA float64
	VenueB float64
}

// Trade is the realised record of one execution, paper or live.
type Trade struct {
	Direction   edge.Direction
	BTCAmount   float64
	BuyPrice    float64
	SellPrice   float64
	ProfitZAR   float64
	ProfitUSD   float64
	Status      string // "paper", "completed", "failed"
	LatencyMs   float64
	ExecutedAt  time.Time
}

// Executor dispatches trades against the two venue clients and the
// inventory manager.
type Executor struct {
	venueA venue.Venue
	venueB venue.Venue
	inv    *inventory.Manager
	fees   Fees
}

// New builds an Executor.
func New(venueA, venueB venue.Venue, inv *inventory.Manager, fees Fees) *Executor {
	return &Executor{venueA: venueA, venueB: venueB, inv: inv, fees: fees}
}

// ExecutePaper re-checks executability and size, applies fees to both legs
// of the synthetic floats, and returns the resulting Trade. Returns
// (nil, nil) if the trade is not executable or the computed size rounds to
// zero — a non-error, "skip" outcome the caller logs as an Opportunity.
func (e *Executor) ExecutePaper(direction edge.Direction, result edge.Result, venueALast, usdtZar float64) (*Trade, error) {
	start := time.Now()

	if !e.inv.Executable(direction) {
		return nil, nil
	}

	venueBPrice := result.SellPrice
	if direction == edge.DirectionBtoA {
		venueBPrice = result.BuyPrice
	}

	btcAmount, zarNotional := e.inv.TradeSize(direction, venueALast, venueBPrice)
	if btcAmount <= 0 {
		return nil, nil
	}

	profitZAR, profitUSD := e.inv.ApplyPaperTrade(direction, btcAmount, zarNotional, venueBPrice, e.fees.VenueA, e.fees.VenueB, result.NetEdgeBps, usdtZar)

	return &Trade{
		Direction:  direction,
		BTCAmount:  btcAmount,
		BuyPrice:   result.BuyPrice,
		SellPrice:  result.SellPrice,
		ProfitZAR:  profitZAR,
		ProfitUSD:  profitUSD,
		Status:     "paper",
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000,
		ExecutedAt: start,
	}, nil
}

// ExecuteLive issues the buy and sell legs concurrently, awaits both, and
// reconciles. If either leg fails, both outcomes are logged and no trade is
// returned — the opposite leg is never automatically unwound.
func (e *Executor) ExecuteLive(ctx context.Context, direction edge.Direction, btcAmount, zarNotional float64, usdtZar float64) (*Trade, error) {
	start := time.Now()

	var buyResult, sellResult venue.OrderResult
	g, gctx := errgroup.WithContext(ctx)

	buyVenue, sellVenue := e.legVenues(direction)

	g.Go(func() error {
		var err error
		if direction == edge.DirectionAtoB {
			buyResult, err = buyVenue.PlaceMarketBuy(gctx, zarNotional)
		} else {
			usdtNotional := zarNotional
			if usdtZar > 0 {
				usdtNotional = zarNotional / usdtZar
			}
			buyResult, err = buyVenue.PlaceMarketBuy(gctx, usdtNotional)
		}
		return err
	})
	g.Go(func() error {
		var err error
		sellResult, err = sellVenue.PlaceMarketSell(gctx, btcAmount)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("execution: leg failed, no trade recorded (buy success=%v sell success=%v): %w", buyResult.Success, sellResult.Success, err)
	}
	if !buyResult.Success || !sellResult.Success {
		return nil, fmt.Errorf("execution: leg reported failure (buy=%q sell=%q)", buyResult.Error, sellResult.Error)
	}

	buyPrice := buyResult.FilledPrice
	sellPrice := sellResult.FilledPrice
	profitZAR, profitUSD := realisedProfit(direction, btcAmount, buyPrice, sellPrice, e.fees, usdtZar)

	return &Trade{
		Direction:  direction,
		BTCAmount:  btcAmount,
		BuyPrice:   buyPrice,
		SellPrice:  sellPrice,
		ProfitZAR:  profitZAR,
		ProfitUSD:  profitUSD,
		Status:     "completed",
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000,
		ExecutedAt: start,
	}, nil
}

func (e *Executor) legVenues(direction edge.Direction) (buy, sell venue.Venue) {
	if direction == edge.DirectionAtoB {
		return e.venueA, e.venueB
	}
	return e.venueB, e.venueA
}

// realisedProfit computes ZAR and USD profit from actual fill prices,
// applying each leg's fee. buyPrice/sellPrice are each in their own venue's
// quote currency (ZAR for venue A, USDT for venue B).
func realisedProfit(direction edge.Direction, btcAmount, buyPrice, sellPrice float64, fees Fees, usdtZar float64) (profitZAR, profitUSD float64) {
	switch direction {
	case edge.DirectionAtoB:
		costZAR := btcAmount * buyPrice * (1 + fees.VenueA)
		proceedsUSDT := btcAmount * sellPrice * (1 - fees.VenueB)
		profitZAR = proceedsUSDT*usdtZar - costZAR
	case edge.DirectionBtoA:
		costUSDT := btcAmount * buyPrice * (1 + fees.VenueB)
		proceedsZAR := btcAmount * sellPrice * (1 - fees.VenueA)
		profitZAR = proceedsZAR - costUSDT*usdtZar
	}
	if usdtZar > 0 {
		profitUSD = profitZAR / usdtZar
	}
	return profitZAR, profitUSD
}
