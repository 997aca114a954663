package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtarb/arbengine/internal/edge"
	"github.com/dtarb/arbengine/internal/inventory"
	"github.com/dtarb/arbengine/internal/venue"
)

type stubVenue struct {
	name       string
	buyResult  venue.OrderResult
	sellResult venue.OrderResult
	buyErr     error
	sellErr    error
	delay      time.Duration
}

func (s *stubVenue) Name() string { return s.name }
func (s *stubVenue) GetQuote(ctx context.Context) (venue.Quote, error) { return venue.Quote{}, nil }
func (s *stubVenue) GetBalance(ctx context.Context, currency string) (venue.Balance, error) {
	return venue.Balance{}, nil
}
func (s *stubVenue) PlaceMarketBuy(ctx context.Context, quoteAmount float64) (venue.OrderResult, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.buyResult, s.buyErr
}
func (s *stubVenue) PlaceMarketSell(ctx context.Context, baseAmount float64) (venue.OrderResult, error) {
	return s.sellResult, s.sellErr
}

func testLimits() inventory.Limits {
	return inventory.Limits{MaxTradeZAR: 5000, MaxTradeSizeBTC: 0.01, MinTradeSizeBTC: 0.0001}
}

func TestExecutePaper_AppliesFloatsAndReturnsTrade(t *testing.T) {
	inv := inventory.NewManager(inventory.SafetyBuffers{}, testLimits())
	inv.Initialize(1_000_000)

	exec := New(nil, nil, inv, Fees{VenueA: 0.001, VenueB: 0.001})
	result := edge.Result{Direction: edge.DirectionAtoB, BuyPrice: 1_000_000, SellPrice: 60_000, NetEdgeBps: 30}

	trade, err := exec.ExecutePaper(edge.DirectionAtoB, result, 1_000_000, 16.5)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "paper", trade.Status)
	assert.Greater(t, trade.BTCAmount, 0.0)
}

func TestExecutePaper_NotExecutableReturnsNilNil(t *testing.T) {
	inv := inventory.NewManager(inventory.SafetyBuffers{}, testLimits())
	// Never initialised: all floats zero, nothing executable.
	exec := New(nil, nil, inv, Fees{})
	result := edge.Result{Direction: edge.DirectionAtoB, NetEdgeBps: 30}

	trade, err := exec.ExecutePaper(edge.DirectionAtoB, result, 1_000_000, 16.5)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestExecuteLive_BothSucceed(t *testing.T) {
	a := &stubVenue{name: "venue_a", sellResult: venue.OrderResult{Success: true, FilledPrice: 1_000_000}}
	b := &stubVenue{name: "venue_b", buyResult: venue.OrderResult{Success: true, FilledPrice: 60_000}}

	exec := New(a, b, nil, Fees{VenueA: 0.001, VenueB: 0.001})
	trade, err := exec.ExecuteLive(context.Background(), edge.DirectionBtoA, 0.001, 1000, 16.5)

	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "completed", trade.Status)
}

func TestExecuteLive_OneLegFails_NoTradeNoUnwind(t *testing.T) {
	a := &stubVenue{name: "venue_a", sellResult: venue.OrderResult{Success: false, Error: "insufficient balance"}}
	b := &stubVenue{name: "venue_b", buyResult: venue.OrderResult{Success: true, FilledPrice: 60_000}}

	exec := New(a, b, nil, Fees{})
	trade, err := exec.ExecuteLive(context.Background(), edge.DirectionBtoA, 0.001, 1000, 16.5)

	assert.Error(t, err)
	assert.Nil(t, trade)
}

func TestExecuteLive_DispatchIsConcurrent(t *testing.T) {
	a := &stubVenue{name: "venue_a", buyResult: venue.OrderResult{Success: true, FilledPrice: 1_000_000}, delay: 50 * time.Millisecond}
	b := &stubVenue{name: "venue_b", sellResult: venue.OrderResult{Success: true, FilledPrice: 60_000}}

	exec := New(a, b, nil, Fees{})
	start := time.Now()
	_, err := exec.ExecuteLive(context.Background(), edge.DirectionAtoB, 0.001, 1000, 16.5)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 150*time.Millisecond, "legs should dispatch concurrently, not sequentially")
}
