// Package edge computes the cross-venue spread in both trading directions
// and classifies profitability net of slippage and per-venue fees.
package edge

import (
	"fmt"

	"github.com/dtarb/arbengine/internal/priceservice"
)

// Direction identifies which venue is bought on and which is sold on.
type Direction string

const (
	// DirectionAtoB buys on venue A (ZAR) and sells on venue B (USDT).
	DirectionAtoB Direction = "A->B"
	// DirectionBtoA buys on venue B (USDT) and sells on venue A (ZAR).
	DirectionBtoA Direction = "B->A"
)

// Params are the scalar inputs that do not change between evaluations
// within a single run.
type Params struct {
	SlippageBps   float64
	FeeA          float64
	FeeB          float64
	MinNetEdgeBps float64
}

// Result is one direction's computed spread for a single snapshot.
type Result struct {
	Direction    Direction
	BuyVenue     string
	SellVenue    string
	BuyPrice     float64
	SellPrice    float64
	GrossEdgeBps float64
	NetEdgeBps   float64
	IsProfitable bool
}

// Evaluation holds both directions' results plus which one is "best".
type Evaluation struct {
	AtoB   Result
	BtoA   Result
	Best   Result
	Err    error
}

// Evaluate computes both directions' edges from snapshot under usdtZar
// (the USDT-denominated ZAR cross rate) and params. Returns an error marker
// (Evaluation.Err set, no direction profitable) if either venue's last
// price is zero.
func Evaluate(snap priceservice.Snapshot, usdtZar float64, params Params) Evaluation {
	aLast := snap.VenueALast
	bLast := (snap.VenueBBid + snap.VenueBAsk) / 2

	if aLast == 0 || bLast == 0 {
		err := fmt.Errorf("edge: zero last price (venue A=%.2f venue B=%.2f)", aLast, bLast)
		empty := Result{}
		return Evaluation{AtoB: empty, BtoA: empty, Best: empty, Err: err}
	}

	s := params.SlippageBps / 10000
	feeBps := (params.FeeA + params.FeeB) * 10000

	atoB := computeAtoB(snap, usdtZar, s, feeBps, params.MinNetEdgeBps)
	btoA := computeBtoA(snap, usdtZar, s, feeBps, params.MinNetEdgeBps)

	best := atoB
	if btoA.NetEdgeBps > atoB.NetEdgeBps {
		best = btoA
	}

	return Evaluation{AtoB: atoB, BtoA: btoA, Best: best}
}

func computeAtoB(snap priceservice.Snapshot, usdtZar, s, feeBps, minNetEdgeBps float64) Result {
	buyPrice := snap.VenueAAsk * (1 + s)
	sellPrice := snap.VenueBBid * (1 - s)

	buyPriceUSDT := buyPrice / usdtZar
	gross := (sellPrice - buyPriceUSDT) / buyPriceUSDT
	grossBps := gross * 10000
	netBps := grossBps - feeBps

	return Result{
		Direction:    DirectionAtoB,
		BuyVenue:     "venue_a",
		SellVenue:    "venue_b",
		BuyPrice:     buyPrice,
		SellPrice:    sellPrice,
		GrossEdgeBps: grossBps,
		NetEdgeBps:   netBps,
		IsProfitable: netBps >= minNetEdgeBps,
	}
}

func computeBtoA(snap priceservice.Snapshot, usdtZar, s, feeBps, minNetEdgeBps float64) Result {
	buyPrice := snap.VenueBAsk * (1 + s)
	sellPrice := snap.VenueABid * (1 - s)

	sellPriceUSDT := sellPrice / usdtZar
	gross := (sellPriceUSDT - buyPrice) / buyPrice
	grossBps := gross * 10000
	netBps := grossBps - feeBps

	return Result{
		Direction:    DirectionBtoA,
		BuyVenue:     "venue_b",
		SellVenue:    "venue_a",
		BuyPrice:     buyPrice,
		SellPrice:    sellPrice,
		GrossEdgeBps: grossBps,
		NetEdgeBps:   netBps,
		IsProfitable: netBps >= minNetEdgeBps,
	}
}
