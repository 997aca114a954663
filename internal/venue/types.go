// Package venue implements the trading-side clients for the engine's two
// counterparties: venue A, a ZAR-quoted spot venue, and venue B, a
// USDT-quoted spot venue. Both implement the shared Venue interface so the
// execution layer (C8) can dispatch order legs symmetrically.
package venue

import "time"

// Quote is a top-of-book snapshot returned by a REST price poll.
type Quote struct {
	Bid       float64
	Ask       float64
	Last      float64
	Venue     string
	Pair      string
	Timestamp time.Time
}

// Balance is a single-currency account balance.
type Balance struct {
	Currency  string
	Available float64
	Reserved  float64
	Total     float64
}

// OrderResult is the outcome of a market order placement.
type OrderResult struct {
	Success      bool
	OrderID      string
	FilledAmount float64
	FilledPrice  float64
	Error        string
}
