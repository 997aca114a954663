// Package tickpipe compresses the engine's 2 Hz decision stream into a
// sparse state-change stream suitable for long-term storage: a fixed-size
// ring buffer feeds a dedup filter, which feeds a bounded queue drained by a
// background writer.
package tickpipe

import "time"

// TickRecord is an immutable snapshot of one direction's decision inputs
// and computed edge, taken at a point in time. The orchestrator adds two
// per iteration (one per direction).
type TickRecord struct {
	Timestamp   time.Time
	Direction   string
	BuyVenue    string
	SellVenue   string
	BuyPrice    float64
	SellPrice   float64
	GrossEdgeBp float64
	NetEdgeBps  float64
	IsProfitable bool
}
