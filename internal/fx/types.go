// Package fx provides USD/ZAR rate acquisition (multi-provider failover with
// sanity-band validation) and USDT/USD cross-rate derivation from venue B's
// own book, both behind a TTL cache.
package fx

import "time"

// Rate is a cached FX rate with the time it was fetched.
type Rate struct {
	Value     float64
	FetchedAt time.Time
}

// IsStale reports whether the rate is older than ttl.
func (r Rate) IsStale(ttl time.Duration) bool {
	return time.Since(r.FetchedAt) > ttl
}
