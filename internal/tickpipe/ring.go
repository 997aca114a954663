package tickpipe

import "math"

// ringCapacity is the number of most-recent ticks held in memory before the
// oldest becomes a persistence candidate.
const ringCapacity = 6

// ring is a fixed-capacity FIFO of TickRecords. It is not safe for
// concurrent use; Pipeline serialises all access through its own mutex.
type ring struct {
	buf   [ringCapacity]TickRecord
	count int
}

// push appends record. Once the ring is at capacity it also evicts the
// oldest record, returning it alongside the second-oldest record as it
// stood immediately before eviction — the exact pair the dedup rule
// compares. ok is false until an eviction actually occurs.
func (r *ring) push(record TickRecord) (evicted, secondOldest TickRecord, ok bool) {
	if r.count < ringCapacity {
		r.buf[r.count] = record
		r.count++
		return TickRecord{}, TickRecord{}, false
	}

	evicted = r.buf[0]
	secondOldest = r.buf[1]
	copy(r.buf[:ringCapacity-1], r.buf[1:])
	r.buf[ringCapacity-1] = record
	return evicted, secondOldest, true
}

// drain returns every record currently held, oldest first, and empties the
// ring. Used on shutdown to flush remaining ticks to the queue.
func (r *ring) drain() []TickRecord {
	out := make([]TickRecord, r.count)
	copy(out, r.buf[:r.count])
	r.count = 0
	return out
}

// sameNetEdge implements the dedup rule: net edges round to the same 0.1 bps
// bucket.
func sameNetEdge(a, b float64) bool {
	return roundTo1dp(a) == roundTo1dp(b)
}

func roundTo1dp(v float64) float64 {
	return math.Round(v*10) / 10
}
