package tickpipe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []TickRecord
}

func (f *fakeWriter) WriteTick(ctx context.Context, record TickRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, record)
	return nil
}

func (f *fakeWriter) snapshot() []TickRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TickRecord, len(f.written))
	copy(out, f.written)
	return out
}

func tickWithEdge(edge float64) TickRecord {
	return TickRecord{Timestamp: time.Now(), Direction: "A->B", NetEdgeBps: edge}
}

// TestDedupSequence exercises the literal scenario: net_edge_bps sequence
// 10.0, 10.0, 10.0, 11.0, 11.0, 12.0, 12.0 fed into a ring of size 6,
// followed by two more ticks so that three evictions happen. The first two
// evictions (10.0 vs 10.0) are dropped and the third (10.0 vs 11.0) is
// persisted, so exactly one value is written.
func TestDedupSequence(t *testing.T) {
	writer := &fakeWriter{}
	p := New(writer)

	edges := []float64{10.0, 10.0, 10.0, 11.0, 11.0, 12.0, 12.0, 13.0, 14.0}
	for _, e := range edges {
		p.Add(tickWithEdge(e))
	}

	written := writer.snapshot()
	require.Len(t, written, 1)
	assert.InDelta(t, 10.0, written[0].NetEdgeBps, 1e-9)
}

func TestRingDoesNotEvictUntilFull(t *testing.T) {
	writer := &fakeWriter{}
	p := New(writer)

	for i := 0; i < ringCapacity; i++ {
		p.Add(tickWithEdge(float64(i)))
	}

	assert.Empty(t, writer.snapshot())
}

func TestDistinctEdgesAllPersist(t *testing.T) {
	writer := &fakeWriter{}
	p := New(writer)

	const produced = 10
	for i := 0; i < produced; i++ {
		p.Add(tickWithEdge(float64(i)))
	}

	assert.Len(t, writer.snapshot(), produced-ringCapacity)
}

func TestQueueFullDropsRecord(t *testing.T) {
	writer := &fakeWriter{}
	p := New(writer)

	// Fill the queue directly without a running drainer, then evict enough
	// ticks through the ring to overflow it.
	for i := 0; i < queueCapacity; i++ {
		p.queue <- tickWithEdge(float64(1000 + i))
	}

	for i := 0; i < ringCapacity+5; i++ {
		p.Add(tickWithEdge(float64(2000 + i)))
	}

	assert.Greater(t, p.Dropped(), int64(0))
}

func TestRunDrainsOnShutdown(t *testing.T) {
	writer := &fakeWriter{}
	p := New(writer)

	for i := 0; i < ringCapacity+2; i++ {
		p.Add(tickWithEdge(float64(i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	cancel()
	p.Wait()

	assert.NotEmpty(t, writer.snapshot())
}
