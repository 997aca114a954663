package tickpipe

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dtarb/arbengine/internal/metrics"
)

const (
	queueCapacity = 100
	drainTimeout  = 5 * time.Second
)

// Writer persists a single TickRecord. Implemented by internal/persist in
// production; tests may supply a fake.
type Writer interface {
	WriteTick(ctx context.Context, record TickRecord) error
}

// Pipeline is the ring-buffer-to-queue-to-writer chain described for the
// tick pipeline: a bounded in-memory ring absorbs the hot decision loop's
// output, a dedup filter thins it, and a background goroutine drains the
// result to storage.
type Pipeline struct {
	writer Writer

	mu   sync.Mutex
	ring ring

	queue chan TickRecord
	done  chan struct{}

	dropped int64
}

// New builds a Pipeline that persists via writer.
func New(writer Writer) *Pipeline {
	return &Pipeline{
		writer: writer,
		queue:  make(chan TickRecord, queueCapacity),
		done:   make(chan struct{}),
	}
}

// Add feeds one new tick into the ring. If the ring is at capacity this may
// evict its oldest record, which is then either dropped (dedup rule) or
// enqueued for persistence. Non-blocking: a full queue drops the record
// with a warning rather than stalling the caller.
func (p *Pipeline) Add(record TickRecord) {
	p.mu.Lock()
	evicted, secondOldest, evictedOK := p.ring.push(record)
	p.mu.Unlock()

	if !evictedOK {
		return
	}

	if sameNetEdge(evicted.NetEdgeBps, secondOldest.NetEdgeBps) {
		return
	}

	p.enqueue(evicted)
}

func (p *Pipeline) enqueue(record TickRecord) {
	select {
	case p.queue <- record:
		metrics.TickQueueDepth.Set(float64(len(p.queue)))
	default:
		p.dropped++
		metrics.TicksDropped.Inc()
		log.Warn().
			Time("tick_time", record.Timestamp).
			Str("direction", record.Direction).
			Int64("total_dropped", p.dropped).
			Msg("tickpipe: queue full, dropping tick")
	}
}

// Dropped returns the number of ticks dropped due to a full queue.
func (p *Pipeline) Dropped() int64 {
	return p.dropped
}

// Run drains the queue one record at a time, persisting each via writer,
// until ctx is cancelled. Persistence errors are logged, never propagated:
// a DB failure must not stall or crash the decision loop that feeds Add.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.flushRemaining()
			return
		case record, ok := <-p.queue:
			if !ok {
				return
			}
			p.persist(ctx, record)
		}
	}
}

// flushRemaining pushes the ring's still-held records (including the
// current oldest/second-oldest not yet evicted) into the queue, then drains
// the queue with a bounded timeout. Called on shutdown per the pipeline's
// "ring flushed to queue, writer given up to 5s" rule.
func (p *Pipeline) flushRemaining() {
	p.mu.Lock()
	pending := p.ring.drain()
	p.mu.Unlock()

	for _, record := range pending {
		p.enqueue(record)
	}
	close(p.queue)

	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case record, ok := <-p.queue:
			if !ok {
				return
			}
			p.persist(drainCtx, record)
		case <-deadline.C:
			log.Warn().Msg("tickpipe: shutdown drain timed out, remaining ticks lost")
			return
		}
	}
}

func (p *Pipeline) persist(ctx context.Context, record TickRecord) {
	metrics.TickQueueDepth.Set(float64(len(p.queue)))
	if err := p.writer.WriteTick(ctx, record); err != nil {
		log.Error().Err(err).Str("direction", record.Direction).Msg("tickpipe: failed to persist tick")
		return
	}
	metrics.TicksPersisted.Inc()
}

// Wait blocks until Run has returned (the writer goroutine has exited).
func (p *Pipeline) Wait() {
	<-p.done
}
