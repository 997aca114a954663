// Package orchestrator runs the fixed-period arbitrage decision loop: on
// every tick it reads the shared price snapshot, computes both directions'
// edges, feeds the tick pipeline, asks the selector for a decision, and
// dispatches execution — all while tracking a consecutive-error circuit
// breaker and periodic balance-sync/heartbeat side tasks.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dtarb/arbengine/internal/edge"
	"github.com/dtarb/arbengine/internal/execution"
	"github.com/dtarb/arbengine/internal/fx"
	"github.com/dtarb/arbengine/internal/inventory"
	"github.com/dtarb/arbengine/internal/metrics"
	"github.com/dtarb/arbengine/internal/persist"
	"github.com/dtarb/arbengine/internal/priceservice"
	"github.com/dtarb/arbengine/internal/selector"
	"github.com/dtarb/arbengine/internal/tickpipe"
	"github.com/dtarb/arbengine/internal/venue"
)

// State is one of the orchestrator's lifecycle states.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const (
	warmupDuration   = 2 * time.Second
	balanceSyncEvery = 60
	heartbeatEvery   = 120
)

// Config configures an Orchestrator.
type Config struct {
	CheckInterval  time.Duration
	ErrorStopCount int
	PaperMode      bool
	EdgeParams     edge.Params
	Fees           execution.Fees
}

// Orchestrator wires together the price service, edge engine, tick
// pipeline, inventory, selector and executor into the documented control
// loop.
type Orchestrator struct {
	cfg Config

	venueA venue.Venue
	venueB venue.Venue
	prices *priceservice.Service
	fxSvc  *fx.Service
	inv    *inventory.Manager
	sel    *selector.Selector
	exec   *execution.Executor
	pipe   *tickpipe.Pipeline
	store  *persist.Store

	mu              sync.Mutex
	state           State
	consecutiveErrs int
	iteration       int64
	avgCheckTimeMs  float64

	stopCh chan struct{}
}

// New builds an Orchestrator from its fully-constructed dependencies.
func New(cfg Config, venueA, venueB venue.Venue, prices *priceservice.Service, fxSvc *fx.Service,
	inv *inventory.Manager, sel *selector.Selector, exec *execution.Executor, pipe *tickpipe.Pipeline, store *persist.Store) *Orchestrator {
	return &Orchestrator{
		cfg: cfg, venueA: venueA, venueB: venueB, prices: prices, fxSvc: fxSvc,
		inv: inv, sel: sel, exec: exec, pipe: pipe, store: store,
		state: StateStopped, stopCh: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status is a defensive-copy snapshot of the orchestrator's running state,
// mode, iteration count, check latency, consecutive-error count, the
// inventory's accumulated P&L, and the price service's update/error/reconnect
// counters — the engine's equivalent of fast_loop.py's status/stats accessor,
// returned as a plain struct rather than served over HTTP.
type Status struct {
	State                State
	PaperMode             bool
	Iteration             int64
	ConsecutiveErrors     int
	AvgCheckTimeMs        float64
	AccumulatedProfitZAR  float64
	AccumulatedProfitUSD  float64
	TradesCompleted       int64
	Prices                priceservice.Stats
}

// Status returns a point-in-time snapshot of the orchestrator's running state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	state := o.state
	consecutiveErrs := o.consecutiveErrs
	avgCheckTimeMs := o.avgCheckTimeMs
	o.mu.Unlock()

	floats := o.inv.Snapshot()
	return Status{
		State:                state,
		PaperMode:            o.cfg.PaperMode,
		Iteration:            atomic.LoadInt64(&o.iteration),
		ConsecutiveErrors:    consecutiveErrs,
		AvgCheckTimeMs:       avgCheckTimeMs,
		AccumulatedProfitZAR: floats.AccumulatedProfitZAR,
		AccumulatedProfitUSD: floats.AccumulatedProfitUSD,
		TradesCompleted:      floats.TradesCompleted,
		Prices:               o.prices.Stats(),
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run starts the price service, tick-pipeline writer, and the fixed-period
// decision loop, blocking until ctx is cancelled or the circuit breaker
// trips. It always returns nil — a tripped breaker is logged, not an error,
// matching the "operator must restart" semantics of a fatal condition.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setState(StateStarting)
	log.Info().Msg("orchestrator: starting")

	pipeCtx, cancelPipe := context.WithCancel(context.Background())
	defer cancelPipe()
	go o.pipe.Run(pipeCtx)

	priceCtx, cancelPrices := context.WithCancel(ctx)
	defer cancelPrices()
	go func() {
		if err := o.prices.Run(priceCtx); err != nil && priceCtx.Err() == nil {
			log.Error().Err(err).Msg("orchestrator: price service exited unexpectedly")
		}
	}()

	select {
	case <-time.After(warmupDuration):
	case <-ctx.Done():
		o.setState(StateStopped)
		return nil
	}

	o.setState(StateRunning)
	log.Info().Dur("period", o.cfg.CheckInterval).Msg("orchestrator: running")

	ticker := time.NewTicker(o.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.setState(StateStopping)
			o.drainPipeline(cancelPipe)
			o.setState(StateStopped)
			return nil
		case <-o.stopCh:
			o.setState(StateStopping)
			o.drainPipeline(cancelPipe)
			o.setState(StateStopped)
			return nil
		case <-ticker.C:
			if o.runIteration(ctx) {
				o.setState(StateStopping)
				o.drainPipeline(cancelPipe)
				o.setState(StateStopped)
				return nil
			}
		}
	}
}

func (o *Orchestrator) drainPipeline(cancelPipe context.CancelFunc) {
	cancelPipe()
	done := make(chan struct{})
	go func() {
		o.pipe.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(6 * time.Second):
		log.Warn().Msg("orchestrator: tick pipeline did not drain in time")
	}
}

// Stop requests a graceful shutdown; Run returns once the loop observes it.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
}

// runIteration runs one loop iteration and returns true if the circuit
// breaker should stop the loop.
func (o *Orchestrator) runIteration(ctx context.Context) (shouldStop bool) {
	start := time.Now()
	iteration := atomic.AddInt64(&o.iteration, 1)
	tickErr := o.tick(ctx)
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000

	o.mu.Lock()
	if tickErr != nil {
		o.consecutiveErrs++
	} else {
		o.consecutiveErrs = 0
	}
	o.avgCheckTimeMs = o.avgCheckTimeMs*0.9 + elapsedMs*0.1
	consecutiveErrs := o.consecutiveErrs
	avgCheckTimeMs := o.avgCheckTimeMs
	o.mu.Unlock()

	metrics.OrchestratorCheckLatency.Observe(elapsedMs)
	metrics.OrchestratorConsecutiveErrors.Set(float64(consecutiveErrs))

	if tickErr != nil {
		log.Warn().Err(tickErr).Msg("orchestrator: iteration error")
	}

	if iteration%balanceSyncEvery == 0 {
		go o.syncBalances(ctx)
	}
	if iteration%heartbeatEvery == 0 {
		log.Info().
			Int64("iteration", iteration).
			Float64("avg_check_ms", avgCheckTimeMs).
			Msg("orchestrator: heartbeat")
	}

	if consecutiveErrs >= o.cfg.ErrorStopCount {
		log.Error().Int("consecutive_errors", consecutiveErrs).Msg("orchestrator: circuit breaker tripped, stopping")
		return true
	}
	return false
}

// tick is one decision iteration: read snapshot, compute edges, record
// ticks, select, execute.
func (o *Orchestrator) tick(ctx context.Context) error {
	snap := o.prices.GetSnapshot()
	fresh := snap.IsFresh(5 * time.Second)
	if fresh {
		metrics.SnapshotFresh.Set(1)
	} else {
		metrics.SnapshotFresh.Set(0)
	}
	if !fresh {
		return nil
	}

	usdtZar, err := o.fxSvc.GetUSDTZAR(ctx)
	if err != nil {
		return err
	}

	eval := edge.Evaluate(snap, usdtZar, o.cfg.EdgeParams)
	if eval.Err != nil {
		return eval.Err
	}

	recordEdgeMetrics(eval.AtoB)
	recordEdgeMetrics(eval.BtoA)

	now := time.Now()
	o.pipe.Add(toTickRecord(now, eval.AtoB))
	o.pipe.Add(toTickRecord(now, eval.BtoA))

	venueALast := snap.VenueALast
	if o.cfg.PaperMode && !o.inv.Snapshot().Initialized {
		o.inv.Initialize(venueALast)
	}

	decision := o.sel.Select(now, eval, o.inv, o.cfg.PaperMode)
	if decision.Type == selector.TradeNone {
		return nil
	}

	return o.execute(ctx, decision, venueALast, usdtZar)
}

func (o *Orchestrator) execute(ctx context.Context, decision selector.Decision, venueALast, usdtZar float64) error {
	if o.cfg.PaperMode {
		trade, err := o.exec.ExecutePaper(decision.Direction, decision.Result, venueALast, usdtZar)
		if err != nil {
			return err
		}
		if trade == nil {
			o.logSkipped(ctx, decision, "insufficient_inventory")
			return nil
		}
		o.sel.RecordTrade(trade.ExecutedAt)
		metrics.RecordTrade(string(decision.Direction), string(decision.Type), trade.ProfitZAR)
		o.persistTrade(ctx, decision, trade)
		return nil
	}

	venueBPrice := decision.Result.SellPrice
	if decision.Direction == edge.DirectionBtoA {
		venueBPrice = decision.Result.BuyPrice
	}

	btcAmount, zarNotional := o.inv.TradeSize(decision.Direction, venueALast, venueBPrice)
	if btcAmount <= 0 {
		o.logSkipped(ctx, decision, "insufficient_inventory")
		return nil
	}

	trade, err := o.exec.ExecuteLive(ctx, decision.Direction, btcAmount, zarNotional, usdtZar)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: live execution failed")
		o.logSkipped(ctx, decision, "execution_failed")
		return nil
	}
	o.sel.RecordTrade(trade.ExecutedAt)
	metrics.RecordTrade(string(decision.Direction), string(decision.Type), trade.ProfitZAR)
	metrics.RecordOrderExecution(trade.LatencyMs)
	o.persistTrade(ctx, decision, trade)
	return nil
}

func (o *Orchestrator) persistTrade(ctx context.Context, decision selector.Decision, trade *execution.Trade) {
	if o.store == nil {
		return
	}
	if err := o.store.WriteOpportunity(ctx, persist.Opportunity{
		Timestamp: trade.ExecutedAt, Direction: string(decision.Direction),
		BuyPrice: trade.BuyPrice, SellPrice: trade.SellPrice, NetEdgeBps: decision.Result.NetEdgeBps,
		WasExecuted: true,
	}); err != nil {
		log.Warn().Err(err).Msg("orchestrator: failed to persist opportunity")
	}
	if err := o.store.WriteTrade(ctx, persist.Trade{
		Timestamp: trade.ExecutedAt, Direction: string(decision.Direction), Amount: trade.BTCAmount,
		BuyPrice: trade.BuyPrice, SellPrice: trade.SellPrice, ProfitUSD: trade.ProfitUSD,
		ProfitZAR: trade.ProfitZAR, Status: trade.Status,
	}); err != nil {
		log.Warn().Err(err).Msg("orchestrator: failed to persist trade")
	}
}

func (o *Orchestrator) logSkipped(ctx context.Context, decision selector.Decision, reason string) {
	metrics.RecordSkippedOpportunity(reason)
	if o.store == nil {
		return
	}
	if err := o.store.WriteOpportunity(ctx, persist.Opportunity{
		Timestamp: time.Now(), Direction: string(decision.Direction),
		BuyPrice: decision.Result.BuyPrice, SellPrice: decision.Result.SellPrice,
		NetEdgeBps: decision.Result.NetEdgeBps, WasExecuted: false, ReasonSkipped: reason,
	}); err != nil {
		log.Warn().Err(err).Msg("orchestrator: failed to persist skipped opportunity")
	}
}

func (o *Orchestrator) syncBalances(ctx context.Context) {
	f := o.inv.Snapshot()
	metrics.UpdateFloatBalances(f.AZAR, f.ABTC, f.BBTC, f.BUSDT)
	metrics.TradesCompleted.Set(float64(f.TradesCompleted))

	balances := persist.FloatBalances{AZAR: f.AZAR, ABTC: f.ABTC, BBTC: f.BBTC, BUSDT: f.BUSDT}
	if !o.cfg.PaperMode {
		balances = o.fetchLiveBalances(ctx, balances)
	}

	if o.store == nil {
		return
	}
	if err := o.store.UpsertFloatBalances(ctx, balances); err != nil {
		log.Warn().Err(err).Msg("orchestrator: balance sync failed")
	}
}

// fetchLiveBalances queries both venues' real account balances concurrently,
// tolerating individual failures by leaving fallback's value for that
// currency untouched — mirrors the original's asyncio.gather(...,
// return_exceptions=True) balance-sync behaviour.
func (o *Orchestrator) fetchLiveBalances(ctx context.Context, fallback persist.FloatBalances) persist.FloatBalances {
	result := fallback
	var mu sync.Mutex
	var wg sync.WaitGroup

	fetch := func(v venue.Venue, currency string, set func(float64)) {
		defer wg.Done()
		bal, err := v.GetBalance(ctx, currency)
		if err != nil {
			log.Warn().Err(err).Str("currency", currency).Msg("orchestrator: live balance fetch failed")
			return
		}
		mu.Lock()
		set(bal.Available)
		mu.Unlock()
	}

	wg.Add(4)
	go fetch(o.venueA, "ZAR", func(v float64) { result.AZAR = v })
	go fetch(o.venueA, "XBT", func(v float64) { result.ABTC = v })
	go fetch(o.venueB, "BTC", func(v float64) { result.BBTC = v })
	go fetch(o.venueB, "USDT", func(v float64) { result.BUSDT = v })
	wg.Wait()

	return result
}

func recordEdgeMetrics(r edge.Result) {
	metrics.EdgeNetBps.WithLabelValues(string(r.Direction)).Set(r.NetEdgeBps)
	if r.IsProfitable {
		metrics.EdgeProfitable.WithLabelValues(string(r.Direction)).Inc()
	}
}

func toTickRecord(ts time.Time, r edge.Result) tickpipe.TickRecord {
	return tickpipe.TickRecord{
		Timestamp: ts, Direction: string(r.Direction), BuyVenue: r.BuyVenue, SellVenue: r.SellVenue,
		BuyPrice: r.BuyPrice, SellPrice: r.SellPrice, GrossEdgeBp: r.GrossEdgeBps, NetEdgeBps: r.NetEdgeBps,
		IsProfitable: r.IsProfitable,
	}
}
