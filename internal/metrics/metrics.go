// Package metrics exposes the engine's Prometheus gauges/counters/
// histograms, using bounded-cardinality label normalisation so that
// free-form error strings never explode a metric's series count.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
const (
	ReasonMaxDrawdown    = "max_drawdown"
	ReasonInsufficientInv = "insufficient_inventory"
	ReasonExecutionFailed = "execution_failed"
	ReasonRateLimit       = "rate_limit"
	ReasonManualHalt      = "manual_halt"
	ReasonOther           = "other"

	VenueErrorTimeout     = "timeout"
	VenueErrorRateLimit   = "rate_limit"
	VenueErrorAuth        = "authentication"
	VenueErrorNetwork     = "network"
	VenueErrorInvalidReq  = "invalid_request"
	VenueErrorServerError = "server_error"
	VenueErrorOther       = "other"
)

// NormalizeCircuitBreakerReason maps arbitrary reasons to a bounded set.
func NormalizeCircuitBreakerReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "drawdown"):
		return ReasonMaxDrawdown
	case strings.Contains(lower, "insufficient") || strings.Contains(lower, "inventory"):
		return ReasonInsufficientInv
	case strings.Contains(lower, "execution"):
		return ReasonExecutionFailed
	case strings.Contains(lower, "rate") || strings.Contains(lower, "limit"):
		return ReasonRateLimit
	case strings.Contains(lower, "manual") || strings.Contains(lower, "halt"):
		return ReasonManualHalt
	default:
		return ReasonOther
	}
}

// NormalizeVenueError maps arbitrary venue-client error messages to a
// bounded set of categories for the exchange-error-rate metric.
func NormalizeVenueError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return VenueErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return VenueErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return VenueErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return VenueErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return VenueErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return VenueErrorServerError
	default:
		return VenueErrorOther
	}
}

// Edge/decision metrics
var (
	EdgeNetBps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbengine_edge_net_bps",
		Help: "Most recently computed net edge in basis points, by direction",
	}, []string{"direction"})

	EdgeProfitable = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_edge_profitable_total",
		Help: "Total ticks classified profitable, by direction",
	}, []string{"direction"})

	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_trades_executed_total",
		Help: "Total trades executed, by direction and trade type",
	}, []string{"direction", "trade_type"})

	TradeProfitZAR = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_trade_profit_zar_total",
		Help: "Cumulative realised profit in ZAR, by trade type",
	}, []string{"trade_type"})

	OpportunitiesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_opportunities_skipped_total",
		Help: "Total profitable opportunities not executed, by reason",
	}, []string{"reason"})
)

// Inventory metrics
var (
	FloatBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbengine_float_balance",
		Help: "Current paper-mode float balance, by leg",
	}, []string{"leg"})

	TradesCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_trades_completed",
		Help: "Total trades completed since the floats were initialised",
	})
)

// Tick pipeline metrics
var (
	TickQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_tick_queue_depth",
		Help: "Current depth of the tick persistence queue",
	})

	TicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_ticks_dropped_total",
		Help: "Total ticks dropped because the persistence queue was full",
	})

	TicksPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_ticks_persisted_total",
		Help: "Total ticks written to storage",
	})
)

// Price service metrics
var (
	VenueAUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_venue_a_updates_total",
		Help: "Total successful venue A REST poll updates",
	})

	VenueAErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_venue_a_errors_total",
		Help: "Total venue A REST poll errors",
	})

	VenueBUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_venue_b_updates_total",
		Help: "Total venue B websocket book-ticker updates",
	})

	VenueBReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_venue_b_reconnects_total",
		Help: "Total venue B websocket reconnect attempts",
	})

	SnapshotFresh = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_snapshot_fresh",
		Help: "1 if the price snapshot is currently fresh, else 0",
	})
)

// FX metrics
var (
	FXUsdZar = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_fx_usd_zar",
		Help: "Current USD/ZAR rate in use",
	})

	FXUsdtUsd = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_fx_usdt_usd",
		Help: "Current USDT/USD cross rate in use",
	})

	FXProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_fx_provider_failures_total",
		Help: "Total FX provider failures, by provider",
	}, []string{"provider"})
)

// Venue client and circuit breaker metrics
var (
	VenueAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbengine_venue_api_latency_ms",
		Help:    "Venue API call latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"venue", "operation"})

	VenueAPIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_venue_api_errors_total",
		Help: "Total venue API errors, by venue and normalized error category",
	}, []string{"venue", "error_type"})

	OrderExecutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbengine_order_execution_latency_ms",
		Help:    "Hedged order-pair execution latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	})

	CircuitBreakerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbengine_circuit_breaker_status",
		Help: "Circuit breaker status (1 = open/tripped, 0 = closed)",
	}, []string{"breaker"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_circuit_breaker_trips_total",
		Help: "Total circuit breaker trips, by breaker and normalized reason",
	}, []string{"breaker", "reason"})

	OrchestratorConsecutiveErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_orchestrator_consecutive_errors",
		Help: "Current consecutive iteration error count",
	})

	OrchestratorCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbengine_orchestrator_check_latency_ms",
		Help:    "Decision loop iteration latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbengine_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})
)

// RecordVenueAPICall records a venue API call's latency and, on error, its
// normalized error category.
func RecordVenueAPICall(venueName, operation string, durationMs float64, err error) {
	VenueAPILatency.WithLabelValues(venueName, operation).Observe(durationMs)
	if err != nil {
		VenueAPIErrors.WithLabelValues(venueName, NormalizeVenueError(err)).Inc()
	}
}

// UpdateCircuitBreaker sets a breaker's tripped status.
func UpdateCircuitBreaker(breaker string, open bool) {
	status := 0.0
	if open {
		status = 1.0
	}
	CircuitBreakerStatus.WithLabelValues(breaker).Set(status)
}

// RecordCircuitBreakerTrip records a trip with a normalized reason.
func RecordCircuitBreakerTrip(breaker, reason string) {
	CircuitBreakerTrips.WithLabelValues(breaker, NormalizeCircuitBreakerReason(reason)).Inc()
}

// RecordDatabaseQuery records a database query's duration.
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordOrderExecution records hedged order-pair latency.
func RecordOrderExecution(durationMs float64) {
	OrderExecutionLatency.Observe(durationMs)
}

// RecordTrade updates trade counters and cumulative profit for a completed
// execution.
func RecordTrade(direction, tradeType string, profitZAR float64) {
	TradesExecuted.WithLabelValues(direction, tradeType).Inc()
	TradeProfitZAR.WithLabelValues(tradeType).Add(profitZAR)
}

// RecordSkippedOpportunity records a profitable-but-unexecuted opportunity.
func RecordSkippedOpportunity(reason string) {
	OpportunitiesSkipped.WithLabelValues(reason).Inc()
}

// UpdateFloatBalances mirrors the four paper-mode float balances into
// gauges.
func UpdateFloatBalances(azar, abtc, bbtc, busdt float64) {
	FloatBalance.WithLabelValues("a_zar").Set(azar)
	FloatBalance.WithLabelValues("a_btc").Set(abtc)
	FloatBalance.WithLabelValues("b_btc").Set(bbtc)
	FloatBalance.WithLabelValues("b_usdt").Set(busdt)
}
