// Package risk provides circuit breaking around the engine's external
// dependencies: the two venue clients, the FX provider chain, and
// persistence.
package risk

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/dtarb/arbengine/internal/metrics"
)

// Circuit breaker states for Prometheus metrics
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"

	// Metric result labels
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Circuit breaker thresholds - configurable per service type
const (
	// Venue client circuit breaker settings
	VenueMinRequests     = 5                // Minimum requests before tripping
	VenueFailureRatio    = 0.6              // Failure ratio threshold (60%)
	VenueOpenTimeout     = 30 * time.Second // How long circuit stays open
	VenueHalfOpenMaxReqs = 3                // Max requests in half-open state
	VenueCountInterval   = 10 * time.Second // Window for counting failures

	// FX provider circuit breaker settings (tolerant of a slower provider chain)
	FXMinRequests     = 3                // Minimum requests before tripping
	FXFailureRatio    = 0.6              // Failure ratio threshold (60%)
	FXOpenTimeout     = 60 * time.Second // How long circuit stays open
	FXHalfOpenMaxReqs = 2                // Max requests in half-open state
	FXCountInterval   = 10 * time.Second // Window for counting failures

	// Database circuit breaker settings (faster recovery)
	DBMinRequests     = 10               // Minimum requests before tripping
	DBFailureRatio    = 0.6              // Failure ratio threshold (60%)
	DBOpenTimeout     = 15 * time.Second // How long circuit stays open (quick recovery)
	DBHalfOpenMaxReqs = 5                // Max requests in half-open state
	DBCountInterval   = 10 * time.Second // Window for counting failures
)

// CircuitBreakerManager manages circuit breakers for the engine's external
// dependencies. This is distinct from the orchestrator's own consecutive-error
// counter (C9): a breaker here protects a single downstream call class, the
// orchestrator's counter protects the whole decision loop.
type CircuitBreakerManager struct {
	venueA   *gobreaker.CircuitBreaker
	venueB   *gobreaker.CircuitBreaker
	fx       *gobreaker.CircuitBreaker
	database *gobreaker.CircuitBreaker
	metrics  *CircuitBreakerMetrics
}

// CircuitBreakerMetrics holds Prometheus metrics for circuit breakers
type CircuitBreakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var (
	// Global metrics instance (singleton)
	globalMetrics *CircuitBreakerMetrics
	metricsOnce   sync.Once
)

// initMetrics initializes the global metrics instance exactly once in a thread-safe manner
func initMetrics() {
	metricsOnce.Do(func() {
		globalMetrics = &CircuitBreakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"service"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circuit_breaker_requests_total",
					Help: "Total number of requests through circuit breaker",
				},
				[]string{"service", "result"},
			),
			failures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circuit_breaker_failures_total",
					Help: "Total number of failures tracked by circuit breaker",
				},
				[]string{"service"},
			),
		}
	})
}

// ServiceSettings holds circuit breaker configuration for a single service
type ServiceSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// ParseDuration parses a duration string and returns the duration or a default value
func ParseDuration(durationStr string, defaultValue time.Duration) time.Duration {
	if durationStr == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultValue
	}
	return duration
}

// NewCircuitBreakerManager creates a new circuit breaker manager with default settings
func NewCircuitBreakerManager() *CircuitBreakerManager {
	return NewCircuitBreakerManagerWithSettings(nil, nil, nil, nil)
}

// NewCircuitBreakerManagerFromConfig builds a manager using a single
// ServiceSettings shared across venue A and venue B clients (the config's
// risk section is not per-venue), plus separate FX and database settings.
func NewCircuitBreakerManagerFromConfig(venueSettings, fxSettings, dbSettings *ServiceSettings) *CircuitBreakerManager {
	return NewCircuitBreakerManagerWithSettings(venueSettings, venueSettings, fxSettings, dbSettings)
}

// NewCircuitBreakerManagerWithSettings creates a new circuit breaker manager with Prometheus metrics
// If settings are nil, defaults to the constants defined above
func NewCircuitBreakerManagerWithSettings(venueASettings, venueBSettings, fxSettings, dbSettings *ServiceSettings) *CircuitBreakerManager {
	// Register metrics only once using sync.Once for thread safety
	initMetrics()

	metrics := globalMetrics

	manager := &CircuitBreakerManager{
		metrics: metrics,
	}

	if venueASettings == nil {
		venueASettings = defaultVenueSettings()
	}
	if venueBSettings == nil {
		venueBSettings = defaultVenueSettings()
	}
	if fxSettings == nil {
		fxSettings = &ServiceSettings{
			MinRequests:     FXMinRequests,
			FailureRatio:    FXFailureRatio,
			OpenTimeout:     FXOpenTimeout,
			HalfOpenMaxReqs: FXHalfOpenMaxReqs,
			CountInterval:   FXCountInterval,
		}
	}
	if dbSettings == nil {
		dbSettings = &ServiceSettings{
			MinRequests:     DBMinRequests,
			FailureRatio:    DBFailureRatio,
			OpenTimeout:     DBOpenTimeout,
			HalfOpenMaxReqs: DBHalfOpenMaxReqs,
			CountInterval:   DBCountInterval,
		}
	}

	manager.venueA = newBreaker(manager, "venue_a", venueASettings)
	manager.venueB = newBreaker(manager, "venue_b", venueBSettings)
	manager.fx = newBreaker(manager, "fx", fxSettings)
	manager.database = newBreaker(manager, "database", dbSettings)

	manager.updateMetrics("venue_a", manager.venueA.State())
	manager.updateMetrics("venue_b", manager.venueB.State())
	manager.updateMetrics("fx", manager.fx.State())
	manager.updateMetrics("database", manager.database.State())

	return manager
}

func defaultVenueSettings() *ServiceSettings {
	return &ServiceSettings{
		MinRequests:     VenueMinRequests,
		FailureRatio:    VenueFailureRatio,
		OpenTimeout:     VenueOpenTimeout,
		HalfOpenMaxReqs: VenueHalfOpenMaxReqs,
		CountInterval:   VenueCountInterval,
	}
}

func newBreaker(manager *CircuitBreakerManager, name string, settings *ServiceSettings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			manager.updateMetrics(name, to)
		},
	})
}

// NewPassthroughCircuitBreakerManager creates a circuit breaker manager that never trips.
// This is useful for testing scenarios where you want to test other components without
// the circuit breaker interfering.
func NewPassthroughCircuitBreakerManager() *CircuitBreakerManager {
	// Register metrics only once using sync.Once for thread safety
	initMetrics()

	metrics := globalMetrics

	manager := &CircuitBreakerManager{
		metrics: metrics,
	}

	neverTrip := func(counts gobreaker.Counts) bool {
		return false
	}

	passthrough := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name + "_passthrough",
			MaxRequests: 1000,
			Interval:    0,
			Timeout:     1 * time.Millisecond,
			ReadyToTrip: neverTrip,
		})
	}

	manager.venueA = passthrough("venue_a")
	manager.venueB = passthrough("venue_b")
	manager.fx = passthrough("fx")
	manager.database = passthrough("database")

	return manager
}

// VenueA returns the venue A circuit breaker
func (m *CircuitBreakerManager) VenueA() *gobreaker.CircuitBreaker {
	return m.venueA
}

// VenueB returns the venue B circuit breaker
func (m *CircuitBreakerManager) VenueB() *gobreaker.CircuitBreaker {
	return m.venueB
}

// FX returns the FX provider circuit breaker
func (m *CircuitBreakerManager) FX() *gobreaker.CircuitBreaker {
	return m.fx
}

// Database returns the database circuit breaker
func (m *CircuitBreakerManager) Database() *gobreaker.CircuitBreaker {
	return m.database
}

// updateMetrics updates Prometheus metrics for a circuit breaker state change.
// It updates both the raw per-state gauge kept here and the bounded
// open/closed gauge exposed by the metrics package; the latter trips
// RecordCircuitBreakerTrip on every transition into the open state.
func (m *CircuitBreakerManager) updateMetrics(service string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateOpen:
		stateValue = 1
	case gobreaker.StateHalfOpen:
		stateValue = 2
	}
	m.metrics.state.WithLabelValues(service).Set(stateValue)

	metrics.UpdateCircuitBreaker(service, state == gobreaker.StateOpen)
	if state == gobreaker.StateOpen {
		metrics.RecordCircuitBreakerTrip(service, "threshold_exceeded")
	}
}

// RecordRequest records a request result for metrics
func (m *CircuitBreakerMetrics) RecordRequest(service string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
		m.failures.WithLabelValues(service).Inc()
	}
	m.requests.WithLabelValues(service, result).Inc()
}

// Metrics returns the metrics instance for manual recording
func (m *CircuitBreakerManager) Metrics() *CircuitBreakerMetrics {
	return m.metrics
}
