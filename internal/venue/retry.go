package venue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/dtarb/arbengine/internal/risk"
)

// RetryConfig configures retry behavior for venue client operations
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// IsRetryable checks if an error is one a venue call is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") {
		return true
	}

	// Binance-specific transient codes
	if strings.Contains(errStr, "-1001") || // internal error
		strings.Contains(errStr, "-1021") { // recvWindow / clock skew
		return true
	}

	return false
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func() error

// WithRetry executes an operation with exponential backoff retry
func WithRetry(ctx context.Context, config RetryConfig, operation RetryableOperation) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempt", attempt+1).Msg("venue operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			log.Debug().Err(err).Msg("venue error is not retryable, aborting")
			return err
		}

		if attempt == config.MaxRetries {
			break
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", config.MaxRetries+1).
			Dur("backoff", backoff).
			Msg("venue operation failed, retrying with backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffFactor)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// WithBreaker runs operation (typically a WithRetry call) through cb when one
// is configured, so a venue that is failing past its retry budget trips open
// and stops taking new requests for a cooldown period rather than retrying
// forever. A nil cb (e.g. in tests that build clients without one) runs
// operation directly.
func WithBreaker(cb *gobreaker.CircuitBreaker, operation RetryableOperation) error {
	if cb == nil {
		return operation()
	}
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, operation()
	})
	if err == gobreaker.ErrOpenState {
		return fmt.Errorf("venue: circuit open: %w", err)
	}
	return err
}

// breakerFor resolves the shared circuit breaker for a venue client given the
// manager (nil-safe) and the accessor for this client's breaker.
func breakerFor(manager *risk.CircuitBreakerManager, which func(*risk.CircuitBreakerManager) *gobreaker.CircuitBreaker) *gobreaker.CircuitBreaker {
	if manager == nil {
		return nil
	}
	return which(manager)
}
