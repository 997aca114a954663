package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateTrading()...)
	errors = append(errors, c.validateVenues()...)
	errors = append(errors, c.validateFX()...)
	errors = append(errors, c.validateRisk()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	if c.Database.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: "Database port is required",
		})
	} else if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	if c.Database.Password == "" && c.App.Environment != "development" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: "Database pool size must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}

	if c.Redis.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: "Redis port is required",
		})
	} else if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	return errors
}

func (c *Config) validateTrading() ValidationErrors {
	var errors ValidationErrors

	switch strings.ToLower(c.Trading.Mode) {
	case "paper", "live":
	default:
		errors = append(errors, ValidationError{
			Field:   "trading.mode",
			Message: fmt.Sprintf("Invalid trading mode '%s'. Must be 'paper' or 'live'", c.Trading.Mode),
		})
	}

	if c.Trading.CheckInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "trading.check_interval",
			Message: "Check interval must be greater than 0",
		})
	}

	if c.Trading.MinNetEdgeBps <= 0 {
		errors = append(errors, ValidationError{
			Field:   "trading.min_net_edge_bps",
			Message: "Minimum net edge threshold must be greater than 0",
		})
	}

	if c.Trading.MaxTradeSizeBTC <= 0 || c.Trading.MinTradeSizeBTC <= 0 {
		errors = append(errors, ValidationError{
			Field:   "trading.max_trade_size_btc",
			Message: "Trade size bounds must be greater than 0",
		})
	} else if c.Trading.MinTradeSizeBTC > c.Trading.MaxTradeSizeBTC {
		errors = append(errors, ValidationError{
			Field:   "trading.min_trade_size_btc",
			Message: "Minimum trade size must not exceed maximum trade size",
		})
	}

	if c.Trading.MaxTradeZAR <= 0 {
		errors = append(errors, ValidationError{
			Field:   "trading.max_trade_zar",
			Message: "Max trade ZAR cap must be greater than 0",
		})
	}

	if c.Trading.ErrorStopCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "trading.error_stop_count",
			Message: "Error stop count must be at least 1",
		})
	}

	if c.Trading.RebalanceEnabled && c.Trading.RebalanceTriggerCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "trading.rebalance_trigger_count",
			Message: "Rebalance trigger count must be at least 1 when rebalancing is enabled",
		})
	}

	return errors
}

func (c *Config) validateVenues() ValidationErrors {
	var errors ValidationErrors
	live := strings.ToLower(c.Trading.Mode) == "live"

	if c.VenueA.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "venue_a.base_url",
			Message: "Venue A base URL is required",
		})
	}
	if c.VenueA.Pair == "" {
		errors = append(errors, ValidationError{
			Field:   "venue_a.pair",
			Message: "Venue A trading pair is required",
		})
	}
	if live && (c.VenueA.APIKey == "" || c.VenueA.APISecret == "") {
		errors = append(errors, ValidationError{
			Field:   "venue_a.api_key",
			Message: "Venue A credentials are required for live trading",
		})
	}
	if c.VenueA.MinRemainingZAR < 0 || c.VenueA.MinRemainingBTC < 0 {
		errors = append(errors, ValidationError{
			Field:   "venue_a.min_remaining_zar",
			Message: "Venue A safety buffers must be non-negative",
		})
	}

	if c.VenueB.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "venue_b.base_url",
			Message: "Venue B base URL is required",
		})
	}
	if c.VenueB.Symbol == "" {
		errors = append(errors, ValidationError{
			Field:   "venue_b.symbol",
			Message: "Venue B trading symbol is required",
		})
	}
	if c.VenueB.WSURL == "" {
		errors = append(errors, ValidationError{
			Field:   "venue_b.ws_url",
			Message: "Venue B websocket URL is required",
		})
	}
	if live && (c.VenueB.APIKey == "" || c.VenueB.APISecret == "") {
		errors = append(errors, ValidationError{
			Field:   "venue_b.api_key",
			Message: "Venue B credentials are required for live trading",
		})
	}
	if c.VenueB.MinRemainingBTC < 0 || c.VenueB.MinRemainingUSDT < 0 {
		errors = append(errors, ValidationError{
			Field:   "venue_b.min_remaining_btc",
			Message: "Venue B safety buffers must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateFX() ValidationErrors {
	var errors ValidationErrors

	if c.FX.UsdZarTTL <= 0 || c.FX.UsdtUsdTTL <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fx.usd_zar_ttl",
			Message: "FX cache TTLs must be greater than 0",
		})
	}

	if c.FX.SanityBandLow <= 0 || c.FX.SanityBandHigh <= c.FX.SanityBandLow {
		errors = append(errors, ValidationError{
			Field:   "fx.sanity_band_low",
			Message: "FX sanity band must satisfy 0 < low < high",
		})
	}

	if c.FX.FallbackUsdZar <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fx.fallback_usd_zar",
			Message: "FX fallback rate must be greater than 0",
		})
	}

	if c.FX.FallbackUsdtUsd <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fx.fallback_usdt_usd",
			Message: "FX fallback rate must be greater than 0",
		})
	}

	return errors
}

func (c *Config) validateRisk() ValidationErrors {
	var errors ValidationErrors

	if c.Risk.CircuitBreakerFailureRatio <= 0 || c.Risk.CircuitBreakerFailureRatio > 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.circuit_breaker_failure_ratio",
			Message: fmt.Sprintf("Invalid circuit_breaker_failure_ratio %.2f. Must be between 0-1", c.Risk.CircuitBreakerFailureRatio),
		})
	}

	if c.Risk.CircuitBreakerMinRequests < 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.circuit_breaker_min_requests",
			Message: "Circuit breaker minimum request count must be at least 1",
		})
	}

	if c.Risk.CircuitBreakerOpenTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "risk.circuit_breaker_open_timeout",
			Message: "Circuit breaker open timeout must be greater than 0",
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment == "production" {
		if c.Database.SSLMode == "disable" {
			errors = append(errors, ValidationError{
				Field:   "database.ssl_mode",
				Message: "SSL must be enabled for database in production",
			})
		}
	}

	return errors
}

// ValidateAndLoad loads and validates configuration
func ValidateAndLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
