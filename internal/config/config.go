package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Trading    TradingConfig    `mapstructure:"trading"`
	VenueA     VenueAConfig     `mapstructure:"venue_a"`
	VenueB     VenueBConfig     `mapstructure:"venue_b"`
	FX         FXConfig         `mapstructure:"fx"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL settings for the persistence pipeline
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int32  `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the FX rate cache
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TradingConfig contains the arbitrage decision parameters shared by the
// edge engine, selector, inventory manager, and orchestrator control loop.
type TradingConfig struct {
	Mode                  string        `mapstructure:"mode"` // "paper" or "live"
	CheckInterval         time.Duration `mapstructure:"check_interval"`
	MinTradeInterval      time.Duration `mapstructure:"min_trade_interval"`
	WarmupDuration        time.Duration `mapstructure:"warmup_duration"`
	SlippageBpsBuffer     float64       `mapstructure:"slippage_bps_buffer"`
	MinNetEdgeBps         float64       `mapstructure:"min_net_edge_bps"`
	MaxTradeZAR           float64       `mapstructure:"max_trade_zar"`
	MaxTradeSizeBTC       float64       `mapstructure:"max_trade_size_btc"`
	MinTradeSizeBTC       float64       `mapstructure:"min_trade_size_btc"`
	KeepaliveThresholdBps float64       `mapstructure:"keepalive_threshold_bps"`
	RebalanceEnabled      bool          `mapstructure:"rebalance_enabled"`
	RebalanceTriggerCount int           `mapstructure:"rebalance_trigger_count"`
	RebalanceThresholdBps float64       `mapstructure:"rebalance_threshold_bps"`
	ErrorStopCount        int           `mapstructure:"error_stop_count"`
	ClearDBOnStartup      bool          `mapstructure:"clear_db_on_startup"`
}

// IsPaperMode reports whether the engine runs simulated float accounting
// rather than dispatching real orders.
func (t TradingConfig) IsPaperMode() bool {
	return strings.ToLower(t.Mode) != "live"
}

// VenueAConfig contains venue A (ZAR-quoted) credentials and fee structure.
type VenueAConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	APISecret       string  `mapstructure:"api_secret"`
	BaseURL         string  `mapstructure:"base_url"`
	Pair            string  `mapstructure:"pair"`
	TradingFee      float64 `mapstructure:"trading_fee"`
	MinRemainingZAR float64 `mapstructure:"min_remaining_zar"`
	MinRemainingBTC float64 `mapstructure:"min_remaining_btc"`
}

// VenueBConfig contains venue B (USDT-quoted) credentials, fallback hosts,
// and fee structure.
type VenueBConfig struct {
	APIKey           string   `mapstructure:"api_key"`
	APISecret        string   `mapstructure:"api_secret"`
	BaseURL          string   `mapstructure:"base_url"`
	FallbackBaseURLs []string `mapstructure:"fallback_base_urls"`
	WSURL            string   `mapstructure:"ws_url"`
	Symbol           string   `mapstructure:"symbol"`
	TradingFee       float64  `mapstructure:"trading_fee"`
	MinRemainingBTC  float64  `mapstructure:"min_remaining_btc"`
	MinRemainingUSDT float64  `mapstructure:"min_remaining_usdt"`
}

// FXConfig contains FX provider failover, sanity-band, and cache TTL settings.
type FXConfig struct {
	UsdZarTTL       time.Duration `mapstructure:"usd_zar_ttl"`
	UsdtUsdTTL      time.Duration `mapstructure:"usdt_usd_ttl"`
	FallbackUsdZar  float64       `mapstructure:"fallback_usd_zar"`
	FallbackUsdtUsd float64       `mapstructure:"fallback_usdt_usd"`
	SanityBandLow   float64       `mapstructure:"sanity_band_low"`
	SanityBandHigh  float64       `mapstructure:"sanity_band_high"`
}

// RiskConfig contains circuit breaker thresholds applied to venue and
// persistence calls. This is distinct from the orchestrator's own
// consecutive-error counter (TradingConfig.ErrorStopCount): the breaker
// protects a single downstream call, the counter protects the decision loop.
type RiskConfig struct {
	CircuitBreakerMinRequests  uint32        `mapstructure:"circuit_breaker_min_requests"`
	CircuitBreakerFailureRatio float64       `mapstructure:"circuit_breaker_failure_ratio"`
	CircuitBreakerOpenTimeout  time.Duration `mapstructure:"circuit_breaker_open_timeout"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("ARBENGINE")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration using comprehensive validation
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "arbengine")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "arbengine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Trading defaults
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.check_interval", "500ms")
	v.SetDefault("trading.min_trade_interval", "2s")
	v.SetDefault("trading.warmup_duration", "2s")
	v.SetDefault("trading.slippage_bps_buffer", 10.0)
	v.SetDefault("trading.min_net_edge_bps", 40.0)
	v.SetDefault("trading.max_trade_zar", 5000.0)
	v.SetDefault("trading.max_trade_size_btc", 0.01)
	v.SetDefault("trading.min_trade_size_btc", 0.0001)
	v.SetDefault("trading.keepalive_threshold_bps", -20.0)
	v.SetDefault("trading.rebalance_enabled", true)
	v.SetDefault("trading.rebalance_trigger_count", 10)
	v.SetDefault("trading.rebalance_threshold_bps", 0.0)
	v.SetDefault("trading.error_stop_count", 5)
	v.SetDefault("trading.clear_db_on_startup", false)

	// Venue A defaults (ZAR-quoted)
	v.SetDefault("venue_a.base_url", "https://api.luno.com/api/1")
	v.SetDefault("venue_a.pair", "XBTZAR")
	v.SetDefault("venue_a.trading_fee", 0.001)
	v.SetDefault("venue_a.min_remaining_zar", 1000.0)
	v.SetDefault("venue_a.min_remaining_btc", 0.0005)

	// Venue B defaults (USDT-quoted)
	v.SetDefault("venue_b.base_url", "https://api.binance.com/api/v3")
	v.SetDefault("venue_b.fallback_base_urls", []string{
		"https://api1.binance.com/api/v3",
		"https://api2.binance.com/api/v3",
		"https://api3.binance.com/api/v3",
		"https://api4.binance.com/api/v3",
	})
	v.SetDefault("venue_b.ws_url", "wss://stream.binance.com:9443/ws/btcusdt@bookTicker")
	v.SetDefault("venue_b.symbol", "BTCUSDT")
	v.SetDefault("venue_b.trading_fee", 0.001)
	v.SetDefault("venue_b.min_remaining_btc", 0.001)
	v.SetDefault("venue_b.min_remaining_usdt", 50.0)

	// FX defaults
	v.SetDefault("fx.usd_zar_ttl", "5m")
	v.SetDefault("fx.usdt_usd_ttl", "1m")
	v.SetDefault("fx.fallback_usd_zar", 17.0)
	v.SetDefault("fx.fallback_usdt_usd", 1.0)
	v.SetDefault("fx.sanity_band_low", 10.0)
	v.SetDefault("fx.sanity_band_high", 30.0)

	// Risk defaults
	v.SetDefault("risk.circuit_breaker_min_requests", 5)
	v.SetDefault("risk.circuit_breaker_failure_ratio", 0.6)
	v.SetDefault("risk.circuit_breaker_open_timeout", "30s")

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// Note: Comprehensive validation is in validation.go
// The Config.Validate() method is called during Load()

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
