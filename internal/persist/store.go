// Package persist is the pgx-backed storage layer for ticks, opportunities,
// trades, float balances, P&L records and config history — the reporting
// tables the rest of the engine only needs to populate, never query.
package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/dtarb/arbengine/internal/metrics"
	"github.com/dtarb/arbengine/internal/risk"
	"github.com/dtarb/arbengine/internal/tickpipe"
)

// Store wraps a pgx connection pool with the circuit breaker that gates
// every write, so a struggling database degrades to dropped writes instead
// of blocking the decision loop.
type Store struct {
	pool    *pgxpool.Pool
	breaker *risk.CircuitBreakerManager
}

// Config configures the pool opened by New.
type Config struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
}

// New opens a connection pool against cfg.DSN.
func New(ctx context.Context, cfg Config, breaker *risk.CircuitBreakerManager) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("persist: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("persist: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persist: ping: %w", err)
	}

	log.Info().Msg("persist: connection pool ready")
	return &Store{pool: pool, breaker: breaker}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) exec(ctx context.Context, queryType, query string, args ...interface{}) error {
	start := time.Now()
	run := func() (interface{}, error) {
		return s.pool.Exec(ctx, query, args...)
	}
	var err error
	if s.breaker == nil {
		_, err = run()
	} else {
		_, err = s.breaker.Database().Execute(run)
	}
	metrics.RecordDatabaseQuery(queryType, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return fmt.Errorf("persist: database circuit open: %w", err)
		}
		return err
	}
	return nil
}

// WriteTick implements tickpipe.Writer: persists one ArbTick row.
func (s *Store) WriteTick(ctx context.Context, record tickpipe.TickRecord) error {
	query := `
		INSERT INTO arb_ticks (
			id, ts, direction, buy_venue, sell_venue, buy_price, sell_price,
			gross_edge_bps, net_edge_bps, is_profitable
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	err := s.exec(ctx, "write_tick", query,
		uuid.New(), record.Timestamp.UTC(), record.Direction, record.BuyVenue, record.SellVenue,
		record.BuyPrice, record.SellPrice, record.GrossEdgeBp, record.NetEdgeBps, record.IsProfitable,
	)
	if err != nil {
		log.Error().Err(err).Str("direction", record.Direction).Msg("persist: failed to write tick")
	}
	return err
}

// Opportunity is what was considered on one iteration and what was done
// about it.
type Opportunity struct {
	Timestamp     time.Time
	Direction     string
	BuyPrice      float64
	SellPrice     float64
	NetEdgeBps    float64
	WasExecuted   bool
	ReasonSkipped string
}

// WriteOpportunity persists one Opportunity row.
func (s *Store) WriteOpportunity(ctx context.Context, o Opportunity) error {
	query := `
		INSERT INTO opportunities (
			id, ts, direction, buy_price, sell_price, net_edge_bps,
			was_executed, reason_skipped
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err := s.exec(ctx, "write_opportunity", query,
		uuid.New(), o.Timestamp.UTC(), o.Direction, o.BuyPrice, o.SellPrice, o.NetEdgeBps,
		o.WasExecuted, o.ReasonSkipped,
	)
	if err != nil {
		log.Error().Err(err).Msg("persist: failed to write opportunity")
	}
	return err
}

// Trade is the realised execution record, paper or live.
type Trade struct {
	Timestamp time.Time
	Direction string
	Amount    float64
	BuyPrice  float64
	SellPrice float64
	SpreadPct float64
	ProfitUSD float64
	ProfitZAR float64
	Status    string
}

// WriteTrade persists one Trade row.
func (s *Store) WriteTrade(ctx context.Context, t Trade) error {
	query := `
		INSERT INTO trades (
			id, ts, direction, amount, buy_price, sell_price, spread_pct,
			profit_usd, profit_zar, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	err := s.exec(ctx, "write_trade", query,
		uuid.New(), t.Timestamp.UTC(), t.Direction, t.Amount, t.BuyPrice, t.SellPrice, t.SpreadPct,
		t.ProfitUSD, t.ProfitZAR, t.Status,
	)
	if err != nil {
		log.Error().Err(err).Str("status", t.Status).Msg("persist: failed to write trade")
	}
	return err
}

// FloatBalances is the current (upserted, not appended) inventory snapshot.
type FloatBalances struct {
	AZAR  float64
	ABTC  float64
	BBTC  float64
	BUSDT float64
}

// UpsertFloatBalances writes the single current-state float row.
func (s *Store) UpsertFloatBalances(ctx context.Context, f FloatBalances) error {
	query := `
		INSERT INTO float_balances (id, a_zar, a_btc, b_btc, b_usdt, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			a_zar = EXCLUDED.a_zar, a_btc = EXCLUDED.a_btc,
			b_btc = EXCLUDED.b_btc, b_usdt = EXCLUDED.b_usdt,
			updated_at = EXCLUDED.updated_at
	`
	err := s.exec(ctx, "upsert_float_balances", query, f.AZAR, f.ABTC, f.BBTC, f.BUSDT, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("persist: failed to upsert float balances")
	}
	return err
}

// PnLRecord is one point-in-time accumulated P&L reading.
type PnLRecord struct {
	Timestamp        time.Time
	AccumulatedZAR   float64
	AccumulatedUSD   float64
	TradesCompleted  int64
}

// WritePnLRecord persists one PnLRecord row.
func (s *Store) WritePnLRecord(ctx context.Context, p PnLRecord) error {
	query := `
		INSERT INTO pnl_records (id, ts, accumulated_zar, accumulated_usd, trades_completed)
		VALUES ($1, $2, $3, $4, $5)
	`
	err := s.exec(ctx, "write_pnl_record", query, uuid.New(), p.Timestamp.UTC(), p.AccumulatedZAR, p.AccumulatedUSD, p.TradesCompleted)
	if err != nil {
		log.Error().Err(err).Msg("persist: failed to write pnl record")
	}
	return err
}

// WriteConfigHistory records a configuration value change for audit.
func (s *Store) WriteConfigHistory(ctx context.Context, key, oldValue, newValue string) error {
	query := `
		INSERT INTO config_history (id, ts, key, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5)
	`
	err := s.exec(ctx, "write_config_history", query, uuid.New(), time.Now().UTC(), key, oldValue, newValue)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("persist: failed to write config history")
	}
	return err
}
