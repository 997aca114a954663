package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dtarb/arbengine/internal/config"
	"github.com/dtarb/arbengine/internal/edge"
	"github.com/dtarb/arbengine/internal/execution"
	"github.com/dtarb/arbengine/internal/fx"
	"github.com/dtarb/arbengine/internal/inventory"
	"github.com/dtarb/arbengine/internal/orchestrator"
	"github.com/dtarb/arbengine/internal/persist"
	"github.com/dtarb/arbengine/internal/priceservice"
	"github.com/dtarb/arbengine/internal/risk"
	"github.com/dtarb/arbengine/internal/selector"
	"github.com/dtarb/arbengine/internal/tickpipe"
	"github.com/dtarb/arbengine/internal/venue"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.App.LogLevel, "console")
	log.Info().Str("mode", cfg.Trading.Mode).Str("env", cfg.App.Environment).Msg("arbengine starting")

	breaker := risk.NewCircuitBreakerManagerFromConfig(
		&risk.ServiceSettings{
			MinRequests:  uint32(cfg.Risk.CircuitBreakerMinRequests),
			FailureRatio: cfg.Risk.CircuitBreakerFailureRatio,
			OpenTimeout:  cfg.Risk.CircuitBreakerOpenTimeout,
		},
		&risk.ServiceSettings{
			MinRequests:  uint32(cfg.Risk.CircuitBreakerMinRequests),
			FailureRatio: cfg.Risk.CircuitBreakerFailureRatio,
			OpenTimeout:  cfg.Risk.CircuitBreakerOpenTimeout,
		},
		&risk.ServiceSettings{
			MinRequests:  uint32(cfg.Risk.CircuitBreakerMinRequests),
			FailureRatio: cfg.Risk.CircuitBreakerFailureRatio,
			OpenTimeout:  cfg.Risk.CircuitBreakerOpenTimeout,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable at startup, FX cache degrades to always-miss")
	}

	var store *persist.Store
	if cfg.Database.Host != "" {
		store, err = persist.New(ctx, persist.Config{DSN: cfg.Database.GetDSN(), MaxConns: cfg.Database.PoolSize}, breaker)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database pool")
		}
		defer store.Close()
	} else {
		log.Warn().Msg("no database host configured, running without persistence")
	}

	venueA := venue.NewVenueAClient(venue.VenueAConfig{
		APIKey: cfg.VenueA.APIKey, APISecret: cfg.VenueA.APISecret,
		BaseURL: cfg.VenueA.BaseURL, Pair: cfg.VenueA.Pair,
	}, breaker)
	venueB := venue.NewVenueBClient(venue.VenueBConfig{
		APIKey: cfg.VenueB.APIKey, APISecret: cfg.VenueB.APISecret,
		BaseURL: cfg.VenueB.BaseURL, FallbackBaseURLs: cfg.VenueB.FallbackBaseURLs, Symbol: cfg.VenueB.Symbol,
	}, breaker)

	fxCache := fx.NewCache(redisClient)
	fxSvc := fx.NewService(fx.Config{
		UsdZarTTL: cfg.FX.UsdZarTTL, UsdtUsdTTL: cfg.FX.UsdtUsdTTL,
		FallbackUsdZar: cfg.FX.FallbackUsdZar, FallbackUsdtUsd: cfg.FX.FallbackUsdtUsd,
		SanityBandLow: cfg.FX.SanityBandLow, SanityBandHigh: cfg.FX.SanityBandHigh,
	}, fxCache, venueB, breaker)

	prices := priceservice.NewService(venueA, cfg.VenueB.WSURL, time.Second)

	inv := inventory.NewManager(inventory.DefaultSafetyBuffers(), inventory.Limits{
		MaxTradeZAR: cfg.Trading.MaxTradeZAR, MaxTradeSizeBTC: cfg.Trading.MaxTradeSizeBTC, MinTradeSizeBTC: cfg.Trading.MinTradeSizeBTC,
	})

	sel := selector.New(selector.Params{
		KeepaliveThresholdBps: cfg.Trading.KeepaliveThresholdBps,
		RebalanceEnabled:      cfg.Trading.RebalanceEnabled,
		RebalanceTriggerCount: cfg.Trading.RebalanceTriggerCount,
		RebalanceThresholdBps: cfg.Trading.RebalanceThresholdBps,
		MinTradeInterval:      cfg.Trading.MinTradeInterval,
	})

	fees := execution.Fees{VenueA: cfg.VenueA.TradingFee, VenueB: cfg.VenueB.TradingFee}
	exec := execution.New(venueA, venueB, inv, fees)

	var pipeWriter tickpipe.Writer = noopWriter{}
	if store != nil {
		pipeWriter = store
	}
	pipe := tickpipe.New(pipeWriter)

	orchCfg := orchestrator.Config{
		CheckInterval:  cfg.Trading.CheckInterval,
		ErrorStopCount: cfg.Trading.ErrorStopCount,
		PaperMode:      cfg.Trading.IsPaperMode(),
		EdgeParams: edge.Params{
			SlippageBps:   cfg.Trading.SlippageBpsBuffer,
			FeeA:          cfg.VenueA.TradingFee,
			FeeB:          cfg.VenueB.TradingFee,
			MinNetEdgeBps: cfg.Trading.MinNetEdgeBps,
		},
		Fees: fees,
	}
	orch := orchestrator.New(orchCfg, venueA, venueB, prices, fxSvc, inv, sel, exec, pipe, store)

	httpServer := NewHTTPServer(cfg.Monitoring.PrometheusPort, orch)
	if cfg.Monitoring.EnableMetrics {
		if err := httpServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- orch.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("orchestrator exited with error")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("arbengine stopped")
}

type noopWriter struct{}

func (noopWriter) WriteTick(ctx context.Context, record tickpipe.TickRecord) error { return nil }
