package fx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/dtarb/arbengine/internal/metrics"
	"github.com/dtarb/arbengine/internal/risk"
)

const (
	usdZarPair  = "USDZAR"
	usdtUsdPair = "USDTUSD"
)

// BookSource is the minimal venue-B read the USDT/USD cross needs: a
// bid/ask for a stablecoin pair (USDC/USDT, then FDUSD/USDT as fallback).
type BookSource interface {
	// Price returns the mid price for symbol, e.g. "USDCUSDT".
	Price(ctx context.Context, symbol string) (float64, error)
}

// Config configures a Service.
type Config struct {
	UsdZarTTL       time.Duration
	UsdtUsdTTL      time.Duration
	FallbackUsdZar  float64
	FallbackUsdtUsd float64
	SanityBandLow   float64
	SanityBandHigh  float64
}

// Service is the engine's single FX rate source: a sanity-checked,
// multi-provider-failover USD/ZAR rate and a venue-B-derived USDT/USD cross,
// both cached with independent TTLs.
type Service struct {
	cfg       Config
	providers []Provider
	cache     *Cache
	book      BookSource
	breaker   *risk.CircuitBreakerManager

	mu         sync.Mutex
	usdZarMem  Rate
	usdtUsdMem Rate
}

// NewService builds the FX service with the standard three-provider
// failover chain (exchangerate-api, frankfurter, fixer-free), guarding both
// the provider chain and the venue-B stablecoin read with the shared FX
// circuit breaker.
func NewService(cfg Config, cache *Cache, book BookSource, breaker *risk.CircuitBreakerManager) *Service {
	return &Service{
		cfg:     cfg,
		cache:   cache,
		book:    book,
		breaker: breaker,
		providers: []Provider{
			NewExchangeRateAPIProvider(),
			NewFrankfurterProvider(),
			NewFixerFreeProvider(),
		},
	}
}

// GetUSDZAR returns the current USD/ZAR rate, serving from cache when fresh,
// otherwise walking the provider chain in order and falling back to the
// configured static rate if every provider fails or returns an
// out-of-sanity-band value.
func (s *Service) GetUSDZAR(ctx context.Context) (float64, error) {
	s.mu.Lock()
	mem := s.usdZarMem
	s.mu.Unlock()

	if !mem.IsStale(s.cfg.UsdZarTTL) && mem.Value != 0 {
		return mem.Value, nil
	}

	if cached, ok := s.cache.Get(ctx, usdZarPair); ok && !cached.IsStale(s.cfg.UsdZarTTL) {
		s.storeMem(&s.usdZarMem, cached)
		return cached.Value, nil
	}

	rate, err := s.breakerFetch(func() (float64, error) { return s.fetchLiveUSDZAR(ctx) })
	if err != nil {
		log.Warn().Err(err).Float64("fallback", s.cfg.FallbackUsdZar).Msg("fx: all USD/ZAR providers failed, using fallback rate")
		rate = s.cfg.FallbackUsdZar
	}

	fresh := Rate{Value: rate, FetchedAt: time.Now()}
	s.storeMem(&s.usdZarMem, fresh)
	s.cache.Set(ctx, usdZarPair, fresh, s.cfg.UsdZarTTL)
	metrics.FXUsdZar.Set(rate)
	return rate, nil
}

func (s *Service) fetchLiveUSDZAR(ctx context.Context) (float64, error) {
	var lastErr error
	for _, p := range s.providers {
		rate, err := p.FetchUSDZAR(ctx)
		if err != nil {
			lastErr = err
			metrics.FXProviderFailures.WithLabelValues(p.Name()).Inc()
			log.Debug().Err(err).Str("provider", p.Name()).Msg("fx provider failed, trying next")
			continue
		}
		if rate <= s.cfg.SanityBandLow || rate >= s.cfg.SanityBandHigh {
			lastErr = fmt.Errorf("%s: rate %.4f outside sanity band [%.1f, %.1f]", p.Name(), rate, s.cfg.SanityBandLow, s.cfg.SanityBandHigh)
			metrics.FXProviderFailures.WithLabelValues(p.Name()).Inc()
			log.Warn().Err(lastErr).Msg("fx provider returned out-of-band rate")
			continue
		}
		return rate, nil
	}
	return 0, fmt.Errorf("all fx providers exhausted: %w", lastErr)
}

// GetUSDTUSD returns the current USDT/USD cross, derived as 1/price(USDC/USDT)
// with an FDUSD/USDT fallback if the primary pair is unavailable.
func (s *Service) GetUSDTUSD(ctx context.Context) (float64, error) {
	s.mu.Lock()
	mem := s.usdtUsdMem
	s.mu.Unlock()

	if !mem.IsStale(s.cfg.UsdtUsdTTL) && mem.Value != 0 {
		return mem.Value, nil
	}

	if cached, ok := s.cache.Get(ctx, usdtUsdPair); ok && !cached.IsStale(s.cfg.UsdtUsdTTL) {
		s.storeMem(&s.usdtUsdMem, cached)
		return cached.Value, nil
	}

	rate, err := s.breakerFetch(func() (float64, error) { return s.fetchLiveUSDTUSD(ctx) })
	if err != nil {
		log.Warn().Err(err).Float64("fallback", s.cfg.FallbackUsdtUsd).Msg("fx: all USDT/USD sources failed, using fallback rate")
		rate = s.cfg.FallbackUsdtUsd
	}

	fresh := Rate{Value: rate, FetchedAt: time.Now()}
	s.storeMem(&s.usdtUsdMem, fresh)
	s.cache.Set(ctx, usdtUsdPair, fresh, s.cfg.UsdtUsdTTL)
	metrics.FXUsdtUsd.Set(rate)
	return rate, nil
}

func (s *Service) fetchLiveUSDTUSD(ctx context.Context) (float64, error) {
	price, err := s.book.Price(ctx, "USDCUSDT")
	if err == nil && price > 0 {
		return 1 / price, nil
	}
	firstErr := err

	price, err = s.book.Price(ctx, "FDUSDUSDT")
	if err == nil && price > 0 {
		return 1 / price, nil
	}
	return 0, fmt.Errorf("usdc/usdt failed (%v), fdusd/usdt failed (%w)", firstErr, err)
}

// GetUSDTZAR composes the USD/ZAR and USDT/USD rates into a single
// USDT-denominated ZAR cross rate.
func (s *Service) GetUSDTZAR(ctx context.Context) (float64, error) {
	usdZar, err := s.GetUSDZAR(ctx)
	if err != nil {
		return 0, err
	}
	usdtUsd, err := s.GetUSDTUSD(ctx)
	if err != nil {
		return 0, err
	}
	return usdZar * usdtUsd, nil
}

// breakerFetch runs fetch under the shared FX circuit breaker when one is
// configured, trading its pooled open-circuit behaviour for a plain call
// when the caller (e.g. a test) leaves the breaker unset.
func (s *Service) breakerFetch(fetch func() (float64, error)) (float64, error) {
	if s.breaker == nil {
		return fetch()
	}
	result, err := s.breaker.FX().Execute(func() (interface{}, error) {
		return fetch()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return 0, fmt.Errorf("fx: circuit open: %w", err)
		}
		return 0, err
	}
	return result.(float64), nil
}

func (s *Service) storeMem(dst *Rate, rate Rate) {
	s.mu.Lock()
	*dst = rate
	s.mu.Unlock()
}
