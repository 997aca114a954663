package priceservice

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dtarb/arbengine/internal/metrics"
	"github.com/dtarb/arbengine/internal/venue"
)

// Service owns the shared top-of-book snapshot, fed by a venue B websocket
// stream and a venue A REST poll running concurrently.
type Service struct {
	venueA venue.Venue

	wsURL        string
	pollInterval time.Duration

	mu       sync.RWMutex
	snapshot Snapshot

	venueAUpdates    atomic.Int64
	venueAErrors     atomic.Int64
	venueBUpdates    atomic.Int64
	venueBReconnects atomic.Int64
}

// NewService builds a price service over venue A (REST-polled) and the
// venue B book-ticker websocket stream at wsURL.
func NewService(venueA venue.Venue, wsURL string, pollInterval time.Duration) *Service {
	return &Service{
		venueA:       venueA,
		wsURL:        wsURL,
		pollInterval: pollInterval,
	}
}

// GetSnapshot returns a copy of the current snapshot.
func (s *Service) GetSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Stats returns a copy of the update/error counters.
func (s *Service) Stats() Stats {
	return Stats{
		VenueAUpdates:    s.venueAUpdates.Load(),
		VenueAErrors:     s.venueAErrors.Load(),
		VenueBUpdates:    s.venueBUpdates.Load(),
		VenueBReconnects: s.venueBReconnects.Load(),
	}
}

// Run starts the websocket streamer and REST poller and blocks until ctx is
// cancelled or either task returns a fatal error. Neither loop exits on its
// own when an individual request fails — they log and keep trying — so in
// practice Run blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.runVenueBStream(gctx)
		return gctx.Err()
	})

	g.Go(func() error {
		s.runVenueAPoll(gctx)
		return gctx.Err()
	})

	return g.Wait()
}

func (s *Service) setVenueA(bid, ask, last float64) {
	s.mu.Lock()
	s.snapshot.VenueABid = bid
	s.snapshot.VenueAAsk = ask
	s.snapshot.VenueALast = last
	s.snapshot.VenueATimestamp = time.Now()
	s.mu.Unlock()
	s.venueAUpdates.Add(1)
	metrics.VenueAUpdates.Inc()
}

func (s *Service) setVenueB(bid, ask float64) {
	s.mu.Lock()
	s.snapshot.VenueBBid = bid
	s.snapshot.VenueBAsk = ask
	s.snapshot.VenueBTimestamp = time.Now()
	s.mu.Unlock()
	s.venueBUpdates.Add(1)
	metrics.VenueBUpdates.Inc()
}

// runVenueAPoll polls venue A's REST ticker once per pollInterval until ctx
// is cancelled.
func (s *Service) runVenueAPoll(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			quote, err := s.venueA.GetQuote(ctx)
			if err != nil {
				s.venueAErrors.Add(1)
				metrics.VenueAErrors.Inc()
				log.Warn().Err(err).Msg("priceservice: venue A poll failed")
				continue
			}
			s.setVenueA(quote.Bid, quote.Ask, quote.Last)
		}
	}
}
