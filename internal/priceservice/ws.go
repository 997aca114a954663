package priceservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dtarb/arbengine/internal/metrics"
)

const (
	wsInitialReconnectDelay = time.Second
	wsMaxReconnectDelay     = 30 * time.Second
	wsPingInterval          = 20 * time.Second
	wsPongWait              = 10 * time.Second
	wsHandshakeTimeout      = 10 * time.Second
)

// bookTickerFrame is a venue B book-ticker push message: best bid/ask for a
// single symbol, pushed on every top-of-book change.
type bookTickerFrame struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

// runVenueBStream dials the venue B book-ticker websocket and reconnects
// with exponential backoff (1s doubling to a 30s cap) on any disconnect,
// until ctx is cancelled.
func (s *Service) runVenueBStream(ctx context.Context) {
	delay := wsInitialReconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		log.Info().Str("url", s.wsURL).Msg("priceservice: connecting venue B websocket")
		connected, err := s.streamOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("priceservice: venue B websocket disconnected")
		}
		if connected {
			delay = wsInitialReconnectDelay
		}

		s.venueBReconnects.Add(1)
		metrics.VenueBReconnects.Inc()
		log.Info().Dur("delay", delay).Msg("priceservice: reconnecting venue B websocket")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > wsMaxReconnectDelay {
			delay = wsMaxReconnectDelay
		}
	}
}

// streamOnce holds a single websocket connection open, reading book-ticker
// frames until the connection closes or ctx is cancelled. connected reports
// whether the dial succeeded, so the caller can reset its reconnect backoff.
func (s *Service) streamOnce(ctx context.Context) (connected bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, wsHandshakeTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	})
	if err := conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait)); err != nil {
		return true, fmt.Errorf("set read deadline: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.readLoop(conn)
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return true, nil
		case err := <-done:
			return true, err
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return true, fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (s *Service) readLoop(conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var frame bookTickerFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Warn().Err(err).Msg("priceservice: malformed venue B book-ticker frame")
			continue
		}

		bid, bidErr := strconv.ParseFloat(frame.BidPrice, 64)
		ask, askErr := strconv.ParseFloat(frame.AskPrice, 64)
		if bidErr != nil || askErr != nil {
			log.Warn().Str("raw", string(message)).Msg("priceservice: venue B book-ticker frame has non-numeric prices")
			continue
		}

		s.setVenueB(bid, ask)
	}
}
