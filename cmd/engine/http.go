package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dtarb/arbengine/internal/orchestrator"
)

// HTTPServer exposes health checks and the Prometheus metrics endpoint.
type HTTPServer struct {
	server *http.Server
	orch   *orchestrator.Orchestrator
	port   int
}

// NewHTTPServer builds an HTTPServer bound to port, reporting orch's state.
func NewHTTPServer(port int, orch *orchestrator.Orchestrator) *HTTPServer {
	return &HTTPServer{orch: orch, port: port}
}

// Start launches the HTTP server in a background goroutine.
func (h *HTTPServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/readiness", h.handleReadiness)
	mux.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", h.port).Msg("http server started (health, metrics)")
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"state":     h.orch.State().String(),
	})
}

func (h *HTTPServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	state := h.orch.State()
	if state != orchestrator.StateRunning {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "not ready", "state": state.String()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ready", "state": state.String()})
}
