package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/relayforge/claude-gateway/internal/config"
	"github.com/relayforge/claude-gateway/internal/metrics"
)

// Server is the gateway's HTTP front. Routes:
//
//	POST /v1/messages  Claude Messages endpoint
//	GET  /health       liveness probe
//	GET  /status       collector counter snapshot
type Server struct {
	http      *http.Server
	collector *metrics.Collector
}

// NewServer assembles the HTTP server around a prepared handler.
func NewServer(cfg *config.Config, handler *Handler, collector *metrics.Collector) *Server {
	s := &Server{collector: collector}
	mux := http.NewServeMux()
	mux.Handle("/v1/messages", handler)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("gateway listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.collector == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{})
		return
	}
	_ = json.NewEncoder(w).Encode(s.collector.Snapshot())
}
