package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server exposes the hub and operational endpoints over HTTP.
type Server struct {
	hub     *Hub
	metrics http.Handler
	logger  zerolog.Logger
	mux     *http.ServeMux
	server  *http.Server
	details func() map[string]any
}

// NewServer creates an HTTP server with configured routes. metrics may be nil.
func NewServer(addr string, hub *Hub, metrics http.Handler, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		hub:     hub,
		metrics: metrics,
		logger:  logger.With().Str("component", "http").Logger(),
		mux:     mux,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/ws", s.hub.Handler())
	s.mux.HandleFunc("/series", s.handleSeries)
	s.mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}
}

// HealthDetails adds fn's fields to the /health payload. Call before Start.
func (s *Server) HealthDetails(fn func() map[string]any) {
	s.details = fn
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	last := s.hub.Last()
	if last == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(last); err != nil {
		s.logger.Debug().Err(err).Msg("write series response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{"status": "ok", "clients": s.hub.Clients()}
	if s.details != nil {
		for k, v := range s.details() {
			payload[k] = v
		}
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
