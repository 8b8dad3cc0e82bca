// Package gateway relays sync events between contexts that cannot share a
// storage medium, such as processes on different hosts.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/pasapalabra/go/internal/metrics"
)

// Service is the sync gateway: the relay hub plus its HTTP routes
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	metrics           *metrics.Prometheus
}

// Config holds configuration for the sync gateway service
type Config struct {
	Addr             string
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the sync gateway
func DefaultConfig() Config {
	return Config{
		Addr:             ":8090",
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new sync gateway service. A nil m disables /metrics.
func NewService(config Config, m *metrics.Prometheus) *Service {
	var collector metrics.Collector
	if m != nil {
		collector = m
	}
	cm := NewConnectionManager(config.ConnectionConfig, collector)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		metrics:           m,
	}
}

// Start runs the relay until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting sync gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("sync gateway service stopped")
}

// RegisterRoutes registers the websocket, sync API, health and metrics routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns the routes wrapped with CORS and h2c
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// NewServer returns the HTTP server of the gateway
func (s *Service) NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Run serves on config addr until ctx is cancelled, then shuts down.
func Run(ctx context.Context, config Config, m *metrics.Prometheus) error {
	svc := NewService(config, m)
	server := svc.NewServer(config.Addr)

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go svc.Start(relayCtx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gateway server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down gateway server: %w", err)
	}
	return nil
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
