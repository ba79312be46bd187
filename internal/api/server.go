package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/api/handlers"
	"github.com/pbs/tvshows/internal/api/middleware"
	"github.com/pbs/tvshows/internal/cache"
	"github.com/pbs/tvshows/internal/channels"
	"github.com/pbs/tvshows/internal/config"
	"github.com/pbs/tvshows/internal/listings"
	"github.com/pbs/tvshows/internal/metadata"
	"github.com/pbs/tvshows/internal/proxy"
)

// Deps carries the collaborators the HTTP surface is built on.
type Deps struct {
	Cache     *cache.Store
	Channels  *channels.Service
	Listings  *listings.Store
	Coalescer *listings.Coalescer
	Metadata  *metadata.Service
	Relay     *proxy.Relay
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps, logger *logrus.Logger) *Server {
	s := &Server{logger: logger}

	mux := http.NewServeMux()
	s.setupRoutes(mux, deps)

	s.server = &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     middleware.Logging(mux, logger),
		ReadTimeout: 15 * time.Second,
		// No write timeout: /media streams for as long as playback runs.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, deps Deps) {
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("GET /health", healthHandler.ServeHTTP)

	homeHandler := handlers.NewHomeHandler(deps.Channels, s.logger)
	mux.HandleFunc("GET /home", homeHandler.ServeHTTP)

	episodesHandler := handlers.NewEpisodesHandler(deps.Channels, deps.Listings, deps.Coalescer, s.logger)
	mux.HandleFunc("GET /episodes/{channel}/{show}", episodesHandler.ServeHTTP)

	episodeHandler := handlers.NewEpisodeHandler(deps.Channels, deps.Listings, deps.Metadata, s.logger)
	mux.HandleFunc("GET /episode/{channel}/{show}/{episode}", episodeHandler.ServeHTTP)

	metadataHandler := handlers.NewMetadataHandler(deps.Cache, s.logger)
	mux.HandleFunc("GET /metadata/{hash}/metadata.m3u8", metadataHandler.ServeHTTP)

	logoHandler := handlers.NewLogoHandler(deps.Channels, s.logger)
	mux.HandleFunc("GET /logo/{channel}", logoHandler.ServeHTTP)

	// HEAD and range GETs both land here.
	mux.Handle("/media", deps.Relay)

	mux.Handle("GET /metrics", promhttp.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
