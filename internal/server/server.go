package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agorgl/blocky/internal/index"
)

// Server serves the listing and patch endpoints over a single directory
// root. All request handling is stateless apart from the read-only listing
// snapshot owned by the index service.
type Server struct {
	config   *Config
	server   *http.Server
	indexSvc *index.Service
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	indexer, err := index.NewIndexer(config.Index.Root, config.Index.Exclude)
	if err != nil {
		return nil, err
	}
	indexSvc := index.NewService(indexer, config.Index.ListingTTL)

	return &Server{
		config:   config,
		indexSvc: indexSvc,
		server: &http.Server{
			Addr:    config.HTTP.Addr,
			Handler: SetupRoutes(indexSvc),
		},
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("blocky server start", "root", s.config.Index.Root)
	defer slog.Info("blocky server stop")

	// Fail fast on an unreadable root instead of on the first request.
	listing, err := s.indexSvc.Listing()
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	slog.Info("index ready", "files", len(listing.Files))

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHTTPServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		slog.Info("http server stopped")
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("blocky shutdown signal")
	return s.Stop(context.Background())
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) runHTTPServer() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
