package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/commy-mesh/commy/internal/logger"
	"github.com/commy-mesh/commy/pkg/manager"
	"github.com/commy-mesh/commy/pkg/plugin"
	"github.com/commy-mesh/commy/pkg/sharedfile"
)

// Server is the control-plane HTTP server fronting a Manager.
type Server struct {
	httpServer   *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds a Server. journal may be nil if no audit journal is
// configured; reg may be nil to disable the /metrics route.
func NewServer(cfg Config, mgr *manager.Manager, loader *plugin.Loader, store *sharedfile.Store, journal AuditJournal, reg *prometheus.Registry) *Server {
	cfg.applyDefaults()
	router := NewRouter(mgr, loader, store, journal, reg)

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// config.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api: server listening", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("api: shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("api: server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("api: shutdown error: %w", shutdownErr)
			logger.Error("api: shutdown error", logger.Err(shutdownErr))
			return
		}
		logger.Info("api: server stopped gracefully")
	})
	return err
}
