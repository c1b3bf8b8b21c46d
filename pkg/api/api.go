// Package api serves persisted run history over HTTP and exposes the
// refresh operation to reviewers. It is the only contract a UI layer
// needs to implement against.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/careops/claimrunner/pkg/config"
	"github.com/careops/claimrunner/pkg/store"
	"github.com/careops/claimrunner/pkg/submit"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	store      store.Store
	status     submit.StatusClient
	refresher  *refresher
	httpServer *http.Server
}

// NewServer creates a new API server. status is used for refresh
// operations against the system of record.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	status submit.StatusClient,
) Server {
	return &server{
		log:    log.WithField("component", "api"),
		cfg:    cfg,
		status: status,
	}
}

// Start initializes the store, seeds users, and starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	if s.cfg.Auth.Basic.Enabled {
		if err := s.store.SeedUsers(ctx, s.cfg.Auth.Basic.Users); err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
	}

	if s.cfg.Refresh.Enabled {
		r, err := newRefresher(s.log, &s.cfg.Refresh, s.store, s.status)
		if err != nil {
			return fmt.Errorf("creating refresher: %w", err)
		}

		s.refresher = r
		s.refresher.start(ctx)
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("listen", s.cfg.Server.Listen).Info("API server starting")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server failed")
		}
	}()

	return nil
}

// Stop shuts down the HTTP server, the refresher and the store.
func (s *server) Stop() error {
	if s.refresher != nil {
		s.refresher.stop()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown failed")
		}
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Debug("API server stopped")

	return nil
}
