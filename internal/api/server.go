// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/streamlytics/churnpipe/internal/config"
	"github.com/streamlytics/churnpipe/internal/logging"
)

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	httpServer *http.Server
	cfg        *config.ServerConfig
}

// NewServer builds the HTTP server from configuration.
func NewServer(cfg *config.ServerConfig, store RiskStore) *Server {
	handler := NewRouter(NewHandler(store))
	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg: cfg,
	}
}

// Run serves until the context is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpServer.Addr).Msg("Risk API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api: server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	logging.Info().Msg("Shutting down risk API")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown failed: %w", err)
	}
	return <-errCh
}
