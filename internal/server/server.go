// Package server runs the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/internal/bootstrap"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP listener around an assembled application.
type Server struct {
	app  *bootstrap.App
	http *http.Server
}

// New constructs a Server listening on the configured port.
func New(app *bootstrap.App) *Server {
	return &Server{
		app: app,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", app.Config.Port),
			Handler:           NewRouter(app),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Run loads the stores, serves until ctx is cancelled, then drains in-flight
// requests and saves the stores. Autosave, when configured, runs in between.
func (s *Server) Run(ctx context.Context) error {
	logr := s.app.Logger
	s.app.Registration.LoadAll(ctx)
	s.app.Registration.StartAutosave(ctx)

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", s.http.Addr), zap.String("env", s.app.Config.Env))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		serveErr = errors.Join(serveErr, err)
	}

	s.app.Registration.StopAutosave()
	s.app.Registration.SaveAll(shutdownCtx)
	logr.Info("server stopped")
	return serveErr
}
