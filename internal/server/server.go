// Package server mounts the HTTP surface and owns the listener lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geosense/landtraj/internal/config"
	"github.com/geosense/landtraj/internal/datasource"
	"github.com/geosense/landtraj/internal/health"
	"github.com/geosense/landtraj/internal/middleware"
	"github.com/geosense/landtraj/internal/router"
)

// Run serves until ctx is cancelled, then drains connections.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, reg *datasource.Registry) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))

	r.Get("/healthz", health.Liveness())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/trajectory", router.HandleTrajectory(logger, reg))
	r.Get("/datasources", router.HandleDataSources(reg))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
