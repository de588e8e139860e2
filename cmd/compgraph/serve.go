// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/compgraph/services/compgraph"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *cli) *cobra.Command {
	defaults := compgraph.DefaultServiceConfig()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.runServe(ctx)
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8090", "Listen address")
	f.String("allowed-root", "", "Directory below which {\"root\": ...} requests may read (empty disables)")
	f.Float64("rate", defaults.RateLimit, "Sustained requests per second (0 disables limiting)")
	f.Int("burst", defaults.RateBurst, "Rate limiter burst")
	f.Int("max-files", defaults.MaxRequestFiles, "Maximum inline files per request")
	f.Bool("memory", false, "Keep snapshots in memory instead of --db")
	f.Bool("debug", false, "Enable gin debug mode and request logging")
	return cmd
}

// serviceConfig resolves the service configuration from flags and env.
func (a *cli) serviceConfig(ctx context.Context) (compgraph.ServiceConfig, error) {
	engCfg, err := a.engineConfig(ctx)
	if err != nil {
		return compgraph.ServiceConfig{}, err
	}
	cfg := compgraph.DefaultServiceConfig()
	cfg.Engine = engCfg
	cfg.Workers = a.v.GetInt("workers")
	cfg.SnapshotDir = a.v.GetString("db")
	cfg.SnapshotsInMemory = a.v.GetBool("memory")
	cfg.AllowedRoot = a.v.GetString("allowed-root")
	cfg.RateLimit = a.v.GetFloat64("rate")
	cfg.RateBurst = a.v.GetInt("burst")
	cfg.MaxRequestFiles = a.v.GetInt("max-files")
	return cfg, nil
}

func (a *cli) runServe(ctx context.Context) error {
	if a.v.GetBool("debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := a.serviceConfig(ctx)
	if err != nil {
		return err
	}
	svc, err := compgraph.NewService(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			a.logger.Warn("failed to close service", slog.String("error", err.Error()))
		}
	}()

	router := compgraph.NewRouter(svc)
	if a.v.GetBool("debug") {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              a.v.GetString("addr"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting compgraph server",
			slog.String("address", srv.Addr),
			slog.Bool("snapshots", svc.Snapshots() != nil),
			slog.Int("workers", svc.Engine().Workers()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down compgraph server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
