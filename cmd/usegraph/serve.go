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
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/usegraph/services/usegraph/server"
)

type serveFlags struct {
	addr      string
	cacheSize int
	scanRate  float64
	scanBurst int
}

func newServeCmd(a *app) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scan server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", ":8090", "Listen address")
	fl.IntVar(&f.cacheSize, "cache-size", server.DefaultCacheSize, "Number of graphs kept in memory")
	fl.Float64Var(&f.scanRate, "scan-rate", server.DefaultScanRate, "Scans per second allowed")
	fl.IntVar(&f.scanBurst, "scan-burst", server.DefaultScanBurst, "Scan burst size")
	return cmd
}

func runServe(cmd *cobra.Command, a *app, f *serveFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateOptions(); err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithCacheSize(f.cacheSize),
		server.WithScanRate(f.scanRate, f.scanBurst),
	}
	mgr, closeDB, err := openSnapshots(cfg, a.logger)
	if err != nil {
		a.logger.Warn("snapshot store unavailable, snapshot endpoints disabled",
			slog.String("path", cfg.ResolvedCacheDir()),
			slog.String("error", err.Error()),
		)
	} else {
		defer closeDB()
		opts = append(opts, server.WithSnapshots(mgr))
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              f.addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting usegraph server", slog.String("address", f.addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down usegraph server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
