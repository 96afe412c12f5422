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
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
)

// app holds state shared by all subcommands.
type app struct {
	configDir     string
	verbose       bool
	traceStdout   bool
	metricsStdout bool
	otlpEndpoint  string

	logger   *slog.Logger
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "usegraph",
		Short:        "Build the uses graph of Swift types",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", ".", "Directory holding "+config.FileName)
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&a.traceStdout, "trace-stdout", false, "Print OpenTelemetry spans to stderr")
	pf.BoolVar(&a.metricsStdout, "metrics-stdout", false, "Print OpenTelemetry metrics to stderr")
	pf.StringVar(&a.otlpEndpoint, "otlp-endpoint", "", "Export spans to an OTLP/gRPC collector (host:port)")

	root.AddCommand(
		newBuildCmd(a),
		newAnalyzeCmd(a),
		newServeCmd(a),
		newSnapshotCmd(a),
		newInitCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	config.LoadDotEnv()
	a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
	slog.SetDefault(a.logger)

	endpoint := a.otlpEndpoint
	if endpoint == "" {
		endpoint = os.Getenv(config.EnvOTLPEndpoint)
	}
	shutdown, err := setupTelemetry(cmd.Context(), telemetryOptions{
		traceStdout:   a.traceStdout,
		metricsStdout: a.metricsStdout,
		otlpEndpoint:  endpoint,
		stderr:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown() error {
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.shutdown(ctx)
}

// loadConfig layers config file < environment.
func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return cfg, err
	}
	config.ApplyEnv(&cfg)
	return cfg, nil
}

// newLogger returns a text handler for terminals and a JSON handler
// otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
