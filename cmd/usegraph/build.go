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
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/export"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
	"github.com/AleutianAI/usegraph/services/usegraph/pipeline"
	"github.com/AleutianAI/usegraph/services/usegraph/scan"
	"github.com/AleutianAI/usegraph/services/usegraph/watch"
)

// scanFlags are the flags shared by build and analyze.
type scanFlags struct {
	projectPath     string
	folderPath      string
	showLeaves      bool
	excludedNames   []string
	excludedModules []string
	excludedTypes   []string
	universe        string
	workers         int
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.projectPath, "project-path", "", "Xcode project (.xcodeproj), Swift package directory or its Package.swift")
	fl.StringVar(&f.folderPath, "folder-path", "", "Plain folder scanned as a single module")
	fl.BoolVar(&f.showLeaves, "show-leaf-references", false, "Keep references to types that are not entities")
	fl.StringSliceVar(&f.excludedNames, "excluded-names", nil, "Entity names removed from the graph")
	fl.StringSliceVar(&f.excludedModules, "excluded-modules", nil, "Module name globs skipped by the scanner")
	fl.StringSliceVar(&f.excludedTypes, "excluded-types", nil, "Extra type names never recorded as references")
	fl.StringVar(&f.universe, "universe", "", "Broader package or folder to pull referenced entities from")
	fl.IntVar(&f.workers, "workers", 0, "Concurrent file and module scans (0 = number of CPUs)")
}

// apply overrides cfg with the flags the user set. Setting either path flag
// replaces both paths from the config file.
func (f *scanFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("project-path") || fl.Changed("folder-path") {
		cfg.ProjectPath = f.projectPath
		cfg.FolderPath = f.folderPath
	}
	if fl.Changed("show-leaf-references") {
		cfg.ShowLeafReferences = f.showLeaves
	}
	cfg.ExcludedNames = append(cfg.ExcludedNames, f.excludedNames...)
	cfg.ExcludedModules = append(cfg.ExcludedModules, f.excludedModules...)
	cfg.ExcludedTypes = append(cfg.ExcludedTypes, f.excludedTypes...)
	if fl.Changed("universe") {
		cfg.UniversePath = f.universe
	}
	if fl.Changed("workers") {
		cfg.WorkerCount = f.workers
	}
}

type buildFlags struct {
	scanFlags
	format   string
	output   string
	watch    bool
	snapshot bool
	label    string
}

func newBuildCmd(a *app) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Scan Swift sources and export the uses graph",
		Long: `Scans a Swift package (one module per Sources/ target) or a plain folder,
builds the graph of type references and writes it to the output directory
or bucket (s3://bucket/prefix, gs://bucket/prefix).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, a, f)
		},
	}
	f.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&f.format, "format", "", "Output format: gv, csv or json (default gv)")
	fl.StringVarP(&f.output, "output", "o", "", "Output directory, s3:// or gs:// URL (default .)")
	fl.BoolVarP(&f.watch, "watch", "w", false, "Rebuild when .swift files change")
	fl.BoolVar(&f.snapshot, "snapshot", false, "Save each build as a snapshot")
	fl.StringVar(&f.label, "label", "", "Snapshot label")
	return cmd
}

func runBuild(cmd *cobra.Command, a *app, f *buildFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	f.apply(cmd, &cfg)
	fl := cmd.Flags()
	if fl.Changed("format") {
		cfg.Format = config.Format(f.format)
	}
	if fl.Changed("output") {
		cfg.Output = f.output
	}
	if fl.Changed("label") {
		cfg.SnapshotLabel = f.label
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Format, err = config.ParseFormat(string(cfg.Format)); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := a.logger

	var snapshots *graph.SnapshotManager
	if f.snapshot || cfg.UniversePath != "" {
		mgr, closeDB, err := openSnapshots(cfg, logger)
		switch {
		case err == nil:
			defer closeDB()
			snapshots = mgr
		case f.snapshot:
			return err
		default:
			logger.Warn("universe cache unavailable", slog.Any("error", err))
		}
	}

	builder, err := pipeline.NewBuilder(cfg, pipeline.WithLogger(logger), pipeline.WithSnapshots(snapshots))
	if err != nil {
		return err
	}
	sink, err := export.OpenSink(ctx, cfg.Output, config.S3FromEnv(), logger)
	if err != nil {
		return err
	}
	defer closeSink(sink)

	run := func(ctx context.Context, out io.Writer) error {
		res, err := builder.Build(ctx)
		if err != nil {
			return err
		}
		artifacts, err := export.Render(res.Graph, cfg.Format, res.Root)
		if err != nil {
			return err
		}
		locations, err := export.WriteAll(ctx, sink, artifacts)
		if err != nil {
			return err
		}
		var meta *graph.SnapshotMetadata
		if f.snapshot {
			if meta, err = snapshots.Save(ctx, res.Graph, res.Root, cfg.SnapshotLabel); err != nil {
				return err
			}
		}
		return writeBuildSummary(out, res, locations, meta)
	}

	if err := run(ctx, cmd.OutOrStdout()); err != nil {
		return err
	}
	if !f.watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	w, err := watch.New(watchRoot(cfg.Root()), watch.WithLogger(logger))
	if err != nil {
		return err
	}
	if isTerminal(cmd.OutOrStdout()) {
		return runWatchUI(ctx, cmd.OutOrStdout(), w, cfg.Root(), run)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Watching for changes. Press Ctrl+C to stop.")
	return w.Run(ctx, func(ctx context.Context, c watch.Change) error {
		logger.Info("rebuilding", slog.Int("changed_files", len(c.Paths)))
		return run(ctx, cmd.OutOrStdout())
	})
}

// watchRoot returns the directory to watch for a scan root. An Xcode
// project is watched from the directory holding it.
func watchRoot(root string) string {
	if filepath.Base(root) == scan.PackageManifest || scan.IsXcodeproj(root) {
		return filepath.Dir(filepath.Clean(root))
	}
	return root
}

// openSnapshots opens the snapshot store in the configured cache dir.
func openSnapshots(cfg config.Config, logger *slog.Logger) (*graph.SnapshotManager, func(), error) {
	db, err := graph.OpenSnapshotDB(cfg.ResolvedCacheDir())
	if err != nil {
		return nil, nil, err
	}
	mgr, err := graph.NewSnapshotManager(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return mgr, func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing snapshot db failed", slog.Any("error", err))
		}
	}, nil
}

func writeBuildSummary(w io.Writer, res *pipeline.Result, locations []string, meta *graph.SnapshotMetadata) error {
	rows := [][]string{
		{"Root", res.Root},
		{"Modules", strconv.Itoa(res.Stats.Modules)},
		{"Entities", strconv.Itoa(res.Stats.Entities)},
		{"Edges", strconv.Itoa(res.Stats.Edges)},
	}
	if res.Stats.Imported > 0 {
		rows = append(rows, []string{"Imported", strconv.Itoa(res.Stats.Imported)})
	}
	rows = append(rows, []string{"Duration", res.Stats.Duration.Round(time.Millisecond).String()})
	for _, loc := range locations {
		rows = append(rows, []string{"Wrote", loc})
	}
	if meta != nil {
		rows = append(rows, []string{"Snapshot", meta.SnapshotID})
	}
	_, err := fmt.Fprintln(w, keyValueTable(rows))
	return err
}

// closeSink releases sinks that hold a client.
func closeSink(sink export.Sink) {
	if c, ok := sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("closing output failed", slog.Any("error", err))
		}
	}
}
