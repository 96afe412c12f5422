// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline wires the scanners and graph passes into a single build:
// scan the primary source, optionally pull in missing entities from a
// universe source, then qualify, exclude and prune.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/usegraph/services/usegraph/ast"
	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/extract"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
	"github.com/AleutianAI/usegraph/services/usegraph/scan"
)

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithParser replaces the default Swift parser.
func WithParser(p ast.Parser) Option {
	return func(b *Builder) {
		b.parser = p
	}
}

// WithSnapshots enables the universe cache.
func WithSnapshots(m *graph.SnapshotManager) Option {
	return func(b *Builder) {
		b.snapshots = m
	}
}

// Stats summarizes a build.
type Stats struct {
	Modules  int           `json:"modules"`
	Entities int           `json:"entities"`
	Edges    int           `json:"edges"`
	Imported int           `json:"imported"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is the outcome of a build.
type Result struct {
	// Root is the scanned path.
	Root string

	// Graph is the final, normalized project graph.
	Graph graph.Graph

	// Modules are the per-module graphs before normalization.
	Modules []scan.ModuleResult

	Stats   Stats
	BuiltAt time.Time
}

// Builder runs builds for one configuration.
//
// Thread Safety: Safe for concurrent use; each Build is independent.
type Builder struct {
	cfg       config.Config
	logger    *slog.Logger
	parser    ast.Parser
	snapshots *graph.SnapshotManager
	projects  *scan.ProjectScanner
}

// NewBuilder validates the non-path options of cfg and assembles the
// parser, walker and scanners.
//
// Outputs:
//
//	*Builder - Ready to build.
//	error - Wrapped config error or scan.ErrInvalidPattern.
func NewBuilder(cfg config.Config, opts ...Option) (*Builder, error) {
	if err := cfg.ValidateOptions(); err != nil {
		return nil, err
	}
	b := &Builder{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.parser == nil {
		b.parser = ast.NewSwiftParser(
			ast.WithSwiftMaxFileSize(cfg.MaxFileSize),
			ast.WithSwiftLogger(b.logger),
		)
	}
	filter, err := scan.NewModuleFilter(cfg.ExcludedModules)
	if err != nil {
		return nil, err
	}
	walker := extract.NewWalker(extract.WithAdditionalExcludedTypes(cfg.ExcludedTypes))
	files := scan.NewFileScanner(b.parser, walker, scan.WithLogger(b.logger))
	b.projects = scan.NewDefaultProjectScanner(files,
		scan.WithLogger(b.logger),
		scan.WithWorkerCount(cfg.WorkerCount),
		scan.WithModuleFilter(filter),
	)
	return b, nil
}

// Config returns the builder's configuration.
func (b *Builder) Config() config.Config {
	return b.cfg
}

// Build scans the configured project or folder path.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	if err := b.cfg.ValidatePaths(); err != nil {
		return nil, err
	}
	src, err := scan.DetectSource(b.cfg.Root())
	if err != nil {
		return nil, err
	}
	return b.BuildSource(ctx, src)
}

// BuildSource scans src and normalizes the result.
//
// Description:
//
//	Runs the project scan, loads the universe graph when configured, then
//	applies Normalize. Failures of individual files never fail the build;
//	only source enumeration errors and cancellation do.
func (b *Builder) BuildSource(ctx context.Context, src scan.Source) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Builder.BuildSource",
		trace.WithAttributes(attribute.String("build.root", src.Root())),
	)
	defer span.End()

	res, err := b.build(ctx, src)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
	}
	elapsed := time.Since(start)
	buildsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	buildDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		return nil, err
	}

	res.Stats.Duration = elapsed
	span.SetAttributes(
		attribute.Int("build.entities", res.Stats.Entities),
		attribute.Int("build.edges", res.Stats.Edges),
		attribute.Int("build.imported", res.Stats.Imported),
	)
	b.logger.Info("build finished",
		slog.String("root", res.Root),
		slog.Int("modules", res.Stats.Modules),
		slog.Int("entities", res.Stats.Entities),
		slog.Int("edges", res.Stats.Edges),
		slog.Int("imported", res.Stats.Imported),
		slog.Duration("duration", elapsed))
	return res, nil
}

func (b *Builder) build(ctx context.Context, src scan.Source) (*Result, error) {
	modules, err := b.projects.ScanModules(ctx, src)
	if err != nil {
		return nil, err
	}
	primary := make(graph.Graph)
	for _, m := range modules {
		primary.MergeFrom(m.Graph)
	}

	var universe graph.Graph
	if b.cfg.UniversePath != "" {
		universe, err = b.loadUniverse(ctx)
		if err != nil {
			return nil, err
		}
	}

	out, imported := Normalize(ctx, primary, universe, b.cfg.ExcludedNames, b.cfg.ShowLeafReferences)
	if imported > 0 {
		closureImported.Add(ctx, int64(imported))
	}
	return &Result{
		Root:    src.Root(),
		Graph:   out,
		Modules: modules,
		Stats: Stats{
			Modules:  len(modules),
			Entities: len(out),
			Edges:    out.EdgeCount(),
			Imported: imported,
		},
		BuiltAt: time.Now(),
	}, nil
}

// Normalize applies the graph passes in order: closure against universe,
// qualification, exclusion and, unless showLeaves, pruning to known keys.
//
// Outputs:
//
//	graph.Graph - The normalized graph. primary and universe are not modified.
//	int - Number of entities imported from universe.
func Normalize(ctx context.Context, primary, universe graph.Graph, excluded []string, showLeaves bool) (graph.Graph, int) {
	_, span := tracer.Start(ctx, "pipeline.Normalize")
	defer span.End()

	g := graph.MergeClosure(primary, universe)
	imported := len(g) - len(primary)
	// Qualifying first means a leaf reference to an excluded nested key stays qualified and dangles.
	g = graph.Qualify(g)
	g = graph.Exclude(g, excluded)
	if !showLeaves {
		g = graph.PruneToKnown(g)
	}
	span.SetAttributes(attribute.Int("normalize.imported", imported))
	return g, imported
}

// loadUniverse returns the universe graph, from the snapshot cache when
// its fingerprint is unchanged.
func (b *Builder) loadUniverse(ctx context.Context) (graph.Graph, error) {
	src, err := scan.DetectSource(b.cfg.UniversePath)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}

	var fingerprint string
	if b.snapshots != nil {
		fingerprint, err = Fingerprint(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("universe fingerprint: %w", err)
		}
		cached, err := b.snapshots.LoadUniverse(ctx, fingerprint)
		switch {
		case err == nil:
			universeLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", true)))
			b.logger.Debug("universe cache hit", slog.String("fingerprint", fingerprint))
			return cached, nil
		case errors.Is(err, graph.ErrSnapshotNotFound):
			universeLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", false)))
		default:
			b.logger.Warn("universe cache unreadable, rescanning",
				slog.String("fingerprint", fingerprint),
				slog.String("error", err.Error()))
		}
	}

	universe, err := b.projects.Scan(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	if b.snapshots != nil {
		if err := b.snapshots.SaveUniverse(ctx, fingerprint, universe); err != nil {
			b.logger.Warn("caching universe failed", slog.String("error", err.Error()))
		}
	}
	return universe, nil
}
