// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// ModuleResult is the graph of one non-empty module.
type ModuleResult struct {
	Name  string
	Graph graph.Graph
}

// ProjectScanner scans every module of a Source and merges the results.
//
// Thread Safety: Safe for concurrent use.
type ProjectScanner struct {
	modules     *ModuleScanner
	logger      *slog.Logger
	workerCount int
	filter      *ModuleFilter
}

// NewProjectScanner creates a ProjectScanner on top of a ModuleScanner.
func NewProjectScanner(modules *ModuleScanner, opts ...Option) *ProjectScanner {
	o := applyOptions(opts)
	return &ProjectScanner{
		modules:     modules,
		logger:      o.logger,
		workerCount: o.workerCount,
		filter:      o.filter,
	}
}

// ScanModules scans every module of src concurrently.
//
// Description:
//
//	Modules matched by the exclusion filter are skipped. Modules whose
//	graph is empty are dropped. Results are sorted by module name.
//
// Outputs:
//
//	[]ModuleResult - The non-empty module graphs.
//	error - Non-nil if the source cannot enumerate modules or ctx is canceled.
func (s *ProjectScanner) ScanModules(ctx context.Context, src Source) ([]ModuleResult, error) {
	scanID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "scan.ProjectScanner.ScanModules",
		trace.WithAttributes(
			attribute.String("scan.id", scanID),
			attribute.String("scan.root", src.Root()),
		),
	)
	defer span.End()
	start := time.Now()

	modules, err := src.Modules(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enumerating modules failed")
		return nil, fmt.Errorf("enumerating modules of %s: %w", src.Root(), err)
	}
	modules = s.filter.Apply(modules)
	span.SetAttributes(attribute.Int("scan.modules", len(modules)))

	s.logger.Info("scan started",
		slog.String("scan_id", scanID),
		slog.String("root", src.Root()),
		slog.Int("modules", len(modules)))

	resultCh := make(chan ModuleResult, len(modules))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.workerCount)

	for _, module := range modules {
		m := module
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			mg, err := s.modules.Scan(gctx, m)
			if err != nil {
				return err
			}
			if len(mg) > 0 {
				resultCh <- ModuleResult{Name: m.Name, Graph: mg}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan canceled")
		return nil, fmt.Errorf("scan %s: %w", scanID, err)
	}
	close(resultCh)

	results := make([]ModuleResult, 0, len(modules))
	for r := range resultCh {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	scanDuration.WithLabelValues("project").Observe(time.Since(start).Seconds())
	s.logger.Info("scan finished",
		slog.String("scan_id", scanID),
		slog.Int("modules", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// Scan scans src and union-merges the module graphs into the project graph.
func (s *ProjectScanner) Scan(ctx context.Context, src Source) (graph.Graph, error) {
	results, err := s.ScanModules(ctx, src)
	if err != nil {
		return nil, err
	}
	project := make(graph.Graph)
	for _, r := range results {
		project.MergeFrom(r.Graph)
	}
	entitiesProduced.Add(float64(len(project)))
	return project, nil
}

// NewDefaultProjectScanner stacks a ModuleScanner and a ProjectScanner on
// files, applying opts at both levels.
func NewDefaultProjectScanner(files *FileScanner, opts ...Option) *ProjectScanner {
	return NewProjectScanner(NewModuleScanner(files, opts...), opts...)
}
