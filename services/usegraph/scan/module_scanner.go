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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// ModuleScanner scans every file of a module and merges the results.
//
// Thread Safety: Safe for concurrent use.
type ModuleScanner struct {
	files       *FileScanner
	logger      *slog.Logger
	workerCount int
}

// NewModuleScanner creates a ModuleScanner on top of a FileScanner.
func NewModuleScanner(files *FileScanner, opts ...Option) *ModuleScanner {
	o := applyOptions(opts)
	return &ModuleScanner{files: files, logger: o.logger, workerCount: o.workerCount}
}

// Scan builds the graph of one module.
//
// Description:
//
//	Files are scanned concurrently, at most workerCount at a time. Each
//	task returns its own tagged graph over a buffered channel; the results
//	are union-merged in this goroutine once all tasks finish, so completion
//	order does not affect the result. Extension entities are then folded
//	into their base entities.
//
// Inputs:
//
//	ctx - Context for cancellation. A failing file never cancels siblings.
//	m - The module to scan.
//
// Outputs:
//
//	graph.Graph - The module graph. Empty when no file produced an entity.
//	error - Non-nil only if ctx was canceled.
func (s *ModuleScanner) Scan(ctx context.Context, m Module) (graph.Graph, error) {
	ctx, span := tracer.Start(ctx, "scan.ModuleScanner.Scan",
		trace.WithAttributes(
			attribute.String("module.name", m.Name),
			attribute.Int("module.files", len(m.Files)),
		),
	)
	defer span.End()
	start := time.Now()

	resultCh := make(chan graph.Graph, len(m.Files))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.workerCount)

	for _, file := range m.Files {
		f := file
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			res := s.files.Scan(gctx, f)
			if len(res.Graph) > 0 {
				resultCh <- res.Graph.Tag(m.Name, res.FileName)
			}
			// Individual failure is not fatal.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning module %q: %w", m.Name, err)
	}
	close(resultCh)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scanning module %q: %w", m.Name, err)
	}

	merged := make(graph.Graph)
	for fileGraph := range resultCh {
		merged.MergeFrom(fileGraph)
	}
	merged = graph.FoldExtensions(merged)

	span.SetAttributes(attribute.Int("module.entities", len(merged)))
	scanDuration.WithLabelValues("module").Observe(time.Since(start).Seconds())
	s.logger.Debug("module scanned",
		slog.String("module", m.Name),
		slog.Int("files", len(m.Files)),
		slog.Int("entities", len(merged)),
		slog.Duration("duration", time.Since(start)))

	return merged, nil
}
