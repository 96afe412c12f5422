// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const astTracerName = "usegraph.ast"

var (
	// parseDuration measures parse latency.
	//
	// Labels:
	//   - language: "swift"
	//   - status: "success" or "error"
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usegraph",
			Subsystem: "ast",
			Name:      "parse_duration_seconds",
			Help:      "Duration of source file parses in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"language", "status"},
	)

	// parseDecls counts declarations found by successful parses.
	parseDecls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usegraph",
			Subsystem: "ast",
			Name:      "declarations_total",
			Help:      "Total type declarations produced by parses.",
		},
		[]string{"language"},
	)
)

func startParseSpan(ctx context.Context, language, filePath string, size int) (context.Context, trace.Span) {
	return otel.Tracer(astTracerName).Start(ctx, "ast.Parse",
		trace.WithAttributes(
			attribute.String("parse.language", language),
			attribute.String("parse.file", filePath),
			attribute.Int("parse.size_bytes", size),
		),
	)
}

func setParseSpanResult(span trace.Span, decls, errs int) {
	span.SetAttributes(
		attribute.Int("parse.declarations", decls),
		attribute.Int("parse.errors", errs),
	)
}

func recordParseMetrics(language string, d time.Duration, decls int, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	parseDuration.WithLabelValues(language, status).Observe(d.Seconds())
	if ok {
		parseDecls.WithLabelValues(language).Add(float64(decls))
	}
}
