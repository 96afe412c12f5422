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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// scanTracerName is the OTel tracer name for all scanners.
const scanTracerName = "usegraph.scan"

var tracer = otel.Tracer(scanTracerName)

// Package-level Prometheus metrics for scans.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// filesScannedTotal counts file scans by outcome.
	//
	// Labels:
	//   - status: one of the FileStatus values
	filesScannedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usegraph",
			Subsystem: "scan",
			Name:      "files_total",
			Help:      "Total files scanned, by outcome.",
		},
		[]string{"status"},
	)

	// scanDuration measures module and project scan latency.
	//
	// Labels:
	//   - level: "module" or "project"
	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usegraph",
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of module and project scans in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"level"},
	)

	// entitiesProduced counts entities in completed project scans.
	entitiesProduced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usegraph",
			Subsystem: "scan",
			Name:      "entities_total",
			Help:      "Total entities produced by project scans.",
		},
	)
)
