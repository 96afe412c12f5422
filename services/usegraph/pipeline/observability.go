// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const pipelineInstrumentationName = "usegraph.pipeline"

var (
	tracer = otel.Tracer(pipelineInstrumentationName)
	meter  = otel.Meter(pipelineInstrumentationName)
)

// OTel instruments for builds. They forward to whichever MeterProvider is
// installed globally; without one they are no-ops.
var (
	// buildsTotal counts builds by status ("ok" or "error").
	buildsTotal = mustCounter(meter.Int64Counter("usegraph.pipeline.builds",
		metric.WithDescription("Completed graph builds by status.")))

	// buildDuration measures end-to-end build latency.
	buildDuration = mustHistogram(meter.Float64Histogram("usegraph.pipeline.duration",
		metric.WithDescription("Duration of graph builds."),
		metric.WithUnit("s")))

	// closureImported counts entities pulled in from universe graphs.
	closureImported = mustCounter(meter.Int64Counter("usegraph.pipeline.closure_imported",
		metric.WithDescription("Entities imported from the universe graph.")))

	// universeLookups counts universe cache lookups, labelled hit=true|false.
	universeLookups = mustCounter(meter.Int64Counter("usegraph.pipeline.universe_lookups",
		metric.WithDescription("Universe cache lookups by outcome.")))
)

func mustCounter(c metric.Int64Counter, err error) metric.Int64Counter {
	if err != nil {
		panic(err)
	}
	return c
}

func mustHistogram(h metric.Float64Histogram, err error) metric.Float64Histogram {
	if err != nil {
		panic(err)
	}
	return h
}
