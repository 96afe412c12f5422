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
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials/insecure"
)

// metricsRegisterer receives the OTel Prometheus collector.
var metricsRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

type telemetryOptions struct {
	traceStdout   bool
	metricsStdout bool
	otlpEndpoint  string
	stderr        io.Writer
}

// setupTelemetry installs the global tracer and meter providers.
//
// Description:
//
//	Metrics always flow to the Prometheus default registry, so they appear
//	on the server's /metrics endpoint next to the scan counters. Spans are
//	only exported when a stdout or OTLP exporter is requested.
//
// Outputs:
//
//	func(context.Context) error - Flushes and shuts down the providers.
//	error - Non-nil if an exporter cannot be created.
func setupTelemetry(ctx context.Context, opts telemetryOptions) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	res := resource.NewSchemaless(attribute.String("service.name", "usegraph"))

	var shutdowns []func(context.Context) error

	promExporter, err := otelprom.New(otelprom.WithRegisterer(metricsRegisterer))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res), sdkmetric.WithReader(promExporter)}
	if opts.metricsStdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.stderr))
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	mp := sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(mp)
	shutdowns = append(shutdowns, mp.Shutdown)

	var traceOpts []sdktrace.TracerProviderOption
	if opts.traceStdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithSyncer(exp))
	}
	if opts.otlpEndpoint != "" {
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.otlpEndpoint),
			otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
	}
	if len(traceOpts) > 0 {
		tp := sdktrace.NewTracerProvider(append(traceOpts, sdktrace.WithResource(res))...)
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}, nil
}
