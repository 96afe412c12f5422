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
	"log/slog"
	"runtime"
)

// DefaultWorkerCount bounds concurrent tasks per scan level.
var DefaultWorkerCount = runtime.NumCPU()

// Option configures the scanners.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	workerCount int
	filter      *ModuleFilter
}

func defaultOptions() options {
	return options{
		logger:      slog.Default(),
		workerCount: DefaultWorkerCount,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkerCount bounds the number of concurrent file or module tasks.
// Non-positive values are ignored.
func WithWorkerCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workerCount = n
		}
	}
}

// WithModuleFilter sets the module exclusion filter used by ProjectScanner.
func WithModuleFilter(f *ModuleFilter) Option {
	return func(o *options) {
		o.filter = f
	}
}
