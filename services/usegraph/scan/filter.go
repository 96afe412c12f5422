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
	"errors"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern indicates a module exclusion pattern could not be compiled.
var ErrInvalidPattern = errors.New("invalid module pattern")

// ModuleFilter decides which modules are excluded from a scan.
//
// Patterns are gobwas globs matched against the module name, so plain names
// match exactly and "Feature*" excludes every module with that prefix.
type ModuleFilter struct {
	matchers []glob.Glob
}

// NewModuleFilter compiles the exclusion patterns.
//
// Outputs:
//
//	*ModuleFilter - Never nil on success. An empty pattern list excludes nothing.
//	error - Wraps ErrInvalidPattern if a pattern does not compile.
func NewModuleFilter(patterns []string) (*ModuleFilter, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		m, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		matchers = append(matchers, m)
	}
	return &ModuleFilter{matchers: matchers}, nil
}

// Excluded reports whether the module name matches any pattern. Safe on a
// nil filter.
func (f *ModuleFilter) Excluded(name string) bool {
	if f == nil {
		return false
	}
	for _, m := range f.matchers {
		if m.Match(name) {
			return true
		}
	}
	return false
}

// Apply returns the modules that are not excluded.
func (f *ModuleFilter) Apply(modules []Module) []Module {
	if f == nil || len(f.matchers) == 0 {
		return modules
	}
	out := make([]Module, 0, len(modules))
	for _, m := range modules {
		if !f.Excluded(m.Name) {
			out = append(out, m)
		}
	}
	return out
}
