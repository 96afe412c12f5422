// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the scan configuration: an optional
// usegraph.config.yaml at the scan root, environment overrides and
// command-line flags, validated before any scan starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the optional per-project config file.
const FileName = "usegraph.config.yaml"

// CacheDirName is the directory created under the user cache dir.
const CacheDirName = "com.github.usegraph"

var (
	// ErrInvalidFormat is returned for an unknown output format.
	ErrInvalidFormat = errors.New("format is not correct")

	// ErrPathRequired is returned when neither a project nor a folder path is set.
	ErrPathRequired = errors.New("a project path or a folder path is required")

	// ErrAmbiguousPath is returned when both a project and a folder path are set.
	ErrAmbiguousPath = errors.New("should be only one path: project path or folder path")

	// ErrInvalidConfig wraps validation and parse failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Format is an output format.
type Format string

const (
	FormatGV   Format = "gv"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatGV, FormatCSV, FormatJSON}

// ParseFormat parses a format name case-insensitively. "dot" is accepted
// as an alias of "gv".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gv", "dot":
		return FormatGV, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q (expected one of gv, csv, json)", ErrInvalidFormat, s)
}

// Config is the full scan configuration.
//
// Description:
//
//	All fields are optional in the YAML file. Relative paths in the file
//	are resolved against the directory holding it.
//
// Thread Safety: Safe for concurrent reads after construction.
type Config struct {
	// ProjectPath is an Xcode project (.xcodeproj) or a SwiftPM package
	// directory (or its Package.swift).
	ProjectPath string `yaml:"project_path"`

	// FolderPath is a plain directory scanned as a single module.
	FolderPath string `yaml:"folder_path"`

	// Format is the output format. Defaults to gv.
	Format Format `yaml:"format" validate:"omitempty,oneof=gv csv json"`

	// Output is the export destination: a directory, "s3://bucket/prefix"
	// or "gs://bucket/prefix". Defaults to the current directory.
	Output string `yaml:"output"`

	// ExcludedNames are entity names removed from the final graph.
	ExcludedNames []string `yaml:"excluded_names" validate:"dive,required"`

	// ExcludedModules are module name globs skipped by the scanner.
	ExcludedModules []string `yaml:"excluded_modules" validate:"dive,required"`

	// ExcludedTypes are added to the built-in platform type names that are
	// never recorded as references.
	ExcludedTypes []string `yaml:"excluded_types" validate:"dive,required"`

	// ShowLeafReferences keeps references to types that were not
	// discovered as entities. When false they are pruned.
	ShowLeafReferences bool `yaml:"show_leaf_references"`

	// UniversePath is an optional broader scan target used to pull in
	// entities referenced by, but outside, the primary scan.
	UniversePath string `yaml:"universe_path"`

	// WorkerCount bounds concurrent file and module scans. 0 means NumCPU.
	WorkerCount int `yaml:"worker_count" validate:"gte=0,lte=1024"`

	// MaxFileSize is the largest file parsed, in bytes. 0 means the parser default.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gte=0"`

	// CacheDir holds the snapshot database. Defaults to DefaultCacheDir().
	CacheDir string `yaml:"cache_dir"`

	// SnapshotLabel labels snapshots saved by this run.
	SnapshotLabel string `yaml:"snapshot_label" validate:"max=128"`
}

// Default returns a Config with defaults applied.
func Default() Config {
	return Config{Format: FormatGV, Output: "."}
}

// Load reads usegraph.config.yaml from dir.
//
// Description:
//
//	A missing file is not an error: Default() is returned. An empty dir
//	also returns Default().
//
// Outputs:
//
//	Config - The parsed config layered over Default().
//	error - Wraps ErrInvalidConfig if the file exists but cannot be parsed.
func Load(dir string) (Config, error) {
	cfg := Default()
	if dir == "" {
		return cfg, nil
	}
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, FileName, err)
	}
	cfg.resolvePaths(dir)
	return cfg, nil
}

// resolvePaths makes relative path fields absolute against base.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.ProjectPath, &c.FolderPath, &c.UniversePath, &c.CacheDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	if c.Output != "" && !strings.Contains(c.Output, "://") && !filepath.IsAbs(c.Output) {
		c.Output = filepath.Join(base, c.Output)
	}
}

// Save writes c as YAML to dir/usegraph.config.yaml.
func (c Config) Save(dir string) (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration before a build.
//
// Outputs:
//
//	error - ErrAmbiguousPath, ErrPathRequired, ErrInvalidFormat or
//	ErrInvalidConfig (all wrapped), or nil.
func (c Config) Validate() error {
	if err := c.ValidatePaths(); err != nil {
		return err
	}
	return c.ValidateOptions()
}

// ValidatePaths checks that exactly one of ProjectPath and FolderPath is set.
func (c Config) ValidatePaths() error {
	switch {
	case c.ProjectPath != "" && c.FolderPath != "":
		return ErrAmbiguousPath
	case c.ProjectPath == "" && c.FolderPath == "":
		return ErrPathRequired
	}
	return nil
}

// ValidateOptions checks every field except the scan paths.
func (c Config) ValidateOptions() error {
	if c.Format != "" {
		f, err := ParseFormat(string(c.Format))
		if err != nil {
			return err
		}
		c.Format = f
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Root returns the scan root: ProjectPath if set, otherwise FolderPath.
func (c Config) Root() string {
	if c.ProjectPath != "" {
		return c.ProjectPath
	}
	return c.FolderPath
}

// ResolvedCacheDir returns CacheDir, or DefaultCacheDir() when unset.
func (c Config) ResolvedCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return DefaultCacheDir()
}

// DefaultCacheDir returns <user cache dir>/com.github.usegraph, falling
// back to the temp dir when the user cache dir is unknown.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, CacheDirName)
}
