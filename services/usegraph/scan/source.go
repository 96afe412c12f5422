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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// PackageManifest is the file that marks a SwiftPM package root.
const PackageManifest = "Package.swift"

var (
	// ErrRootNotExist is returned when a source root does not exist.
	ErrRootNotExist = errors.New("source root does not exist")

	// ErrRootNotDir is returned when a source root is not a directory.
	ErrRootNotDir = errors.New("source root is not a directory")

	// ErrNotPackage is returned when a package source has no manifest.
	ErrNotPackage = errors.New("not a swift package")
)

// File is one source file of a module.
type File struct {
	// Path is the file path on disk, or a display name for inline files.
	Path string

	// Content, when non-nil, is used instead of reading Path.
	Content []byte
}

// Module is a named set of files scanned together.
type Module struct {
	Name  string
	Files []File
}

// Source partitions a codebase into modules.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Source interface {
	// Modules enumerates the modules and their files.
	Modules(ctx context.Context) ([]Module, error)

	// Root returns the path the source was created from, used for
	// provenance and snapshot keys.
	Root() string
}

// StaticSource serves a fixed, in-memory set of modules.
type StaticSource struct {
	Name    string
	Entries []Module
}

// Modules returns the configured modules.
func (s *StaticSource) Modules(ctx context.Context) ([]Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Entries, nil
}

// Root returns the configured name.
func (s *StaticSource) Root() string {
	return s.Name
}

// FolderSource treats a directory tree as a single unnamed module.
//
// Description:
//
//	Walks the tree, skipping hidden entries, bundle directories
//	(".xcodeproj", ".xcassets", ...) and paths matched by the root
//	".gitignore". Every remaining regular file is listed; the file scanner
//	decides which ones it can parse.
type FolderSource struct {
	Path string
}

// NewFolderSource creates a FolderSource rooted at path.
func NewFolderSource(path string) *FolderSource {
	return &FolderSource{Path: path}
}

// Modules returns one module named "" holding every file under the root.
func (s *FolderSource) Modules(ctx context.Context) ([]Module, error) {
	if err := checkDir(s.Path); err != nil {
		return nil, err
	}
	files, err := listFiles(ctx, s.Path, loadIgnore(s.Path))
	if err != nil {
		return nil, err
	}
	return []Module{{Name: "", Files: files}}, nil
}

// Root returns the folder path.
func (s *FolderSource) Root() string {
	return s.Path
}

// PackageSource partitions a SwiftPM package into one module per target
// directory under "Sources/".
type PackageSource struct {
	Path string
}

// NewPackageSource creates a PackageSource. path may name the package
// directory or its Package.swift.
func NewPackageSource(path string) *PackageSource {
	if filepath.Base(path) == PackageManifest {
		path = filepath.Dir(path)
	}
	return &PackageSource{Path: path}
}

// Modules returns one module per directory in Sources/, named after the
// directory. Modules are sorted by name.
func (s *PackageSource) Modules(ctx context.Context) ([]Module, error) {
	if err := checkDir(s.Path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(s.Path, PackageManifest)); err != nil {
		return nil, fmt.Errorf("%w: %s has no %s", ErrNotPackage, s.Path, PackageManifest)
	}

	sourcesDir := filepath.Join(s.Path, "Sources")
	entries, err := os.ReadDir(sourcesDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourcesDir, err)
	}

	gi := loadIgnore(s.Path)
	var modules []Module
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files, err := listFiles(ctx, filepath.Join(sourcesDir, e.Name()), nil)
		if err != nil {
			return nil, err
		}
		if gi != nil {
			files = filterIgnored(s.Path, files, gi)
		}
		modules = append(modules, Module{Name: e.Name(), Files: files})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules, nil
}

// Root returns the package directory.
func (s *PackageSource) Root() string {
	return s.Path
}

// DetectSource picks XcodeprojSource for an .xcodeproj bundle,
// PackageSource for a SwiftPM package (a directory with Package.swift, or
// the manifest itself) and FolderSource otherwise.
func DetectSource(path string) (Source, error) {
	if filepath.Base(path) == PackageManifest {
		return NewPackageSource(path), nil
	}
	if err := checkDir(path); err != nil {
		return nil, err
	}
	if IsXcodeproj(path) {
		return NewXcodeprojSource(path), nil
	}
	if _, err := os.Stat(filepath.Join(path, PackageManifest)); err == nil {
		return NewPackageSource(path), nil
	}
	return NewFolderSource(path), nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrRootNotExist, path)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, path)
	}
	return nil
}

// bundleExtensions are directory suffixes treated as opaque packages.
var bundleExtensions = map[string]bool{
	".xcodeproj":   true,
	".xcworkspace": true,
	".xcassets":    true,
	".bundle":      true,
	".app":         true,
	".framework":   true,
	".playground":  true,
}

// loadIgnore compiles root/.gitignore, or returns nil if there is none.
func loadIgnore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// listFiles returns every regular file under root in walk order.
func listFiles(ctx context.Context, root string, gi *ignore.GitIgnore) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable entries are skipped like unreadable files.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if gi != nil {
			if rel, err := filepath.Rel(root, path); err == nil && gi.MatchesPath(filepath.ToSlash(rel)) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			if bundleExtensions[strings.ToLower(filepath.Ext(name))] {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, File{Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// filterIgnored drops files whose path relative to root matches gi.
func filterIgnored(root string, files []File, gi *ignore.GitIgnore) []File {
	out := files[:0]
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err == nil && gi.MatchesPath(filepath.ToSlash(rel)) {
			continue
		}
		out = append(out, f)
	}
	return out
}
