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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"howett.net/plist"
)

// XcodeprojExt is the directory suffix of an Xcode project bundle.
const XcodeprojExt = ".xcodeproj"

// pbxprojName is the project file inside an Xcode project bundle.
const pbxprojName = "project.pbxproj"

// ErrNotXcodeproj is returned when an Xcode project bundle has no readable
// project.pbxproj.
var ErrNotXcodeproj = errors.New("not a readable xcode project")

// IsXcodeproj reports whether path names an Xcode project bundle.
func IsXcodeproj(path string) bool {
	return strings.EqualFold(filepath.Ext(filepath.Clean(path)), XcodeprojExt)
}

// XcodeprojSource partitions an Xcode project into one module per native
// target. A module holds the files of the target's Sources build phase.
//
// Description:
//
//	File references are resolved the way Xcode does: "<group>" paths are
//	relative to the enclosing group, "SOURCE_ROOT" paths to the directory
//	holding the .xcodeproj, "<absolute>" paths are used as is. References
//	relative to build products or the SDK are skipped.
type XcodeprojSource struct {
	Path string
}

// NewXcodeprojSource creates an XcodeprojSource for the bundle at path.
func NewXcodeprojSource(path string) *XcodeprojSource {
	return &XcodeprojSource{Path: filepath.Clean(path)}
}

// Root returns the project bundle path.
func (s *XcodeprojSource) Root() string {
	return s.Path
}

// Modules reads project.pbxproj and lists the native targets, sorted by name.
func (s *XcodeprojSource) Modules(ctx context.Context) ([]Module, error) {
	if err := checkDir(s.Path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pbxPath := filepath.Join(s.Path, pbxprojName)
	data, err := os.ReadFile(pbxPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotXcodeproj, err)
	}
	proj, err := parsePBXProj(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotXcodeproj, pbxPath, err)
	}
	return proj.modules(filepath.Dir(s.Path)), nil
}

// pbxproj is the subset of an OpenStep project.pbxproj that module
// discovery needs.
type pbxproj struct {
	Objects    map[string]pbxObject `plist:"objects"`
	RootObject string               `plist:"rootObject"`

	parents map[string]string
}

// pbxObject holds the fields of every isa we read. Unused fields stay empty.
type pbxObject struct {
	ISA         string   `plist:"isa"`
	Name        string   `plist:"name"`
	Path        string   `plist:"path"`
	SourceTree  string   `plist:"sourceTree"`
	BuildPhases []string `plist:"buildPhases"`
	Files       []string `plist:"files"`
	FileRef     string   `plist:"fileRef"`
	Children    []string `plist:"children"`
}

const (
	isaNativeTarget       = "PBXNativeTarget"
	isaSourcesBuildPhase  = "PBXSourcesBuildPhase"
	sourceTreeGroup       = "<group>"
	sourceTreeAbsolute    = "<absolute>"
	sourceTreeSourceRoot  = "SOURCE_ROOT"
	maxGroupNestingLevels = 64
)

func parsePBXProj(data []byte) (*pbxproj, error) {
	var p pbxproj
	if _, err := plist.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if len(p.Objects) == 0 {
		return nil, errors.New("no objects")
	}
	p.parents = make(map[string]string)
	for id, obj := range p.Objects {
		for _, child := range obj.Children {
			p.parents[child] = id
		}
	}
	return &p, nil
}

// modules builds one module per native target. sourceRoot is the directory
// holding the .xcodeproj.
func (p *pbxproj) modules(sourceRoot string) []Module {
	var modules []Module
	for _, obj := range p.Objects {
		if obj.ISA != isaNativeTarget {
			continue
		}
		modules = append(modules, Module{Name: obj.Name, Files: p.targetFiles(obj, sourceRoot)})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules
}

// targetFiles resolves the files of the target's first Sources build phase.
func (p *pbxproj) targetFiles(target pbxObject, sourceRoot string) []File {
	var files []File
	for _, phaseID := range target.BuildPhases {
		phase, ok := p.Objects[phaseID]
		if !ok || phase.ISA != isaSourcesBuildPhase {
			continue
		}
		for _, buildFileID := range phase.Files {
			buildFile, ok := p.Objects[buildFileID]
			if !ok || buildFile.FileRef == "" {
				continue
			}
			if path, ok := p.fullPath(buildFile.FileRef, sourceRoot, 0); ok {
				files = append(files, File{Path: path})
			}
		}
		break
	}
	return files
}

// fullPath resolves the on-disk path of a file reference or group.
func (p *pbxproj) fullPath(id, sourceRoot string, depth int) (string, bool) {
	obj, ok := p.Objects[id]
	if !ok || depth > maxGroupNestingLevels {
		return "", false
	}
	switch obj.SourceTree {
	case sourceTreeAbsolute:
		return filepath.Clean(obj.Path), obj.Path != ""
	case sourceTreeSourceRoot:
		return filepath.Join(sourceRoot, obj.Path), true
	case sourceTreeGroup, "":
		base := sourceRoot
		if parent, ok := p.parents[id]; ok {
			if base, ok = p.fullPath(parent, sourceRoot, depth+1); !ok {
				return "", false
			}
		}
		return filepath.Join(base, obj.Path), true
	}
	return "", false
}
