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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/usegraph/services/usegraph/ast"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

func newTestScanner(opts ...Option) *ProjectScanner {
	files := NewFileScanner(ast.NewSwiftParser(), nil, opts...)
	return NewDefaultProjectScanner(files, opts...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func scenarioModule(name string) Module {
	return Module{Name: name, Files: []File{
		{Path: "A.swift", Content: []byte("struct A {\n    let a: B\n}\n")},
		{Path: "A+B.swift", Content: []byte("struct C {}\n\nextension A {\n    var c: C { C() }\n}\n")},
	}}
}

func TestModuleScanner_ExtensionScenario(t *testing.T) {
	s := newTestScanner()

	got, err := s.modules.Scan(context.Background(), scenarioModule("App"))
	require.NoError(t, err)

	require.Equal(t, []string{"A", "AExt0"}, got.Names())
	assert.Equal(t, []string{"AExt0", "B"}, got["A"].ConnectedTo.Sorted())
	assert.Equal(t, []string{"C"}, got["AExt0"].ConnectedTo.Sorted())
	assert.Equal(t, "App", got["A"].ModuleName)
	assert.Equal(t, "A.swift", got["A"].FileName)
	assert.Equal(t, "A+B.swift", got["AExt0"].FileName)
}

func TestModuleScanner_OrderIndependent(t *testing.T) {
	m := scenarioModule("App")
	reversed := Module{Name: "App", Files: []File{m.Files[1], m.Files[0]}}

	serial := newTestScanner(WithWorkerCount(1))
	parallel := newTestScanner(WithWorkerCount(8))

	a, err := serial.modules.Scan(context.Background(), m)
	require.NoError(t, err)
	b, err := parallel.modules.Scan(context.Background(), reversed)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestModuleScanner_TwoExtensionsFolded(t *testing.T) {
	m := Module{Name: "", Files: []File{{
		Path:    "X.swift",
		Content: []byte("struct X { let b: Base }\nextension X { var f: First { First() } }\nextension X { var s: Second { Second() } }\n"),
	}}}

	got, err := newTestScanner().modules.Scan(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "XExt0", "XExt1"}, got.Names())
	assert.Subset(t, got["X"].ConnectedTo.Sorted(), []string{"XExt0", "XExt1"})
}

func TestProjectScanner_FaultTolerance(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Valid.swift"), "struct Valid { let dep: Dependency }\n")
	writeFile(t, filepath.Join(dir, "Corrupt.swift"), string([]byte{0xff, 0xfe, 0x00, 0x81}))
	writeFile(t, filepath.Join(dir, "notes.txt"), "struct Ignored { let x: Y }\n")

	got, err := newTestScanner().Scan(context.Background(), NewFolderSource(dir))
	require.NoError(t, err)

	require.Equal(t, []string{"Valid"}, got.Names())
	assert.Equal(t, []string{"Dependency"}, got["Valid"].ConnectedTo.Sorted())
	assert.Equal(t, "", got["Valid"].ModuleName)
}

func TestProjectScanner_MergesModulesAndDropsEmpty(t *testing.T) {
	src := &StaticSource{Name: "static", Entries: []Module{
		scenarioModule("App"),
		{Name: "Empty", Files: []File{{Path: "E.swift", Content: []byte("// nothing\n")}}},
		{Name: "Core", Files: []File{{Path: "D.swift", Content: []byte("class D { let a: A }\n")}}},
	}}

	s := newTestScanner()
	modules, err := s.ScanModules(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "App", modules[0].Name)
	assert.Equal(t, "Core", modules[1].Name)

	project, err := s.Scan(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "AExt0", "D"}, project.Names())
	assert.Equal(t, "Core", project["D"].ModuleName)
}

func TestProjectScanner_ModuleFilter(t *testing.T) {
	filter, err := NewModuleFilter([]string{"Feature*", "Legacy"})
	require.NoError(t, err)

	src := &StaticSource{Entries: []Module{
		{Name: "FeatureLogin", Files: []File{{Path: "L.swift", Content: []byte("struct L { let s: Session }\n")}}},
		{Name: "Legacy", Files: []File{{Path: "O.swift", Content: []byte("struct O { let s: Old }\n")}}},
		{Name: "Core", Files: []File{{Path: "C.swift", Content: []byte("struct C { let s: Store }\n")}}},
	}}

	got, err := newTestScanner(WithModuleFilter(filter)).Scan(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, got.Names())
}

func TestProjectScanner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner().Scan(ctx, &StaticSource{Entries: []Module{scenarioModule("App")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjectScanner_SourceError(t *testing.T) {
	_, err := newTestScanner().Scan(context.Background(), NewFolderSource(filepath.Join(t.TempDir(), "missing")))
	assert.ErrorIs(t, err, ErrRootNotExist)
}

func TestFileScanner_Statuses(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileScanner(ast.NewSwiftParser(ast.WithSwiftMaxFileSize(64)), nil)
	ctx := context.Background()

	res := fs.Scan(ctx, File{Path: filepath.Join(dir, "README.md")})
	assert.Equal(t, FileStatusUnsupported, res.Status)
	assert.NotNil(t, res.Graph)

	res = fs.Scan(ctx, File{Path: filepath.Join(dir, "Missing.swift")})
	assert.Equal(t, FileStatusReadError, res.Status)

	big := filepath.Join(dir, "Big.swift")
	writeFile(t, big, "struct Big { let a: Dependency; let b: Dependency; let c: Dependency }\n")
	res = fs.Scan(ctx, File{Path: big})
	assert.Equal(t, FileStatusParseError, res.Status)
	assert.Empty(t, res.Graph)

	res = fs.Scan(ctx, File{Path: "inline", Content: []byte("struct I { let d: D }")})
	assert.Equal(t, FileStatusOK, res.Status)
	assert.Equal(t, graph.NewNameSet("D"), res.Graph["I"])
}

func TestFileScanner_KeywordTypesNotReferenced(t *testing.T) {
	fs := NewFileScanner(ast.NewSwiftParser(), nil)
	src := "struct A {\n    let x: Any\n    let z: Foo.Type\n}\n"

	res := fs.Scan(context.Background(), File{Path: "A.swift", Content: []byte(src)})
	require.Equal(t, FileStatusOK, res.Status)
	assert.True(t, graph.LocalGraph{"A": graph.NewNameSet("Foo")}.Equal(res.Graph), "got %v", res.Graph)
}

func TestPackageSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Package.swift"), "// swift-tools-version:5.9\n")
	writeFile(t, filepath.Join(dir, ".gitignore"), "Sources/Core/Generated/\n")
	writeFile(t, filepath.Join(dir, "Sources", "Core", "Store.swift"), "struct Store { let c: Cache }\n")
	writeFile(t, filepath.Join(dir, "Sources", "Core", "Generated", "Gen.swift"), "struct Gen { let x: X }\n")
	writeFile(t, filepath.Join(dir, "Sources", "App", "App.swift"), "struct App { let s: Store }\n")
	writeFile(t, filepath.Join(dir, "Sources", "App", ".hidden", "H.swift"), "struct H { let x: X }\n")

	src, err := DetectSource(dir)
	require.NoError(t, err)
	require.IsType(t, &PackageSource{}, src)

	modules, err := src.Modules(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "App", modules[0].Name)
	assert.Len(t, modules[0].Files, 1)
	assert.Equal(t, "Core", modules[1].Name)
	assert.Len(t, modules[1].Files, 1)

	got, err := newTestScanner().Scan(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"App", "Store"}, got.Names())
	assert.Equal(t, "Core", got["Store"].ModuleName)
}

func TestPackageSource_ManifestPath(t *testing.T) {
	dir := t.TempDir()
	src := NewPackageSource(filepath.Join(dir, PackageManifest))
	assert.Equal(t, dir, src.Root())

	_, err := src.Modules(context.Background())
	assert.ErrorIs(t, err, ErrNotPackage)
}

func TestFolderSource_SkipsBundlesAndIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), "*.generated.swift\n")
	writeFile(t, filepath.Join(dir, "A.swift"), "struct A {}\n")
	writeFile(t, filepath.Join(dir, "B.generated.swift"), "struct B {}\n")
	writeFile(t, filepath.Join(dir, "App.xcodeproj", "project.pbxproj"), "{}\n")
	writeFile(t, filepath.Join(dir, "Sub", "C.swift"), "struct C {}\n")

	src, err := DetectSource(dir)
	require.NoError(t, err)
	require.IsType(t, &FolderSource{}, src)

	modules, err := src.Modules(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 1)

	var paths []string
	for _, f := range modules[0].Files {
		rel, err := filepath.Rel(dir, f.Path)
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"A.swift", "Sub/C.swift"}, paths)
}

const testPBXProj = `// !$*UTF8*$!
{
	archiveVersion = 1;
	classes = {
	};
	objectVersion = 56;
	objects = {

/* Begin PBXBuildFile section */
		BF01 /* A.swift in Sources */ = {isa = PBXBuildFile; fileRef = FR01 /* A.swift */; };
		BF02 /* B.swift in Sources */ = {isa = PBXBuildFile; fileRef = FR02 /* B.swift */; };
		BF03 /* K.swift in Sources */ = {isa = PBXBuildFile; fileRef = FR03 /* K.swift */; };
		BF04 /* Gen.swift in Sources */ = {isa = PBXBuildFile; fileRef = FR04 /* Gen.swift */; };
		BF05 /* Assets in Resources */ = {isa = PBXBuildFile; fileRef = FR05 /* Assets.xcassets */; };
		BF06 /* Lib in Sources */ = {isa = PBXBuildFile; fileRef = FR06 /* Lib.swift */; };
/* End PBXBuildFile section */

/* Begin PBXFileReference section */
		FR01 /* A.swift */ = {isa = PBXFileReference; lastKnownFileType = sourcecode.swift; path = A.swift; sourceTree = "<group>"; };
		FR02 /* B.swift */ = {isa = PBXFileReference; lastKnownFileType = sourcecode.swift; path = B.swift; sourceTree = "<group>"; };
		FR03 /* K.swift */ = {isa = PBXFileReference; lastKnownFileType = sourcecode.swift; path = K.swift; sourceTree = "<group>"; };
		FR04 /* Gen.swift */ = {isa = PBXFileReference; lastKnownFileType = sourcecode.swift; path = Generated/Gen.swift; sourceTree = SOURCE_ROOT; };
		FR05 /* Assets.xcassets */ = {isa = PBXFileReference; lastKnownFileType = folder.assetcatalog; path = Assets.xcassets; sourceTree = "<group>"; };
		FR06 /* Lib.swift */ = {isa = PBXFileReference; path = Lib.swift; sourceTree = BUILT_PRODUCTS_DIR; };
/* End PBXFileReference section */

/* Begin PBXGroup section */
		GR00 = {
			isa = PBXGroup;
			children = (
				GR01 /* App */,
				GR02 /* Kit */,
			);
			sourceTree = "<group>";
		};
		GR01 /* App */ = {
			isa = PBXGroup;
			children = (
				FR01 /* A.swift */,
				FR02 /* B.swift */,
				FR05 /* Assets.xcassets */,
			);
			path = App;
			sourceTree = "<group>";
		};
		GR02 /* Kit */ = {
			isa = PBXGroup;
			children = (
				FR03 /* K.swift */,
			);
			name = Kit;
			path = Shared/Kit;
			sourceTree = "<group>";
		};
/* End PBXGroup section */

/* Begin PBXNativeTarget section */
		NT01 /* App */ = {
			isa = PBXNativeTarget;
			buildPhases = (
				RP01 /* Resources */,
				SP01 /* Sources */,
			);
			name = App;
			productName = App;
		};
		NT02 /* Kit */ = {
			isa = PBXNativeTarget;
			buildPhases = (
				SP02 /* Sources */,
			);
			name = Kit;
		};
/* End PBXNativeTarget section */

		PR01 /* Project object */ = {
			isa = PBXProject;
			mainGroup = GR00;
			targets = (
				NT01 /* App */,
				NT02 /* Kit */,
			);
		};
		RP01 /* Resources */ = {isa = PBXResourcesBuildPhase; files = (BF05 /* Assets in Resources */, ); };
		SP01 /* Sources */ = {isa = PBXSourcesBuildPhase; files = (BF01 /* A.swift in Sources */, BF02 /* B.swift in Sources */, BF04 /* Gen.swift in Sources */, BF06 /* Lib in Sources */, ); };
		SP02 /* Sources */ = {isa = PBXSourcesBuildPhase; files = (BF03 /* K.swift in Sources */, ); };
	};
	rootObject = PR01 /* Project object */;
}
`

func TestXcodeprojSource(t *testing.T) {
	dir := t.TempDir()
	proj := filepath.Join(dir, "App.xcodeproj")
	writeFile(t, filepath.Join(proj, "project.pbxproj"), testPBXProj)
	writeFile(t, filepath.Join(dir, "App", "A.swift"), "struct A {\n    let b: B\n}\n")
	writeFile(t, filepath.Join(dir, "App", "B.swift"), "struct B {\n    let k: K\n}\n")
	writeFile(t, filepath.Join(dir, "Generated", "Gen.swift"), "struct Gen {\n    let a: A\n}\n")
	writeFile(t, filepath.Join(dir, "Shared", "Kit", "K.swift"), "struct K {\n    let g: Gen\n}\n")
	writeFile(t, filepath.Join(dir, "Unlisted.swift"), "struct Unlisted {\n    let a: A\n}\n")

	src, err := DetectSource(proj)
	require.NoError(t, err)
	require.IsType(t, &XcodeprojSource{}, src)
	assert.Equal(t, proj, src.Root())

	modules, err := src.Modules(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 2)

	paths := func(m Module) []string {
		var out []string
		for _, f := range m.Files {
			out = append(out, f.Path)
		}
		return out
	}
	assert.Equal(t, "App", modules[0].Name)
	assert.Equal(t, []string{
		filepath.Join(dir, "App", "A.swift"),
		filepath.Join(dir, "App", "B.swift"),
		filepath.Join(dir, "Generated", "Gen.swift"),
	}, paths(modules[0]))
	assert.Equal(t, "Kit", modules[1].Name)
	assert.Equal(t, []string{filepath.Join(dir, "Shared", "Kit", "K.swift")}, paths(modules[1]))

	got, err := newTestScanner().Scan(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "Gen", "K"}, got.Names())
	assert.Equal(t, "App", got["Gen"].ModuleName)
	assert.Equal(t, "Kit", got["K"].ModuleName)
}

func TestXcodeprojSource_Errors(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "Missing.xcodeproj")
	_, err := DetectSource(missing)
	assert.ErrorIs(t, err, ErrRootNotExist)

	empty := filepath.Join(dir, "Empty.xcodeproj")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	_, err = NewXcodeprojSource(empty).Modules(context.Background())
	assert.ErrorIs(t, err, ErrNotXcodeproj)

	broken := filepath.Join(dir, "Broken.xcodeproj")
	writeFile(t, filepath.Join(broken, "project.pbxproj"), "{ objects = { }; }\n")
	_, err = NewXcodeprojSource(broken).Modules(context.Background())
	assert.ErrorIs(t, err, ErrNotXcodeproj)
}

func TestIsXcodeproj(t *testing.T) {
	assert.True(t, IsXcodeproj("/src/App.xcodeproj"))
	assert.True(t, IsXcodeproj("/src/App.xcodeproj/"))
	assert.False(t, IsXcodeproj("/src/App.xcworkspace"))
	assert.False(t, IsXcodeproj("/src/App"))
}

func TestModuleFilter(t *testing.T) {
	_, err := NewModuleFilter([]string{"[unclosed"})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	var nilFilter *ModuleFilter
	assert.False(t, nilFilter.Excluded("Any"))

	f, err := NewModuleFilter([]string{"", "Core"})
	require.NoError(t, err)
	assert.True(t, f.Excluded("Core"))
	assert.False(t, f.Excluded("CoreUI"))
}
