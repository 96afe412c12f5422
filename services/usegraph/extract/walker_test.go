// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/usegraph/services/usegraph/ast"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

func file(nodes ...*ast.Node) *ast.File {
	return &ast.File{Path: "Test.swift", Nodes: nodes}
}

func local(entries map[string][]string) graph.LocalGraph {
	out := make(graph.LocalGraph, len(entries))
	for k, v := range entries {
		out[k] = graph.NewNameSet(v...)
	}
	return out
}

func assertLocal(t *testing.T, want map[string][]string, got graph.LocalGraph) {
	t.Helper()
	gotSorted := make(map[string][]string, len(got))
	for k, v := range got {
		gotSorted[k] = v.Sorted()
	}
	wantSorted := make(map[string][]string, len(want))
	for k, v := range want {
		wantSorted[k] = graph.NewNameSet(v...).Sorted()
	}
	assert.Equal(t, wantSorted, gotSorted)
}

func TestWalker_StructReference(t *testing.T) {
	// class A { let a: SomeClass = 5 }
	f := file(ast.NewDecl(ast.DeclKindClass, "A", false,
		ast.NewGroup(ast.NewIdent("a"), ast.NewIdent("SomeClass")),
	))

	assertLocal(t, map[string][]string{"A": {"SomeClass"}}, NewWalker().Walk(f))
}

func TestWalker_NestedMemberIsQualified(t *testing.T) {
	// class A { struct B { let someClass: SomeClass } }
	f := file(ast.NewDecl(ast.DeclKindClass, "A", false,
		ast.NewDecl(ast.DeclKindStruct, "B", true,
			ast.NewGroup(ast.NewIdent("someClass"), ast.NewIdent("SomeClass")),
		),
	))

	assertLocal(t, map[string][]string{
		"A":   {"A.B"},
		"A.B": {"SomeClass"},
	}, NewWalker().Walk(f))
}

func TestWalker_ReferenceAttributedToInnermost(t *testing.T) {
	f := file(ast.NewDecl(ast.DeclKindStruct, "Outer", false,
		ast.NewIdent("Shared"),
		ast.NewDecl(ast.DeclKindEnum, "Inner", true,
			ast.NewIdent("Deep"),
			ast.NewDecl(ast.DeclKindStruct, "Leaf", true, ast.NewIdent("Deepest")),
		),
	))

	assertLocal(t, map[string][]string{
		"Outer":            {"Shared", "Outer.Inner"},
		"Outer.Inner":      {"Deep", "Outer.Inner.Leaf"},
		"Outer.Inner.Leaf": {"Deepest"},
	}, NewWalker().Walk(f))
}

func TestWalker_LocalDeclarationKeepsBareName(t *testing.T) {
	f := file(ast.NewDecl(ast.DeclKindStruct, "A", false,
		ast.NewGroup(
			ast.NewIdent("make"),
			ast.NewGroup(ast.NewDecl(ast.DeclKindStruct, "Local", false, ast.NewIdent("Value"))),
			ast.NewIdent("Result"),
		),
	))

	assertLocal(t, map[string][]string{
		"A":     {"Result"},
		"Local": {"Value"},
	}, NewWalker().Walk(f))
}

func TestWalker_FileScopeTokensIgnored(t *testing.T) {
	f := file(
		ast.NewGroup(ast.NewIdent("let"), ast.NewIdent("Global")),
		ast.NewGroup(ast.NewIdent("func"), ast.NewGroup(
			ast.NewDecl(ast.DeclKindStruct, "InFunc", false, ast.NewIdent("Dep")),
		)),
	)

	assertLocal(t, map[string][]string{"InFunc": {"Dep"}}, NewWalker().Walk(f))
}

func TestWalker_EmptyDeclarationHasNoKey(t *testing.T) {
	f := file(ast.NewDecl(ast.DeclKindStruct, "C", false))
	assert.Empty(t, NewWalker().Walk(f))
	assert.Empty(t, NewWalker().Walk(nil))
}

func TestWalker_ExcludedAndLowercaseTokens(t *testing.T) {
	f := file(ast.NewDecl(ast.DeclKindStruct, "V", false,
		ast.NewIdent("String"),
		ast.NewIdent("View"),
		ast.NewIdent("value"),
		ast.NewIdent("`Escaped`"),
		ast.NewKeyword("Self"),
		ast.NewIdent("Ünicode"),
		ast.NewIdent("Model"),
	))

	assertLocal(t, map[string][]string{"V": {"Ünicode", "Model"}}, NewWalker().Walk(f))
}

func TestWalker_CustomExcludedTypes(t *testing.T) {
	f := file(ast.NewDecl(ast.DeclKindStruct, "V", false,
		ast.NewIdent("String"), ast.NewIdent("Model"),
	))

	w := NewWalker(WithExcludedTypes([]string{"Model"}))
	assertLocal(t, map[string][]string{"V": {"String"}}, w.Walk(f))

	w = NewWalker(WithAdditionalExcludedTypes([]string{"Model"}))
	assert.Empty(t, w.Walk(f))
}

func TestWalker_ExtensionNaming(t *testing.T) {
	// struct C {}; extension A { var c: C { C() } }
	f := file(
		ast.NewDecl(ast.DeclKindStruct, "C", false),
		ast.NewDecl(ast.DeclKindExtension, "A", false,
			ast.NewGroup(ast.NewIdent("c"), ast.NewIdent("C"), ast.NewIdent("C")),
		),
	)

	assertLocal(t, map[string][]string{"AExt0": {"C"}}, NewWalker().Walk(f))
}

func TestWalker_MultipleExtensionsSameFile(t *testing.T) {
	f := file(
		ast.NewDecl(ast.DeclKindStruct, "X", false, ast.NewIdent("Base")),
		ast.NewDecl(ast.DeclKindExtension, "X", false, ast.NewIdent("First")),
		ast.NewDecl(ast.DeclKindExtension, "X", false, ast.NewIdent("Second")),
		ast.NewDecl(ast.DeclKindExtension, "Y", false, ast.NewIdent("Other")),
	)

	assertLocal(t, map[string][]string{
		"X":     {"Base"},
		"XExt0": {"First"},
		"XExt1": {"Second"},
		"YExt0": {"Other"},
	}, NewWalker().Walk(f))
}

func TestWalker_EmptyExtensionDoesNotReserveIndex(t *testing.T) {
	f := file(
		ast.NewDecl(ast.DeclKindExtension, "X", false),
		ast.NewDecl(ast.DeclKindExtension, "X", false, ast.NewIdent("Second")),
	)

	assertLocal(t, map[string][]string{"XExt0": {"Second"}}, NewWalker().Walk(f))
}

func TestWalker_ExtensionMembersAreQualifiedUnderSyntheticName(t *testing.T) {
	f := file(ast.NewDecl(ast.DeclKindExtension, "A", false,
		ast.NewDecl(ast.DeclKindEnum, "Kind", true, ast.NewIdent("Payload")),
	))

	assertLocal(t, map[string][]string{
		"AExt0":      {"AExt0.Kind"},
		"AExt0.Kind": {"Payload"},
	}, NewWalker().Walk(f))
}

func TestWalker_UnnamedMemberBlockAtFileScope(t *testing.T) {
	// extension Outer.Inner { struct Nested { ... } } has no named container.
	f := file(ast.NewGroup(
		ast.NewIdent("Outer"),
		ast.NewDecl(ast.DeclKindStruct, "Nested", true, ast.NewIdent("Dep")),
	))

	assert.Empty(t, NewWalker().Walk(f))
}

func TestWalker_ReservedNamesSuppressed(t *testing.T) {
	for _, reserved := range DefaultReservedNames {
		t.Run(reserved, func(t *testing.T) {
			f := file(
				ast.NewDecl(ast.DeclKindEnum, reserved, false,
					ast.NewIdent("Hidden"),
					ast.NewDecl(ast.DeclKindStruct, "Inner", true, ast.NewIdent("AlsoHidden")),
				),
				ast.NewDecl(ast.DeclKindStruct, "Screen", false,
					ast.NewDecl(ast.DeclKindEnum, reserved, true, ast.NewIdent("Hidden")),
					ast.NewIdent("Model"),
				),
			)

			assertLocal(t, map[string][]string{
				"Screen": {"Screen." + reserved, "Model"},
			}, NewWalker().Walk(f))
		})
	}
}

func TestWalker_CustomReservedNames(t *testing.T) {
	f := file(ast.NewDecl(ast.DeclKindStruct, "Secret", false, ast.NewIdent("Hidden")))
	assert.Empty(t, NewWalker(WithReservedNames([]string{"Secret"})).Walk(f))
}

func TestNextExtensionName(t *testing.T) {
	g := local(map[string][]string{"AExt0": {"B"}, "AExt2": {"C"}})
	assert.Equal(t, "AExt1", nextExtensionName(g, "A"))
	assert.Equal(t, "BExt0", nextExtensionName(g, "B"))
}

func TestWalker_SwiftSource(t *testing.T) {
	parser := ast.NewSwiftParser()
	ctx := context.Background()

	t.Run("scenario files", func(t *testing.T) {
		a, err := parser.Parse(ctx, []byte("struct A {\n    let a: B\n}\n"), "A.swift")
		require.NoError(t, err)
		ab, err := parser.Parse(ctx, []byte("struct C {}\n\nextension A {\n    var c: C { C() }\n}\n"), "A+B.swift")
		require.NoError(t, err)

		w := NewWalker()
		assertLocal(t, map[string][]string{"A": {"B"}}, w.Walk(a))
		assertLocal(t, map[string][]string{"AExt0": {"C"}}, w.Walk(ab))
	})

	t.Run("nested", func(t *testing.T) {
		f, err := parser.Parse(ctx, []byte("class A {\n    struct B {\n        let someClass: SomeClass\n    }\n}\n"), "A.swift")
		require.NoError(t, err)
		assertLocal(t, map[string][]string{
			"A":   {"A.B"},
			"A.B": {"SomeClass"},
		}, NewWalker().Walk(f))
	})

	t.Run("stored property", func(t *testing.T) {
		f, err := parser.Parse(ctx, []byte("class A {\n    let a: SomeClass = 5\n}\n"), "A.swift")
		require.NoError(t, err)
		assertLocal(t, map[string][]string{"A": {"SomeClass"}}, NewWalker().Walk(f))
	})

	t.Run("reserved", func(t *testing.T) {
		src := "enum Constants {\n    static let model = Model()\n}\n"
		f, err := parser.Parse(ctx, []byte(src), "Constants.swift")
		require.NoError(t, err)
		assert.Empty(t, NewWalker().Walk(f))
	})
}
