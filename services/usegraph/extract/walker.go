// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract walks a declaration tree and records which type names
// each declared entity mentions.
package extract

import (
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/usegraph/services/usegraph/ast"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithExcludedTypes replaces the set of platform type names that are never
// recorded as references.
func WithExcludedTypes(names []string) WalkerOption {
	return func(w *Walker) {
		w.excluded = graph.NewNameSet(names...)
	}
}

// WithAdditionalExcludedTypes adds names to the excluded set.
func WithAdditionalExcludedTypes(names []string) WalkerOption {
	return func(w *Walker) {
		w.excluded = w.excluded.Union(graph.NewNameSet(names...))
	}
}

// WithReservedNames replaces the set of declaration names whose bodies are
// never walked.
func WithReservedNames(names []string) WalkerOption {
	return func(w *Walker) {
		w.reserved = graph.NewNameSet(names...)
	}
}

// Walker extracts a local graph from one file's declaration tree.
//
// Description:
//
//	Every struct, class, enum and extension becomes an entity. Identifier
//	tokens starting with an upper-case letter inside an entity's body are
//	recorded as references of the innermost enclosing entity, unless they
//	name a common platform type. A nested member type is recorded under its
//	qualified name ("Outer.Inner") and the container gains an edge to it.
//	Types declared inside function bodies keep their bare name and add no
//	edge. Every file-scope extension is given a synthetic name (see
//	graph.ExtensionName).
//
// Thread Safety:
//
//	A Walker holds only read-only configuration and is safe for concurrent
//	use.
type Walker struct {
	excluded graph.NameSet
	reserved graph.NameSet
}

// NewWalker creates a Walker using DefaultExcludedTypes and DefaultReservedNames.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{
		excluded: graph.NewNameSet(DefaultExcludedTypes...),
		reserved: graph.NewNameSet(DefaultReservedNames...),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk extracts the local graph of f.
//
// Inputs:
//
//	f - The parsed file. A nil file yields an empty graph.
//
// Outputs:
//
//	graph.LocalGraph - Entity name to referenced names. Never nil.
//
// Limitations:
//
//	Purely lexical. A reference to "Foo.Bar" records "Foo" and "Bar"
//	separately, and a lower-case type name is never recorded.
func (w *Walker) Walk(f *ast.File) graph.LocalGraph {
	out := make(graph.LocalGraph)
	if f == nil {
		return out
	}
	w.walkFileScope(f.Nodes, out)
	return out
}

// walkFileScope handles nodes outside any entity. Tokens are ignored and
// declarations start new entities. Results accumulate into acc so the
// extension namer sees every key recorded so far in the file.
func (w *Walker) walkFileScope(nodes []*ast.Node, acc graph.LocalGraph) {
	for _, n := range nodes {
		switch {
		case n.Decl != nil && !n.Decl.Member:
			name := n.Decl.Name
			if n.Decl.Kind == ast.DeclKindExtension {
				name = nextExtensionName(acc, name)
			}
			acc.MergeFrom(w.diveInto(name, n.Decl))
		case n.Decl != nil:
			// A member block reached without a named container, e.g. the
			// body of "extension Outer.Inner". Its members are not entities.
			w.walkFileScope(n.Decl.Body, acc)
		case n.Token != nil:
		default:
			w.walkFileScope(n.Children, acc)
		}
	}
}

// diveInto walks a declaration's body with name as the container. Bodies
// of reserved declarations are not walked.
func (w *Walker) diveInto(name string, d *ast.Decl) graph.LocalGraph {
	out := make(graph.LocalGraph)
	if w.reserved.Contains(d.Name) {
		return out
	}
	w.walkEntity(name, d.Body, out)
	return out
}

// walkEntity records references of container found in nodes into out.
func (w *Walker) walkEntity(container string, nodes []*ast.Node, out graph.LocalGraph) {
	for _, n := range nodes {
		switch {
		case n.Decl != nil && n.Decl.Kind == ast.DeclKindExtension:
			// Extensions only start entities at file scope.
			w.walkEntity(container, n.Decl.Body, out)
		case n.Decl != nil && n.Decl.Member:
			qualified := graph.QualifiedName(container, n.Decl.Name)
			out.AddEdge(container, qualified)
			out.MergeFrom(w.diveInto(qualified, n.Decl))
		case n.Decl != nil:
			out.MergeFrom(w.diveInto(n.Decl.Name, n.Decl))
		case n.Token != nil:
			if w.isTypeReference(n.Token) {
				out.AddEdge(container, n.Token.Text)
			}
		default:
			w.walkEntity(container, n.Children, out)
		}
	}
}

// isTypeReference reports whether tok looks like a reference to a project type.
func (w *Walker) isTypeReference(tok *ast.Token) bool {
	if tok.Kind != ast.TokenKindIdentifier {
		return false
	}
	first, _ := utf8.DecodeRuneInString(tok.Text)
	if first == utf8.RuneError || !unicode.IsUpper(first) {
		return false
	}
	return !w.excluded.Contains(tok.Text)
}

// nextExtensionName returns the synthetic name for a new extension of base:
// base + "Ext" + the smallest index not yet a key of local.
func nextExtensionName(local graph.LocalGraph, base string) string {
	for i := 0; ; i++ {
		name := graph.ExtensionName(base, i)
		if _, taken := local[name]; !taken {
			return name
		}
	}
}
