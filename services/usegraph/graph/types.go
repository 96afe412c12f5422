// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the entity "uses" graph produced by the scanners and
// the passes that normalize it.
//
// An entity is a Swift type declaration (struct, class, enum or extension)
// keyed by name. Nested declarations use dot-joined qualified names
// ("Outer.Inner"); extensions use synthetic names ("NameExt0", "NameExt1").
//
// Every pass in this package returns a new value and never mutates its
// inputs, so a Graph handed to a consumer can be treated as read-only.
package graph

import (
	"sort"
	"strconv"
)

// ExtensionSuffix is inserted between a base name and the extension index
// when naming extension entities ("A" -> "AExt0").
const ExtensionSuffix = "Ext"

// ExtensionName returns the synthetic name of the index-th extension of base.
func ExtensionName(base string, index int) string {
	return base + ExtensionSuffix + strconv.Itoa(index)
}

// QualifiedName joins a container name and a nested declaration name.
func QualifiedName(container, name string) string {
	return container + "." + name
}

// NameSet is an unordered, deduplicated set of entity names.
//
// The zero value is not usable for Add; use NewNameSet or make.
type NameSet map[string]struct{}

// NewNameSet creates a set holding the given names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name into the set.
func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

// Contains reports whether name is in the set. Safe on a nil set.
func (s NameSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Clone returns an independent copy of the set. A nil set clones to an empty set.
func (s NameSet) Clone() NameSet {
	out := make(NameSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Union returns a new set containing the members of s and other.
func (s NameSet) Union(other NameSet) NameSet {
	out := make(NameSet, len(s)+len(other))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold exactly the same names.
func (s NameSet) Equal(other NameSet) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Sorted returns the members in ascending order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LocalGraph is the entity -> referenced names mapping extracted from one
// file before module/file tagging.
//
// A name is a key only if the walker recorded at least one reference for
// it, so an empty declaration produces no key.
type LocalGraph map[string]NameSet

// AddEdge records that from references to.
func (g LocalGraph) AddEdge(from, to string) {
	set, ok := g[from]
	if !ok {
		set = make(NameSet)
		g[from] = set
	}
	set.Add(to)
}

// MergeFrom unions every entry of other into g.
func (g LocalGraph) MergeFrom(other LocalGraph) {
	for name, refs := range other {
		set, ok := g[name]
		if !ok {
			g[name] = refs.Clone()
			continue
		}
		for r := range refs {
			set.Add(r)
		}
	}
}

// Equal reports whether both local graphs hold the same keys and edge sets.
func (g LocalGraph) Equal(other LocalGraph) bool {
	if len(g) != len(other) {
		return false
	}
	for name, refs := range g {
		o, ok := other[name]
		if !ok || !refs.Equal(o) {
			return false
		}
	}
	return true
}

// Tag converts a local graph into a Graph whose nodes carry module and file
// provenance.
func (g LocalGraph) Tag(moduleName, fileName string) Graph {
	out := make(Graph, len(g))
	for name, refs := range g {
		out[name] = Node{
			ModuleName:  moduleName,
			FileName:    fileName,
			ConnectedTo: refs.Clone(),
		}
	}
	return out
}

// Node is one entity of a tagged graph.
type Node struct {
	// ModuleName is the module the entity was first seen in.
	ModuleName string `json:"module_name"`

	// FileName is the file the entity was first seen in.
	FileName string `json:"file_name"`

	// ConnectedTo holds the names the entity references.
	ConnectedTo NameSet `json:"-"`
}

// Equal reports whether both nodes carry the same tags and references.
func (n Node) Equal(other Node) bool {
	return n.ModuleName == other.ModuleName &&
		n.FileName == other.FileName &&
		n.ConnectedTo.Equal(other.ConnectedTo)
}

// withRefs returns a copy of n with a different reference set.
func (n Node) withRefs(refs NameSet) Node {
	return Node{ModuleName: n.ModuleName, FileName: n.FileName, ConnectedTo: refs}
}

// Graph maps entity names to nodes. It is the module- and project-wide
// result of a scan.
type Graph map[string]Node

// Names returns the entity names in ascending order.
func (g Graph) Names() []string {
	out := make([]string, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of the graph.
func (g Graph) Clone() Graph {
	out := make(Graph, len(g))
	for name, node := range g {
		out[name] = node.withRefs(node.ConnectedTo.Clone())
	}
	return out
}

// Equal reports whether both graphs hold the same entities with the same
// tags and references.
func (g Graph) Equal(other Graph) bool {
	if len(g) != len(other) {
		return false
	}
	for name, node := range g {
		o, ok := other[name]
		if !ok || !node.Equal(o) {
			return false
		}
	}
	return true
}

// EdgeCount returns the total number of references across all entities.
func (g Graph) EdgeCount() int {
	total := 0
	for _, node := range g {
		total += len(node.ConnectedTo)
	}
	return total
}

// AllNames returns every name that appears in the graph, as a key or as a
// reference, in ascending order.
func (g Graph) AllNames() []string {
	all := make(NameSet, len(g))
	for name, node := range g {
		all.Add(name)
		for r := range node.ConnectedTo {
			all.Add(r)
		}
	}
	return all.Sorted()
}
