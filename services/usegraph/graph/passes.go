// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// Merge returns the union-merge of the given graphs.
//
// Description:
//
//	Nodes sharing a key are combined: ConnectedTo becomes the set union of
//	all inputs. When the tags of colliding nodes disagree (the same type
//	extended in several files) the lexicographically smallest
//	(ModuleName, FileName) pair wins, so the result does not depend on
//	argument order.
//
// Inputs:
//
//	graphs - Graphs to merge. Nil graphs are skipped. Inputs are not modified.
//
// Outputs:
//
//	Graph - A new graph. Never nil.
//
// Properties:
//
//	Merge is commutative, associative and idempotent:
//	Merge(a, a) == a and Merge(Merge(a, b), c) == Merge(a, Merge(b, c)).
//
// Thread Safety: Safe for concurrent use on inputs that are not being mutated.
func Merge(graphs ...Graph) Graph {
	out := make(Graph)
	for _, g := range graphs {
		out.MergeFrom(g)
	}
	return out
}

// MergeFrom unions other into g in place.
//
// Description:
//
//	Used by the scan coordinators, which own the accumulating graph and
//	fold per-task results into it sequentially. other is not modified and
//	g never aliases other's reference sets.
//
// Thread Safety: Not safe for concurrent use on the same receiver.
func (g Graph) MergeFrom(other Graph) {
	for name, node := range other {
		existing, ok := g[name]
		if !ok {
			g[name] = node.withRefs(node.ConnectedTo.Clone())
			continue
		}
		refs := existing.ConnectedTo
		for r := range node.ConnectedTo {
			refs.Add(r)
		}
		if tagLess(node, existing) {
			g[name] = node.withRefs(refs)
		} else {
			g[name] = existing.withRefs(refs)
		}
	}
}

// tagLess orders nodes by (ModuleName, FileName).
func tagLess(a, b Node) bool {
	if a.ModuleName != b.ModuleName {
		return a.ModuleName < b.ModuleName
	}
	return a.FileName < b.FileName
}

// FoldExtensions connects every base entity to its synthetic extension
// entities.
//
// Description:
//
//	For every key X, tries XExt0, XExt1, ... in ascending order and adds
//	each present key to X's references. The search stops at the first missing
//	index. Synthetic keys are tried like any other key, so "AExt0Ext0"
//	would be folded into "AExt0" if it ever existed.
//
// Inputs:
//
//	g - A merged module graph. Not modified.
//
// Outputs:
//
//	Graph - A new graph with extension edges added.
func FoldExtensions(g Graph) Graph {
	out := make(Graph, len(g))
	for name, node := range g {
		refs := node.ConnectedTo.Clone()
		for i := 0; ; i++ {
			ext := ExtensionName(name, i)
			if _, ok := g[ext]; !ok {
				break
			}
			refs.Add(ext)
		}
		out[name] = node.withRefs(refs)
	}
	return out
}

// MergeClosure imports entities referenced by primary from a broader
// universe graph until no referenced entity is missing.
//
// Description:
//
//	Runs full passes over the working copy. In each pass every reference
//	that is not a key of the working copy but is a key of universe is
//	copied in together with its own references. Passes repeat until one
//	adds nothing. The working copy grows strictly on every non-final pass
//	and universe is finite, so the loop terminates.
//
// Inputs:
//
//	primary - The graph to supplement. Not modified.
//	universe - The graph to pull missing entities from. Not modified. May be nil.
//
// Outputs:
//
//	Graph - The supplemented graph.
func MergeClosure(primary, universe Graph) Graph {
	working := primary.Clone()
	if len(universe) == 0 {
		return working
	}
	for {
		added := make(Graph)
		for _, node := range working {
			for ref := range node.ConnectedTo {
				if _, ok := working[ref]; ok {
					continue
				}
				if _, ok := added[ref]; ok {
					continue
				}
				if u, ok := universe[ref]; ok {
					added[ref] = u.withRefs(u.ConnectedTo.Clone())
				}
			}
		}
		if len(added) == 0 {
			return working
		}
		for name, node := range added {
			working[name] = node
		}
	}
}

// Qualify rewrites bare references to nested entities into their qualified
// names.
//
// Description:
//
//	For every entity K and every reference "to", if K.to is a key of g the
//	bare "to" is replaced with "K.to". This prefers the entity nested inside
//	the referencing type over a same-named sibling or global type. A single
//	pass is made; references whose qualified key only appears after a later
//	merge stay bare.
//
// Inputs:
//
//	g - The graph to qualify. Not modified.
//
// Outputs:
//
//	Graph - A new graph with qualified references.
func Qualify(g Graph) Graph {
	out := make(Graph, len(g))
	for name, node := range g {
		refs := make(NameSet, len(node.ConnectedTo))
		for to := range node.ConnectedTo {
			qualified := QualifiedName(name, to)
			if _, ok := g[qualified]; ok {
				refs.Add(qualified)
				continue
			}
			refs.Add(to)
		}
		out[name] = node.withRefs(refs)
	}
	return out
}

// Exclude removes the given entity names as keys.
//
// Description:
//
//	References elsewhere that point at an excluded name are left in place
//	and become dangling. Consumers that draw edges skip targets that are
//	neither keys nor leaf references they want to show.
//
// Inputs:
//
//	g - The graph to filter. Not modified.
//	names - Entity names to drop. Unknown names are ignored.
//
// Outputs:
//
//	Graph - A new graph without the excluded keys.
func Exclude(g Graph, names []string) Graph {
	drop := NewNameSet(names...)
	out := make(Graph, len(g))
	for name, node := range g {
		if drop.Contains(name) {
			continue
		}
		out[name] = node.withRefs(node.ConnectedTo.Clone())
	}
	return out
}

// PruneToKnown drops every reference that is not itself a key of g.
//
// Description:
//
//	Hides "leaf" references to undiscovered or external types so that only
//	edges between discovered entities remain.
//
// Inputs:
//
//	g - The graph to prune. Not modified.
//
// Outputs:
//
//	Graph - A new graph whose references are all keys.
func PruneToKnown(g Graph) Graph {
	out := make(Graph, len(g))
	for name, node := range g {
		refs := make(NameSet, len(node.ConnectedTo))
		for to := range node.ConnectedTo {
			if _, ok := g[to]; ok {
				refs.Add(to)
			}
		}
		out[name] = node.withRefs(refs)
	}
	return out
}
