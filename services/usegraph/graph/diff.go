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

import (
	"sort"
)

// Diff describes how a graph changed between two scans.
type Diff struct {
	// EntitiesAdded are names present in target but not in base.
	EntitiesAdded []string `json:"entities_added"`

	// EntitiesRemoved are names present in base but not in target.
	EntitiesRemoved []string `json:"entities_removed"`

	// EntitiesModified are entities present in both whose tags or references changed.
	EntitiesModified []EntityDiff `json:"entities_modified"`

	// EdgesAdded is the count of references in target but not in base.
	EdgesAdded int `json:"edges_added"`

	// EdgesRemoved is the count of references in base but not in target.
	EdgesRemoved int `json:"edges_removed"`

	// FilesAffected is the number of distinct files with changed entities.
	FilesAffected int `json:"files_affected"`
}

// EntityDiff describes how a single entity changed.
type EntityDiff struct {
	Name string `json:"name"`

	// ChangeType is "moved" when the file or module changed, otherwise "edges_changed".
	ChangeType string `json:"change_type"`

	// RefsAdded and RefsRemoved list the reference changes, sorted.
	RefsAdded   []string `json:"refs_added,omitempty"`
	RefsRemoved []string `json:"refs_removed,omitempty"`
}

// DiffGraphs computes the differences between two graphs.
//
// Description:
//
//	Comparison is by entity name. Output slices are sorted so the result is
//	deterministic.
//
// Complexity:
//
//	O(V + E) plus sorting.
func DiffGraphs(base, target Graph) *Diff {
	diff := &Diff{
		EntitiesAdded:    []string{},
		EntitiesRemoved:  []string{},
		EntitiesModified: []EntityDiff{},
	}
	affectedFiles := make(map[string]bool)

	for name, tNode := range target {
		bNode, ok := base[name]
		if !ok {
			diff.EntitiesAdded = append(diff.EntitiesAdded, name)
			diff.EdgesAdded += len(tNode.ConnectedTo)
			affectedFiles[tNode.FileName] = true
			continue
		}
		added := subtract(tNode.ConnectedTo, bNode.ConnectedTo)
		removed := subtract(bNode.ConnectedTo, tNode.ConnectedTo)
		diff.EdgesAdded += len(added)
		diff.EdgesRemoved += len(removed)

		moved := bNode.ModuleName != tNode.ModuleName || bNode.FileName != tNode.FileName
		if !moved && len(added) == 0 && len(removed) == 0 {
			continue
		}
		changeType := "edges_changed"
		if moved {
			changeType = "moved"
			affectedFiles[bNode.FileName] = true
		}
		affectedFiles[tNode.FileName] = true
		diff.EntitiesModified = append(diff.EntitiesModified, EntityDiff{
			Name:        name,
			ChangeType:  changeType,
			RefsAdded:   added,
			RefsRemoved: removed,
		})
	}

	for name, bNode := range base {
		if _, ok := target[name]; !ok {
			diff.EntitiesRemoved = append(diff.EntitiesRemoved, name)
			diff.EdgesRemoved += len(bNode.ConnectedTo)
			affectedFiles[bNode.FileName] = true
		}
	}

	sort.Strings(diff.EntitiesAdded)
	sort.Strings(diff.EntitiesRemoved)
	sort.Slice(diff.EntitiesModified, func(i, j int) bool {
		return diff.EntitiesModified[i].Name < diff.EntitiesModified[j].Name
	})
	diff.FilesAffected = len(affectedFiles)
	return diff
}

// Empty reports whether the diff records no change.
func (d *Diff) Empty() bool {
	return len(d.EntitiesAdded) == 0 && len(d.EntitiesRemoved) == 0 &&
		len(d.EntitiesModified) == 0 && d.EdgesAdded == 0 && d.EdgesRemoved == 0
}

// subtract returns the sorted members of a that are not in b.
func subtract(a, b NameSet) []string {
	var out []string
	for n := range a {
		if !b.Contains(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
