// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// Link is one outgoing dependency of a folder: an entity inside the folder
// referencing an entity of the same module defined outside it.
type Link struct {
	From     string `json:"from"`
	FromFile string `json:"from_file"`
	To       string `json:"to"`
	ToFile   string `json:"to_file"`
}

// FolderReport summarizes what a folder depends on outside itself.
type FolderReport struct {
	Folder string `json:"folder"`

	// Graph holds the folder's entities restricted to outgoing links, plus
	// the link targets as entities without references.
	Graph graph.Graph `json:"-"`

	// Links are sorted by (From, To).
	Links []Link `json:"links"`
}

// Count returns the number of outgoing links.
func (r *FolderReport) Count() int {
	return len(r.Links)
}

// AnalyzeFolder extracts the links leaving folder.
//
// Description:
//
//	An entity belongs to the folder when its file path contains the folder
//	path. For each such entity only references to entities of the same
//	module whose files lie outside the folder are kept. Those targets are
//	added to the report graph so the result is drawable on its own.
//
// Inputs:
//
//	g - A project graph, typically qualified and pruned. Not modified.
//	folder - Folder path to analyze.
//
// Outputs:
//
//	*FolderReport - Never nil.
func AnalyzeFolder(g graph.Graph, folder string) *FolderReport {
	folder = filepath.Clean(folder)
	inFolder := func(file string) bool {
		return strings.Contains(file, folder)
	}

	report := &FolderReport{Folder: folder, Graph: make(graph.Graph), Links: []Link{}}
	for name, node := range g {
		if !inFolder(node.FileName) {
			continue
		}
		refs := make(graph.NameSet)
		for to := range node.ConnectedTo {
			target, ok := g[to]
			if !ok || target.ModuleName != node.ModuleName || inFolder(target.FileName) {
				continue
			}
			refs.Add(to)
			report.Links = append(report.Links, Link{
				From:     name,
				FromFile: node.FileName,
				To:       to,
				ToFile:   target.FileName,
			})
			if _, seen := report.Graph[to]; !seen {
				report.Graph[to] = graph.Node{
					ModuleName:  target.ModuleName,
					FileName:    target.FileName,
					ConnectedTo: make(graph.NameSet),
				}
			}
		}
		report.Graph[name] = graph.Node{
			ModuleName:  node.ModuleName,
			FileName:    node.FileName,
			ConnectedTo: refs,
		}
	}

	sort.Slice(report.Links, func(i, j int) bool {
		if report.Links[i].From != report.Links[j].From {
			return report.Links[i].From < report.Links[j].From
		}
		return report.Links[i].To < report.Links[j].To
	})
	return report
}
