// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export renders a graph.Graph into Graphviz DOT, CSV, JSON and
// HTML reports and writes the artifacts to a local directory or an object
// store.
package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// Artifact file names.
const (
	GraphDOTName  = "Graph.gv"
	GraphJSONName = "Graph.json"
	NodesCSVName  = "Nodes.csv"
	EdgesCSVName  = "Edges.csv"
	ReportName    = "module-info.html"
)

// Artifact is one rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render renders g in the given format.
//
// Outputs:
//
//	[]Artifact - One artifact for gv and json, two (nodes and edges) for csv.
//	error - Wraps config.ErrInvalidFormat for unknown formats.
func Render(g graph.Graph, format config.Format, root string) ([]Artifact, error) {
	var buf bytes.Buffer
	switch format {
	case config.FormatGV:
		if err := WriteDOT(&buf, g); err != nil {
			return nil, err
		}
		return []Artifact{{Name: GraphDOTName, ContentType: "text/vnd.graphviz", Data: buf.Bytes()}}, nil
	case config.FormatJSON:
		if err := WriteJSON(&buf, g, root); err != nil {
			return nil, err
		}
		return []Artifact{{Name: GraphJSONName, ContentType: "application/json", Data: buf.Bytes()}}, nil
	case config.FormatCSV:
		var edges bytes.Buffer
		if err := WriteCSV(&buf, &edges, g); err != nil {
			return nil, err
		}
		return []Artifact{
			{Name: NodesCSVName, ContentType: "text/csv", Data: buf.Bytes()},
			{Name: EdgesCSVName, ContentType: "text/csv", Data: edges.Bytes()},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrInvalidFormat, format)
}

// vertex is a drawable name: an entity key or a referenced name.
type vertex struct {
	ID     string
	Name   string
	Module string
	File   string
	Known  bool
}

// edge connects two vertex IDs.
type edge struct {
	From string
	To   string
}

// layout lists every name of g as a vertex, sorted by name, and every
// reference as an edge, sorted by (from, to).
//
// Entities are identified as "module.name"; referenced names that are not
// entities keep their bare name. The two can coincide: entity "B" of
// module "A" and an unresolved reference to a nested key "A.B" share the
// ID "A.B", and the later vertex wins when IDs are used as map keys.
func layout(g graph.Graph) ([]vertex, []edge) {
	names := g.AllNames()
	ids := make(map[string]string, len(names))
	vertices := make([]vertex, 0, len(names))
	for _, name := range names {
		v := vertex{ID: name, Name: name}
		if node, ok := g[name]; ok {
			v.ID = node.ModuleName + "." + name
			v.Module = node.ModuleName
			v.File = node.FileName
			v.Known = true
		}
		ids[name] = v.ID
		vertices = append(vertices, v)
	}

	edges := make([]edge, 0, g.EdgeCount())
	for name, node := range g {
		for to := range node.ConnectedTo {
			edges = append(edges, edge{From: ids[name], To: ids[to]})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return vertices, edges
}
