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
	"io"
	"sort"

	"github.com/emicklei/dot"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// WriteDOT writes g as a directed Graphviz graph.
//
// Description:
//
//	Entities are grouped into one cluster per module (the unnamed module
//	is not clustered). Referenced names that are not entities are drawn
//	with a dashed outline. Output is sorted and therefore stable.
func WriteDOT(w io.Writer, g graph.Graph) error {
	_, err := io.WriteString(w, buildDOT(g).String())
	return err
}

// buildDOT lays g out as a dot graph.
func buildDOT(g graph.Graph) *dot.Graph {
	vertices, edges := layout(g)

	byModule := make(map[string][]vertex)
	var loose []vertex
	for _, v := range vertices {
		if v.Known && v.Module != "" {
			byModule[v.Module] = append(byModule[v.Module], v)
			continue
		}
		loose = append(loose, v)
	}
	modules := make([]string, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	out := dot.NewGraph(dot.Directed)
	out.Attr("rankdir", "LR")

	nodes := make(map[string]dot.Node, len(vertices))
	for _, m := range modules {
		cluster := out.Subgraph(m, dot.ClusterOption{})
		for _, v := range byModule[m] {
			nodes[v.ID] = addVertex(cluster, v)
		}
	}
	for _, v := range loose {
		nodes[v.ID] = addVertex(out, v)
	}
	for _, e := range edges {
		out.Edge(nodes[e.From], nodes[e.To])
	}
	return out
}

func addVertex(g *dot.Graph, v vertex) dot.Node {
	n := g.Node(v.ID).Box().Label(v.Name)
	if !v.Known {
		return n.Attr("style", "dashed")
	}
	return n.Attr("tooltip", v.File)
}
