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
	"encoding/csv"
	"fmt"
	"io"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// Column headers of the CSV exports, in graph-tool import layout.
var (
	NodeCSVHeader = []string{"Id", "Module", "Label", "Path"}
	EdgeCSVHeader = []string{"Source", "Target", "Type"}
)

// WriteCSV writes the vertex table of g to nodes and the edge table to edges.
func WriteCSV(nodes, edges io.Writer, g graph.Graph) error {
	vertices, es := layout(g)

	nw := csv.NewWriter(nodes)
	if err := nw.Write(NodeCSVHeader); err != nil {
		return fmt.Errorf("writing node header: %w", err)
	}
	for _, v := range vertices {
		if err := nw.Write([]string{v.ID, v.Module, v.Name, v.File}); err != nil {
			return fmt.Errorf("writing node %s: %w", v.ID, err)
		}
	}
	nw.Flush()
	if err := nw.Error(); err != nil {
		return fmt.Errorf("flushing nodes: %w", err)
	}

	ew := csv.NewWriter(edges)
	if err := ew.Write(EdgeCSVHeader); err != nil {
		return fmt.Errorf("writing edge header: %w", err)
	}
	for _, e := range es {
		if err := ew.Write([]string{e.From, e.To, "directed"}); err != nil {
			return fmt.Errorf("writing edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return fmt.Errorf("flushing edges: %w", err)
	}
	return nil
}
