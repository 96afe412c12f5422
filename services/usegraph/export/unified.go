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
	"bytes"
	"fmt"
	"sort"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// EdgeLines lists every reference of g as "From -> To", sorted.
func EdgeLines(g graph.Graph) []string {
	lines := make([]string, 0, g.EdgeCount())
	for name, node := range g {
		for to := range node.ConnectedTo {
			lines = append(lines, name+" -> "+to)
		}
	}
	sort.Strings(lines)
	return lines
}

// UnifiedEdgeDiff renders the edge-level change between two graphs as a
// unified diff with a single hunk covering the full edge lists.
//
// Inputs:
//
//	baseName, targetName - Labels for the --- and +++ headers.
//	base, target - The graphs to compare. Not modified.
//
// Outputs:
//
//	[]byte - The diff text. Empty when the edge lists are identical.
//	error - Non-nil if printing fails.
func UnifiedEdgeDiff(baseName, targetName string, base, target graph.Graph) ([]byte, error) {
	a, b := EdgeLines(base), EdgeLines(target)

	var body bytes.Buffer
	changed := false
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i] < b[j]):
			fmt.Fprintf(&body, "-%s\n", a[i])
			changed = true
			i++
		case i == len(a) || b[j] < a[i]:
			fmt.Fprintf(&body, "+%s\n", b[j])
			changed = true
			j++
		default:
			fmt.Fprintf(&body, " %s\n", a[i])
			i++
			j++
		}
	}
	if !changed {
		return nil, nil
	}

	hunk := &diff.Hunk{
		OrigLines: int32(len(a)),
		NewLines:  int32(len(b)),
		Body:      body.Bytes(),
	}
	if len(a) > 0 {
		hunk.OrigStartLine = 1
	}
	if len(b) > 0 {
		hunk.NewStartLine = 1
	}
	fd := &diff.FileDiff{
		OrigName: baseName,
		NewName:  targetName,
		Hunks:    []*diff.Hunk{hunk},
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return nil, fmt.Errorf("printing edge diff: %w", err)
	}
	return out, nil
}
