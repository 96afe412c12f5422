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
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

func node(module, file string, refs ...string) graph.Node {
	return graph.Node{ModuleName: module, FileName: file, ConnectedTo: graph.NewNameSet(refs...)}
}

func sampleGraph() graph.Graph {
	return graph.Graph{
		"A":   node("Core", "/p/Sources/Core/A.swift", "A.B", "Money"),
		"A.B": node("Core", "/p/Sources/Core/A.swift", "C"),
		"C":   node("Feature", "/p/Sources/Feature/C.swift"),
	}
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, sampleGraph()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph"))
	assert.Contains(t, out, "rankdir")
	assert.Equal(t, 2, strings.Count(out, "subgraph"))
	assert.Contains(t, out, `label="Core"`)
	assert.Contains(t, out, `label="Feature"`)
	assert.Contains(t, out, `label="A.B"`)
	assert.Contains(t, out, `tooltip="/p/Sources/Core/A.swift"`)
	assert.Contains(t, out, `tooltip="/p/Sources/Feature/C.swift"`)
	assert.Contains(t, out, `label="Money"`)
	assert.Equal(t, 1, strings.Count(out, `style="dashed"`))
	assert.Equal(t, 3, strings.Count(out, "->"))

	t.Run("stable output", func(t *testing.T) {
		var again bytes.Buffer
		require.NoError(t, WriteDOT(&again, sampleGraph()))
		assert.Equal(t, out, again.String())
	})

	t.Run("empty graph", func(t *testing.T) {
		var empty bytes.Buffer
		require.NoError(t, WriteDOT(&empty, graph.Graph{}))
		assert.True(t, strings.HasPrefix(empty.String(), "digraph"))
		assert.NotContains(t, empty.String(), "->")
		assert.NotContains(t, empty.String(), "subgraph")
	})
}

func TestLayout_EntityAndLeafIDsCanCoincide(t *testing.T) {
	vertices, edges := layout(graph.Graph{"B": node("A", "b.swift", "A.B")})

	require.Len(t, vertices, 2)
	assert.False(t, vertices[0].Known)
	assert.True(t, vertices[1].Known)
	assert.Equal(t, "A.B", vertices[0].ID)
	assert.Equal(t, "A.B", vertices[1].ID)
	assert.Equal(t, []edge{{From: "A.B", To: "A.B"}}, edges)
}

func TestWriteCSV(t *testing.T) {
	var nodes, edges bytes.Buffer
	require.NoError(t, WriteCSV(&nodes, &edges, sampleGraph()))

	nodeRows, err := csv.NewReader(&nodes).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		NodeCSVHeader,
		{"Core.A", "Core", "A", "/p/Sources/Core/A.swift"},
		{"Core.A.B", "Core", "A.B", "/p/Sources/Core/A.swift"},
		{"Feature.C", "Feature", "C", "/p/Sources/Feature/C.swift"},
		{"Money", "", "Money", ""},
	}, nodeRows)

	edgeRows, err := csv.NewReader(&edges).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		EdgeCSVHeader,
		{"Core.A", "Core.A.B", "directed"},
		{"Core.A", "Money", "directed"},
		{"Core.A.B", "Feature.C", "directed"},
	}, edgeRows)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleGraph(), "/p"))

	var sg graph.SerializableGraph
	require.NoError(t, json.Unmarshal(buf.Bytes(), &sg))
	assert.Equal(t, "/p", sg.Root)
	back, err := graph.FromSerializable(&sg)
	require.NoError(t, err)
	assert.True(t, back.Equal(sampleGraph()))
}

func TestRender(t *testing.T) {
	tests := []struct {
		format config.Format
		names  []string
	}{
		{config.FormatGV, []string{GraphDOTName}},
		{config.FormatJSON, []string{GraphJSONName}},
		{config.FormatCSV, []string{NodesCSVName, EdgesCSVName}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			artifacts, err := Render(sampleGraph(), tt.format, "/p")
			require.NoError(t, err)
			var names []string
			for _, a := range artifacts {
				names = append(names, a.Name)
				assert.NotEmpty(t, a.Data)
				assert.NotEmpty(t, a.ContentType)
			}
			assert.Equal(t, tt.names, names)
		})
	}

	_, err := Render(sampleGraph(), config.Format("svg"), "/p")
	assert.ErrorIs(t, err, config.ErrInvalidFormat)
}

func TestAnalyzeFolder(t *testing.T) {
	g := graph.Graph{
		"Screen":  node("App", "/p/App/Feature/Screen.swift", "Helper", "Service", "Remote", "Ghost"),
		"Helper":  node("App", "/p/App/Feature/Helper.swift", "Service"),
		"Service": node("App", "/p/App/Shared/Service.swift", "Screen"),
		"Remote":  node("Network", "/p/Network/Remote.swift"),
	}

	report := AnalyzeFolder(g, "/p/App/Feature/")
	assert.Equal(t, "/p/App/Feature", report.Folder)
	assert.Equal(t, []Link{
		{From: "Helper", FromFile: "/p/App/Feature/Helper.swift", To: "Service", ToFile: "/p/App/Shared/Service.swift"},
		{From: "Screen", FromFile: "/p/App/Feature/Screen.swift", To: "Service", ToFile: "/p/App/Shared/Service.swift"},
	}, report.Links)
	assert.Equal(t, 2, report.Count())

	assert.Len(t, report.Graph, 3)
	assert.Equal(t, []string{"Service"}, report.Graph["Screen"].ConnectedTo.Sorted())
	assert.Empty(t, report.Graph["Service"].ConnectedTo)
	assert.NotContains(t, report.Graph, "Remote")

	t.Run("no entities in folder", func(t *testing.T) {
		empty := AnalyzeFolder(g, "/elsewhere")
		assert.Zero(t, empty.Count())
		assert.Empty(t, empty.Graph)
	})
}

func TestWriteReport(t *testing.T) {
	report := &FolderReport{
		Folder: "/p/<Feature>",
		Graph:  graph.Graph{"A": node("App", "/p/a.swift", "B"), "B": node("App", "/q/b.swift")},
		Links:  []Link{{From: "A", FromFile: "/p/a.swift", To: "B", ToFile: "/q/b.swift"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "&lt;Feature&gt;")
	assert.Contains(t, out, "1 outgoing dependencies")
	assert.Contains(t, out, `href="file:///p/a.swift"`)
	assert.Contains(t, out, "digraph")
}

func TestUnifiedEdgeDiff(t *testing.T) {
	base := graph.Graph{
		"A": node("M", "a.swift", "B", "C"),
		"B": node("M", "b.swift"),
	}
	target := graph.Graph{
		"A": node("M", "a.swift", "B", "D"),
		"B": node("M", "b.swift", "A"),
	}

	out, err := UnifiedEdgeDiff("base", "target", base, target)
	require.NoError(t, err)

	fd, err := diff.ParseFileDiff(out)
	require.NoError(t, err)
	assert.Equal(t, "base", fd.OrigName)
	assert.Equal(t, "target", fd.NewName)
	require.Len(t, fd.Hunks, 1)
	assert.EqualValues(t, 2, fd.Hunks[0].OrigLines)
	assert.EqualValues(t, 3, fd.Hunks[0].NewLines)

	text := string(out)
	assert.Contains(t, text, "\n A -> B\n")
	assert.Contains(t, text, "\n-A -> C\n")
	assert.Contains(t, text, "\n+A -> D\n")
	assert.Contains(t, text, "\n+B -> A\n")

	t.Run("identical graphs", func(t *testing.T) {
		out, err := UnifiedEdgeDiff("a", "b", base, base.Clone())
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in      string
		want    Destination
		wantErr bool
	}{
		{in: "out", want: Destination{Prefix: "out"}},
		{in: "s3://bucket", want: Destination{Scheme: "s3", Bucket: "bucket"}},
		{in: "s3://bucket/graphs/app/", want: Destination{Scheme: "s3", Bucket: "bucket", Prefix: "graphs/app"}},
		{in: "gs://b/p", want: Destination{Scheme: "gs", Bucket: "b", Prefix: "p"}},
		{in: "s3:///prefix", wantErr: true},
		{in: "ftp://host/x", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDestination(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDestination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	sink, err := OpenSink(context.Background(), dir, config.S3Settings{}, nil)
	require.NoError(t, err)

	artifacts, err := Render(sampleGraph(), config.FormatCSV, "/p")
	require.NoError(t, err)
	locations, err := WriteAll(context.Background(), sink, artifacts)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, NodesCSVName), filepath.Join(dir, EdgesCSVName)}, locations)

	data, err := os.ReadFile(filepath.Join(dir, EdgesCSVName))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Source,Target,Type\n"))
}

func TestS3SinkRequiresSettings(t *testing.T) {
	_, err := OpenSink(context.Background(), "s3://bucket/x", config.S3Settings{}, nil)
	assert.Error(t, err)

	sink, err := NewS3Sink(Destination{Scheme: "s3", Bucket: "bucket", Prefix: "graphs"},
		config.S3Settings{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Region: "us-east-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/graphs/Graph.gv", sink.Location(GraphDOTName))
}

func TestWriteAllCanceled(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WriteAll(ctx, sink, []Artifact{{Name: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}
