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
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/mod/semver"
)

// GraphSchemaVersion is the version of the serialization schema.
// Bump the major version when the format changes in a breaking way; minor
// versions stay readable.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON-serializable representation of a Graph.
//
// Description:
//
//	Entities are sorted by name and references are sorted within each
//	entity, so the same graph always encodes to the same bytes. That makes
//	the content hash and snapshot diffs stable.
//
// Thread Safety: SerializableGraph is a value type with no internal state.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format version.
	SchemaVersion string `json:"schema_version"`

	// Root is the scanned project or folder path.
	Root string `json:"root"`

	// BuiltAtMilli is the Unix timestamp in milliseconds when the scan finished.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// GraphHash is the deterministic hash of the graph structure.
	GraphHash string `json:"graph_hash"`

	// Entities contains all nodes, sorted by name.
	Entities []SerializableEntity `json:"entities"`
}

// SerializableEntity is the JSON-serializable representation of a Node.
type SerializableEntity struct {
	Name        string   `json:"name"`
	ModuleName  string   `json:"module_name"`
	FileName    string   `json:"file_name"`
	ConnectedTo []string `json:"connected_to"`
}

// ToSerializable converts a Graph to its JSON-serializable representation.
//
// Inputs:
//
//	root - The scanned path, recorded for provenance.
//	builtAtMilli - Scan completion time in Unix milliseconds.
//
// Outputs:
//
//	*SerializableGraph - Never nil.
//
// Complexity:
//
//	O(V log V + E log E) for the sorting.
func (g Graph) ToSerializable(root string, builtAtMilli int64) *SerializableGraph {
	entities := make([]SerializableEntity, 0, len(g))
	for _, name := range g.Names() {
		node := g[name]
		entities = append(entities, SerializableEntity{
			Name:        name,
			ModuleName:  node.ModuleName,
			FileName:    node.FileName,
			ConnectedTo: node.ConnectedTo.Sorted(),
		})
	}
	return &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Root:          root,
		BuiltAtMilli:  builtAtMilli,
		GraphHash:     g.Hash(),
		Entities:      entities,
	}
}

// FromSerializable reconstructs a Graph from its serializable representation.
//
// Outputs:
//
//	Graph - The reconstructed graph.
//	error - Non-nil if sg is nil, the schema version is unsupported or an
//	entity name is empty or duplicated.
func FromSerializable(sg *SerializableGraph) (Graph, error) {
	if sg == nil {
		return nil, fmt.Errorf("serializable graph must not be nil")
	}
	if !CompatibleSchema(sg.SchemaVersion) {
		return nil, fmt.Errorf("unsupported schema version %q (expected %q)", sg.SchemaVersion, GraphSchemaVersion)
	}

	g := make(Graph, len(sg.Entities))
	for i, e := range sg.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity at index %d has empty name", i)
		}
		if _, dup := g[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q at index %d", e.Name, i)
		}
		g[e.Name] = Node{
			ModuleName:  e.ModuleName,
			FileName:    e.FileName,
			ConnectedTo: NewNameSet(e.ConnectedTo...),
		}
	}
	return g, nil
}

// CompatibleSchema reports whether a serialized graph of the given schema
// version can be read: it must be a valid version with the same major.
func CompatibleSchema(version string) bool {
	v := "v" + version
	return semver.IsValid(v) && semver.Major(v) == semver.Major("v"+GraphSchemaVersion)
}

// Hash returns a deterministic SHA256 hex digest of the graph structure.
//
// Description:
//
//	Covers entity names, tags and sorted references. Two graphs are Equal
//	exactly when their hashes match (barring collisions).
func (g Graph) Hash() string {
	h := sha256.New()
	for _, name := range g.Names() {
		node := g[name]
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00", name, node.ModuleName, node.FileName)
		for _, r := range node.ConnectedTo.Sorted() {
			fmt.Fprintf(h, "%s\x01", r)
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
