// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/go-openapi/strfmt"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
	"github.com/AleutianAI/usegraph/services/usegraph/pipeline"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// InlineFile is a source file sent in the request body.
type InlineFile struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// InlineModule is a module sent in the request body.
type InlineModule struct {
	Name  string       `json:"name"`
	Files []InlineFile `json:"files" binding:"required,dive"`
}

// ScanRequest is the body of POST /v1/usegraph/scan.
//
// Exactly one of Path and Modules must be set. Path is a package or folder
// on the server's filesystem.
type ScanRequest struct {
	Path               string         `json:"path"`
	Modules            []InlineModule `json:"modules" binding:"omitempty,dive"`
	ExcludedNames      []string       `json:"excluded_names" binding:"omitempty,dive,required"`
	ExcludedModules    []string       `json:"excluded_modules" binding:"omitempty,dive,required"`
	ShowLeafReferences bool           `json:"show_leaf_references"`
	UniversePath       string         `json:"universe_path"`

	// Snapshot persists the result when the server has a snapshot store.
	Snapshot bool   `json:"snapshot"`
	Label    string `json:"label" binding:"max=128"`
}

// ScanResponse is returned by POST /v1/usegraph/scan.
type ScanResponse struct {
	GraphID    strfmt.UUID     `json:"graph_id"`
	Root       string          `json:"root"`
	Stats      pipeline.Stats  `json:"stats"`
	BuiltAt    strfmt.DateTime `json:"built_at"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
}

// GraphResponse is returned by GET /v1/usegraph/graphs/:id.
type GraphResponse struct {
	GraphID strfmt.UUID              `json:"graph_id"`
	Graph   *graph.SerializableGraph `json:"graph"`
}

// ListSnapshotsResponse is returned by GET /v1/usegraph/snapshots.
type ListSnapshotsResponse struct {
	Snapshots []*graph.SnapshotMetadata `json:"snapshots"`
}

// SnapshotDiffResponse is returned by GET /v1/usegraph/snapshots/diff.
type SnapshotDiffResponse struct {
	Base   string      `json:"base"`
	Target string      `json:"target"`
	Diff   *graph.Diff `json:"diff"`
}

// Event is pushed to /v1/usegraph/events subscribers.
type Event struct {
	Type     string          `json:"type"`
	GraphID  strfmt.UUID     `json:"graph_id,omitempty"`
	Root     string          `json:"root,omitempty"`
	Entities int             `json:"entities,omitempty"`
	Edges    int             `json:"edges,omitempty"`
	At       strfmt.DateTime `json:"at"`
}

// Event types.
const (
	EventSubscribed    = "subscribed"
	EventScanCompleted = "scan.completed"
	EventScanFailed    = "scan.failed"
)
