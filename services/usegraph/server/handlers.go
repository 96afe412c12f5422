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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/export"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
	"github.com/AleutianAI/usegraph/services/usegraph/pipeline"
	"github.com/AleutianAI/usegraph/services/usegraph/scan"
)

// HandleHealth handles GET /health.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"graphs":      s.cache.Len(),
		"subscribers": s.events.count(),
		"snapshots":   s.snapshots != nil,
	})
}

// HandleScan handles POST /v1/usegraph/scan.
//
// Description:
//
//	Builds a graph from a path on the server or from inline modules, caches
//	it under a new graph ID and publishes a scan event. Request options are
//	layered over the server's base configuration.
//
// Response:
//
//	200 OK: ScanResponse
//	400 Bad Request: Invalid body, path or options
//	429 Too Many Requests: Rate limited
//	500 Internal Server Error: Scan failed
//	503 Service Unavailable: Snapshot requested without a snapshot store
//
// Thread Safety: This method is safe for concurrent use.
func (s *Server) HandleScan(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With("request_id", requestID, "handler", "HandleScan")

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if (req.Path == "") == (len(req.Modules) == 0) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "exactly one of path and modules is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if req.Snapshot && s.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	builder, err := pipeline.NewBuilder(s.requestConfig(req),
		pipeline.WithLogger(logger),
		pipeline.WithSnapshots(s.snapshots),
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_CONFIG",
		})
		return
	}

	var src scan.Source
	if req.Path != "" {
		src, err = scan.DetectSource(req.Path)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_PATH",
			})
			return
		}
	} else {
		src = inlineSource(req.Modules)
	}

	ctx := c.Request.Context()
	res, err := builder.BuildSource(ctx, src)
	if err != nil {
		logger.Error("scan failed", slog.String("root", src.Root()), slog.Any("error", err))
		s.events.publish(Event{Type: EventScanFailed, Root: src.Root(), At: strfmt.DateTime(time.Now())})
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "scan failed: " + err.Error(),
			Code:  "SCAN_FAILED",
		})
		return
	}

	id := uuid.NewString()
	s.cache.Add(id, &cachedGraph{ID: id, Result: res})
	resp := ScanResponse{
		GraphID: strfmt.UUID(id),
		Root:    res.Root,
		Stats:   res.Stats,
		BuiltAt: strfmt.DateTime(res.BuiltAt),
	}

	if req.Snapshot {
		meta, err := s.snapshots.Save(ctx, res.Graph, res.Root, req.Label)
		if err != nil {
			logger.Error("snapshot save failed", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "snapshot save failed: " + err.Error(),
				Code:  "SNAPSHOT_SAVE_FAILED",
			})
			return
		}
		resp.SnapshotID = meta.SnapshotID
	}

	s.events.publish(Event{
		Type:     EventScanCompleted,
		GraphID:  resp.GraphID,
		Root:     res.Root,
		Entities: res.Stats.Entities,
		Edges:    res.Stats.Edges,
		At:       strfmt.DateTime(time.Now()),
	})
	logger.Info("scan completed",
		slog.String("graph_id", id),
		slog.Int("entities", res.Stats.Entities))
	c.JSON(http.StatusOK, resp)
}

// requestConfig layers request options over the base configuration.
func (s *Server) requestConfig(req ScanRequest) config.Config {
	cfg := s.base
	cfg.ProjectPath, cfg.FolderPath = "", ""
	cfg.ExcludedNames = append(append([]string(nil), s.base.ExcludedNames...), req.ExcludedNames...)
	cfg.ExcludedModules = append(append([]string(nil), s.base.ExcludedModules...), req.ExcludedModules...)
	cfg.ShowLeafReferences = req.ShowLeafReferences
	if req.UniversePath != "" {
		cfg.UniversePath = req.UniversePath
	}
	return cfg
}

func inlineSource(modules []InlineModule) *scan.StaticSource {
	entries := make([]scan.Module, 0, len(modules))
	for _, m := range modules {
		files := make([]scan.File, 0, len(m.Files))
		for _, f := range m.Files {
			files = append(files, scan.File{Path: f.Path, Content: []byte(f.Content)})
		}
		entries = append(entries, scan.Module{Name: m.Name, Files: files})
	}
	return &scan.StaticSource{Name: "inline", Entries: entries}
}

// lookup returns the cached graph for the :id parameter, writing a 404 when
// it is missing.
func (s *Server) lookup(c *gin.Context) (*cachedGraph, bool) {
	id := c.Param("id")
	cached, ok := s.cache.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "graph not found",
			Code:  "GRAPH_NOT_FOUND",
		})
		return nil, false
	}
	return cached, true
}

// HandleGetGraph handles GET /v1/usegraph/graphs/:id.
func (s *Server) HandleGetGraph(c *gin.Context) {
	cached, ok := s.lookup(c)
	if !ok {
		return
	}
	res := cached.Result
	c.JSON(http.StatusOK, GraphResponse{
		GraphID: strfmt.UUID(cached.ID),
		Graph:   res.Graph.ToSerializable(res.Root, res.BuiltAt.UnixMilli()),
	})
}

// HandleExport handles GET /v1/usegraph/graphs/:id/export.
//
// Query Parameters:
//
//	format: gv (default), csv or json
//	table: nodes (default) or edges, for csv only
func (s *Server) HandleExport(c *gin.Context) {
	cached, ok := s.lookup(c)
	if !ok {
		return
	}
	format, err := config.ParseFormat(c.DefaultQuery("format", string(config.FormatGV)))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_FORMAT"})
		return
	}
	artifacts, err := export.Render(cached.Result.Graph, format, cached.Result.Root)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "EXPORT_FAILED"})
		return
	}

	artifact := artifacts[0]
	if format == config.FormatCSV {
		switch c.DefaultQuery("table", "nodes") {
		case "nodes":
		case "edges":
			artifact = artifacts[1]
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "table must be nodes or edges",
				Code:  "INVALID_PARAMETER",
			})
			return
		}
	}
	c.Header("Content-Disposition", `attachment; filename="`+artifact.Name+`"`)
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

// snapshotsAvailable writes a 503 when no snapshot store is configured.
func (s *Server) snapshotsAvailable(c *gin.Context) bool {
	if s.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return false
	}
	return true
}

// HandleListSnapshots handles GET /v1/usegraph/snapshots.
//
// Query Parameters:
//
//	root: Only list snapshots of this scan root (optional)
//	limit: Maximum results, default 100 (optional)
func (s *Server) HandleListSnapshots(c *gin.Context) {
	if !s.snapshotsAvailable(c) {
		return
	}
	limit := defaultSnapLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	snapshots, err := s.snapshots.List(c.Request.Context(), c.Query("root"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list snapshots: " + err.Error(),
			Code:  "SNAPSHOT_LIST_FAILED",
		})
		return
	}
	if snapshots == nil {
		snapshots = []*graph.SnapshotMetadata{}
	}
	c.JSON(http.StatusOK, ListSnapshotsResponse{Snapshots: snapshots})
}

// loadSnapshot loads a snapshot graph for a diff, writing the error
// response and returning false on failure.
func (s *Server) loadSnapshot(c *gin.Context, role, id string) (graph.Graph, bool) {
	g, _, err := s.snapshots.Load(c.Request.Context(), id)
	if err == nil {
		return g, true
	}
	if errors.Is(err, graph.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: role + " snapshot not found: " + err.Error(),
			Code:  "SNAPSHOT_NOT_FOUND",
		})
		return nil, false
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "failed to load " + role + " snapshot: " + err.Error(),
		Code:  "SNAPSHOT_LOAD_FAILED",
	})
	return nil, false
}

// HandleDiffSnapshots handles GET /v1/usegraph/snapshots/diff.
//
// Query Parameters:
//
//	base, target: Snapshot IDs (required)
//	format: json (default) or unified
func (s *Server) HandleDiffSnapshots(c *gin.Context) {
	if !s.snapshotsAvailable(c) {
		return
	}
	baseID, targetID := c.Query("base"), c.Query("target")
	if baseID == "" || targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "both 'base' and 'target' parameters are required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	base, ok := s.loadSnapshot(c, "base", baseID)
	if !ok {
		return
	}
	target, ok := s.loadSnapshot(c, "target", targetID)
	if !ok {
		return
	}

	if c.Query("format") == "unified" {
		out, err := export.UnifiedEdgeDiff(baseID, targetID, base, target)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "DIFF_FAILED"})
			return
		}
		c.Data(http.StatusOK, "text/x-diff", out)
		return
	}
	c.JSON(http.StatusOK, SnapshotDiffResponse{
		Base:   baseID,
		Target: targetID,
		Diff:   graph.DiffGraphs(base, target),
	})
}

// HandleDeleteSnapshot handles DELETE /v1/usegraph/snapshots/:id.
func (s *Server) HandleDeleteSnapshot(c *gin.Context) {
	if !s.snapshotsAvailable(c) {
		return
	}
	id := c.Param("id")
	if err := s.snapshots.Delete(c.Request.Context(), id); err != nil {
		status, code := http.StatusInternalServerError, "SNAPSHOT_DELETE_FAILED"
		if errors.Is(err, graph.ErrSnapshotNotFound) {
			status, code = http.StatusNotFound, "SNAPSHOT_NOT_FOUND"
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
