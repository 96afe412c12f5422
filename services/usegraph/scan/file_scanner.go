// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"log/slog"
	"os"

	"github.com/AleutianAI/usegraph/services/usegraph/ast"
	"github.com/AleutianAI/usegraph/services/usegraph/extract"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// FileStatus is the outcome of scanning one file.
type FileStatus string

const (
	FileStatusOK          FileStatus = "ok"
	FileStatusUnsupported FileStatus = "unsupported"
	FileStatusReadError   FileStatus = "read_error"
	FileStatusParseError  FileStatus = "parse_error"
)

// FileResult is the local graph of one file.
type FileResult struct {
	FileName string
	Graph    graph.LocalGraph
	Status   FileStatus
}

// FileScanner parses one file and extracts its local graph.
//
// Description:
//
//	Fails soft. A file with an unsupported extension, an unreadable file or
//	a file the parser rejects yields an empty graph. The reason is logged at
//	debug level and counted, never returned.
//
// Thread Safety: Safe for concurrent use.
type FileScanner struct {
	parser ast.Parser
	walker *extract.Walker
	logger *slog.Logger
}

// NewFileScanner creates a FileScanner.
//
// Inputs:
//
//	parser - Parser for source files. Must not be nil.
//	walker - Walker for parsed trees. Nil uses extract.NewWalker().
func NewFileScanner(parser ast.Parser, walker *extract.Walker, opts ...Option) *FileScanner {
	if walker == nil {
		walker = extract.NewWalker()
	}
	o := applyOptions(opts)
	return &FileScanner{parser: parser, walker: walker, logger: o.logger}
}

// Scan extracts the local graph of f.
//
// Description:
//
//	Inline files (non-nil Content) are always parsed. Files read from disk
//	must carry an extension the parser supports.
//
// Outputs:
//
//	FileResult - Never has a nil Graph.
func (s *FileScanner) Scan(ctx context.Context, f File) FileResult {
	result := FileResult{FileName: f.Path, Graph: make(graph.LocalGraph), Status: FileStatusOK}
	defer func() {
		filesScannedTotal.WithLabelValues(string(result.Status)).Inc()
	}()

	content := f.Content
	if content == nil {
		if !ast.Supports(s.parser, f.Path) {
			result.Status = FileStatusUnsupported
			return result
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			s.logger.Debug("skipping unreadable file",
				slog.String("file", f.Path),
				slog.String("error", err.Error()))
			result.Status = FileStatusReadError
			return result
		}
		content = data
	}

	tree, err := s.parser.Parse(ctx, content, f.Path)
	if err != nil {
		s.logger.Debug("skipping unparsable file",
			slog.String("file", f.Path),
			slog.String("error", err.Error()))
		result.Status = FileStatusParseError
		return result
	}

	result.Graph = s.walker.Walk(tree)
	return result
}
