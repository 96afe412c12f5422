// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"path/filepath"
	"strings"
)

// Parser turns source text into a declaration tree.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Parser interface {
	// Parse builds the declaration tree for content. filePath is used for
	// error reporting and is recorded on the result.
	Parse(ctx context.Context, content []byte, filePath string) (*File, error)

	// Language returns the canonical language name.
	Language() string

	// Extensions returns the file extensions (with leading dot) the parser handles.
	Extensions() []string
}

// Supports reports whether p handles the extension of path. The comparison
// is case-insensitive.
func Supports(p Parser, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.Extensions() {
		if ext == e {
			return true
		}
	}
	return false
}
