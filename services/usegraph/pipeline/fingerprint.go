// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/AleutianAI/usegraph/services/usegraph/scan"
)

// Fingerprint identifies the current contents of src.
//
// Description:
//
//	Hashes the source root with every file's path, size and modification
//	time (or inline content hash). Any edit, addition or removal changes
//	the fingerprint. Unreadable files are hashed by path alone.
func Fingerprint(ctx context.Context, src scan.Source) (string, error) {
	modules, err := src.Modules(ctx)
	if err != nil {
		return "", err
	}
	type stamp struct {
		module, path, detail string
	}
	var stamps []stamp
	for _, m := range modules {
		for _, f := range m.Files {
			detail := "missing"
			if f.Content != nil {
				sum := sha256.Sum256(f.Content)
				detail = hex.EncodeToString(sum[:])
			} else if info, err := os.Stat(f.Path); err == nil {
				detail = fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
			}
			stamps = append(stamps, stamp{m.Name, f.Path, detail})
		}
	}
	sort.Slice(stamps, func(i, j int) bool {
		if stamps[i].module != stamps[j].module {
			return stamps[i].module < stamps[j].module
		}
		return stamps[i].path < stamps[j].path
	})

	h := sha256.New()
	fmt.Fprintf(h, "%s\n", src.Root())
	for _, s := range stamps {
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", s.module, s.path, s.detail)
	}
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}
