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
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

// WriteJSON writes g in the snapshot serialization format, indented.
func WriteJSON(w io.Writer, g graph.Graph, root string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g.ToSerializable(root, time.Now().UnixMilli())); err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	return nil
}
