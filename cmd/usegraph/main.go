// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command usegraph builds the "uses" graph of Swift types in a package or
// folder and exports it as Graphviz, CSV or JSON.
//
// Usage:
//
//	usegraph build --project-path ./MyPackage --format gv --output out/
//	usegraph build --folder-path ./Sources --format csv --watch
//	usegraph analyze --project-path ./MyPackage --folders Sources/App/Feature
//	usegraph serve --addr :8090
//	usegraph snapshot list
//	usegraph init
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
