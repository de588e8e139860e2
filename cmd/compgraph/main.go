// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command compgraph analyzes React component trees.
//
// Usage:
//
//	compgraph analyze ./web
//	compgraph analyze ./web --json --snapshot --label release-1
//	compgraph watch ./web
//	compgraph serve --addr :8090 --db ~/.compgraph/snapshots
//	compgraph snapshot diff <base> <target>
//
// Every flag can also be set through a COMPGRAPH_* environment variable,
// e.g. COMPGRAPH_DB or COMPGRAPH_LOG_LEVEL.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
