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
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// DepthResult is the outcome of containment depth analysis.
type DepthResult struct {
	// Depth is the longest containment chain in components, capped.
	Depth int

	// Capped is true when the true depth exceeded the cap.
	Capped bool

	// Cycles counts strongly connected components of size > 1 plus
	// self-containing components.
	Cycles int
}

// ContainmentDepth measures the longest parent-to-child chain.
//
// Description:
//
//	Strongly connected components are collapsed with Tarjan's algorithm.
//	Each collapsed component weighs its member count, and the longest
//	weighted path through the resulting DAG is found by memoized search.
//	Mutually containing components therefore terminate and count each
//	member once.
//
// Inputs:
//
//	components - Components with Children resolved. Child IDs that name
//	    no component in the slice are ignored.
//	maxDepth - Cap on the reported depth. Non-positive means DefaultMaxPropDepth.
//
// Outputs:
//
//	DepthResult - Zero for empty input; Depth 1 for a single component.
//
// Thread Safety: This function is safe for concurrent use.
func ContainmentDepth(components []model.Component, maxDepth int) DepthResult {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPropDepth
	}
	if len(components) == 0 {
		return DepthResult{}
	}

	ids := make([]string, 0, len(components))
	for _, c := range components {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)

	nodeID := make(map[string]int64, len(ids))
	g := simple.NewDirectedGraph()
	for i, id := range ids {
		if _, dup := nodeID[id]; dup {
			continue
		}
		nodeID[id] = int64(i)
		g.AddNode(simple.Node(int64(i)))
	}

	// Self edges are not allowed in simple graphs; count them separately.
	selfLoops := 0
	for _, c := range components {
		from := nodeID[c.ID]
		for _, child := range c.Children {
			to, ok := nodeID[child]
			if !ok {
				continue
			}
			if to == from {
				selfLoops++
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}

	sccs := topo.TarjanSCC(g)
	sccOf := make(map[int64]int, len(nodeID))
	weight := make([]int, len(sccs))
	cycles := selfLoops
	for i, scc := range sccs {
		weight[i] = len(scc)
		if len(scc) > 1 {
			cycles++
		}
		for _, n := range scc {
			sccOf[n.ID()] = i
		}
	}

	// Condensation edges between collapsed components.
	next := make([][]int, len(sccs))
	seen := make(map[[2]int]bool)
	edges := g.Edges()
	for edges.Next() {
		e := edges.Edge()
		a, b := sccOf[e.From().ID()], sccOf[e.To().ID()]
		if a == b || seen[[2]int{a, b}] {
			continue
		}
		seen[[2]int{a, b}] = true
		next[a] = append(next[a], b)
	}

	memo := make([]int, len(sccs))
	var longest func(s int) int
	longest = func(s int) int {
		if memo[s] > 0 {
			return memo[s]
		}
		best := 0
		for _, t := range next[s] {
			if d := longest(t); d > best {
				best = d
			}
		}
		memo[s] = weight[s] + best
		return memo[s]
	}

	depth := 0
	for s := range sccs {
		if d := longest(s); d > depth {
			depth = d
		}
	}

	result := DepthResult{Depth: depth, Cycles: cycles}
	if depth > maxDepth {
		result.Depth = maxDepth
		result.Capped = true
	}
	return result
}
