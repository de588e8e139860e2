// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph assembles extracted components into a containment graph
// and derives prop, state, context and event flows over it.
//
// The Builder never mutates the components it is given. It indexes them,
// resolves rendered element names to components, derives flow records and
// returns a frozen Graph holding fresh Component copies with Children set.
package graph

import (
	"sort"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Graph is the frozen result of a build.
//
// Thread Safety: Immutable after Build returns; safe for concurrent reads.
// Accessors return copies of internal slices.
type Graph struct {
	components []model.Component
	byID       map[string]int
	parents    map[string][]string
	flows      model.Flows
}

func newGraph(components []model.Component, flows model.Flows) *Graph {
	g := &Graph{
		components: components,
		byID:       make(map[string]int, len(components)),
		parents:    make(map[string][]string),
		flows:      flows,
	}
	for i, c := range components {
		g.byID[c.ID] = i
	}
	for _, e := range flows.Containment {
		g.parents[e.Child] = append(g.parents[e.Child], e.Parent)
	}
	for id := range g.parents {
		sort.Strings(g.parents[id])
	}
	return g
}

// Components returns every component sorted by ID, with Children resolved.
func (g *Graph) Components() []model.Component {
	out := make([]model.Component, len(g.components))
	copy(out, g.components)
	return out
}

// Component looks up a component by ID.
func (g *Graph) Component(id string) (model.Component, bool) {
	i, ok := g.byID[id]
	if !ok {
		return model.Component{}, false
	}
	return g.components[i], true
}

// ComponentCount returns the number of components in the graph.
func (g *Graph) ComponentCount() int {
	return len(g.components)
}

// ChildrenOf returns the sorted child IDs of id.
func (g *Graph) ChildrenOf(id string) []string {
	c, ok := g.Component(id)
	if !ok {
		return nil
	}
	return cloneSlice(c.Children)
}

// ParentsOf returns the sorted IDs of components that render id.
func (g *Graph) ParentsOf(id string) []string {
	return cloneSlice(g.parents[id])
}

// Flows returns the derived flow records.
func (g *Graph) Flows() model.Flows {
	return model.Flows{
		Containment: cloneSlice(g.flows.Containment),
		Props:       cloneSlice(g.flows.Props),
		State:       cloneSlice(g.flows.State),
		Context:     cloneSlice(g.flows.Context),
		Events:      cloneSlice(g.flows.Events),
	}
}

// cloneSlice copies s into a non-nil slice.
func cloneSlice[T any](s []T) []T {
	return append(make([]T, 0, len(s)), s...)
}

// BuildInput is everything the Builder needs from the parse phase.
type BuildInput struct {
	// Components from all files. Order does not matter.
	Components []model.Component

	// Imports from all files, used for cross-file element resolution.
	Imports []model.ImportBinding
}

// BuildStats summarizes one build.
type BuildStats struct {
	ComponentsIndexed    int   `json:"components_indexed"`
	DuplicatesDropped    int   `json:"duplicates_dropped"`
	ContainmentEdges     int   `json:"containment_edges"`
	UnresolvedReferences int   `json:"unresolved_references"`
	AmbiguousReferences  int   `json:"ambiguous_references"`
	StructuralPropFlows  int   `json:"structural_prop_flows"`
	HeuristicPropFlows   int   `json:"heuristic_prop_flows"`
	StateFlows           int   `json:"state_flows"`
	ContextFlows         int   `json:"context_flows"`
	UnresolvedContexts   int   `json:"unresolved_contexts"`
	EventFlows           int   `json:"event_flows"`
	DurationMicro        int64 `json:"duration_micro"`
}

// BuildResult is the output of Builder.Build.
type BuildResult struct {
	Graph *Graph
	Stats BuildStats
}
