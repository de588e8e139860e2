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
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// DefaultMaxPropDepth caps the reported containment depth.
const DefaultMaxPropDepth = 20

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseIndexing indicates components are being indexed.
	ProgressPhaseIndexing ProgressPhase = iota

	// ProgressPhaseContainment indicates element references are being resolved.
	ProgressPhaseContainment

	// ProgressPhaseFlows indicates flow records are being derived.
	ProgressPhaseFlows

	// ProgressPhaseFinalizing indicates the graph is being frozen.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseIndexing:
		return "indexing"
	case ProgressPhaseContainment:
		return "containment"
	case ProgressPhaseFlows:
		return "flows"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	Phase           ProgressPhase
	ComponentsTotal int
	EdgesCreated    int
	FlowsCreated    int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// MaxPropDepth caps containment depth analysis.
	// Default: 20
	MaxPropDepth int

	// ProgressCallback is called once per phase. May be nil.
	ProgressCallback ProgressFunc
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		MaxPropDepth: DefaultMaxPropDepth,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithMaxPropDepth sets the depth cap.
func WithMaxPropDepth(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxPropDepth = n
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// Builder assembles component graphs.
//
// The builder is stateless and can be reused across multiple builds.
// Each Build() call creates a new graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	matcher heuristics.Matcher
	options BuilderOptions
}

// NewBuilder creates a new Builder.
//
// Example:
//
//	builder := NewBuilder(matcher, WithMaxPropDepth(10))
func NewBuilder(matcher heuristics.Matcher, opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxPropDepth <= 0 {
		options.MaxPropDepth = DefaultMaxPropDepth
	}
	return &Builder{matcher: matcher, options: options}
}

// MaxPropDepth returns the configured depth cap.
func (b *Builder) MaxPropDepth() int {
	return b.options.MaxPropDepth
}

// edgeKey identifies a deduplicated containment edge.
type edgeKey struct {
	parent string
	child  string
}

// buildState holds mutable state during a single build operation.
type buildState struct {
	result *BuildResult

	// components sorted by ID. Never mutated; finalize copies.
	components []model.Component
	byID       map[string]int
	byName     map[string][]int

	// importsByFile maps file ID -> local name -> binding.
	importsByFile map[string]map[string]model.ImportBinding

	// edges in (parent, child) order, one per pair.
	edges []edgeKey

	// sites holds every element instance behind an edge.
	sites map[edgeKey][]model.ElementRef

	flows     model.Flows
	startTime time.Time
}

// Build assembles the graph and derives all flows.
//
// Description:
//
//	Runs four phases in order. Unresolved element references and
//	unresolved contexts are dropped from the output and counted in Stats.
//	Every emitted list is sorted by stable keys, so identical input
//	yields identical output regardless of input order.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked between phases.
//	input - Components and imports from the parse phase.
//
// Outputs:
//
//	*BuildResult - The frozen graph and build statistics.
//	error - Non-nil only when ctx is cancelled.
//
// Build Phases:
//
//  1. INDEX: Sort and index components by ID, name and file
//  2. CONTAINMENT: Resolve rendered elements to components
//  3. FLOWS: Derive prop, state, context and event flows
//  4. FINALIZE: Materialize Children and freeze the graph
func (b *Builder) Build(ctx context.Context, input BuildInput) (*BuildResult, error) {
	ctx, span := startBuildSpan(ctx, len(input.Components))
	defer span.End()

	state := &buildState{
		result:        &BuildResult{},
		byID:          make(map[string]int, len(input.Components)),
		byName:        make(map[string][]int),
		importsByFile: make(map[string]map[string]model.ImportBinding),
		sites:         make(map[edgeKey][]model.ElementRef),
		flows:         model.Flows{Containment: make([]model.ContainmentEdge, 0)},
		startTime:     time.Now(),
	}

	fail := func(phase string, err error) (*BuildResult, error) {
		setBuildSpanError(span, err)
		recordBuildMetrics(time.Since(state.startTime), state.result.Stats, false)
		return nil, fmt.Errorf("graph build %s phase: %w", phase, err)
	}

	if err := ctx.Err(); err != nil {
		return fail("index", err)
	}
	b.indexPhase(state, input)
	b.reportProgress(state, ProgressPhaseIndexing)

	if err := ctx.Err(); err != nil {
		return fail("containment", err)
	}
	b.containmentPhase(state)
	b.reportProgress(state, ProgressPhaseContainment)

	if err := ctx.Err(); err != nil {
		return fail("flows", err)
	}
	b.flowsPhase(state)
	b.reportProgress(state, ProgressPhaseFlows)

	if err := ctx.Err(); err != nil {
		return fail("finalize", err)
	}
	b.finalizePhase(state)
	b.reportProgress(state, ProgressPhaseFinalizing)

	state.result.Stats.DurationMicro = time.Since(state.startTime).Microseconds()
	setBuildSpanResult(span, state.result.Stats)
	recordBuildMetrics(time.Since(state.startTime), state.result.Stats, true)

	slog.Debug("component graph built",
		slog.Int("components", state.result.Stats.ComponentsIndexed),
		slog.Int("edges", state.result.Stats.ContainmentEdges),
		slog.Int("unresolved", state.result.Stats.UnresolvedReferences),
	)

	return state.result, nil
}

// indexPhase sorts components by ID and builds the lookup tables.
// A repeated ID keeps the first occurrence after sorting.
func (b *Builder) indexPhase(state *buildState, input BuildInput) {
	sorted := make([]model.Component, len(input.Components))
	copy(sorted, input.Components)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	state.components = make([]model.Component, 0, len(sorted))
	for _, c := range sorted {
		if _, dup := state.byID[c.ID]; dup {
			state.result.Stats.DuplicatesDropped++
			slog.Warn("duplicate component id dropped", slog.String("component_id", c.ID))
			continue
		}
		idx := len(state.components)
		state.components = append(state.components, c)
		state.byID[c.ID] = idx
		state.byName[c.Name] = append(state.byName[c.Name], idx)
	}
	state.result.Stats.ComponentsIndexed = len(state.components)

	for _, imp := range input.Imports {
		local, ok := state.importsByFile[imp.File]
		if !ok {
			local = make(map[string]model.ImportBinding)
			state.importsByFile[imp.File] = local
		}
		if _, exists := local[imp.LocalName]; !exists {
			local[imp.LocalName] = imp
		}
	}
}

// finalizePhase materializes Children into fresh component records.
func (b *Builder) finalizePhase(state *buildState) {
	children := make(map[string][]string)
	for _, e := range state.edges {
		children[e.parent] = append(children[e.parent], e.child)
	}

	final := make([]model.Component, len(state.components))
	for i, c := range state.components {
		ids := children[c.ID]
		if ids == nil {
			ids = make([]string, 0)
		}
		final[i] = c.WithChildren(ids)
	}

	state.result.Graph = newGraph(final, state.flows)
}

func (b *Builder) reportProgress(state *buildState, phase ProgressPhase) {
	if b.options.ProgressCallback == nil {
		return
	}
	f := state.flows
	b.options.ProgressCallback(BuildProgress{
		Phase:           phase,
		ComponentsTotal: len(state.components),
		EdgesCreated:    len(state.edges),
		FlowsCreated:    len(f.Props) + len(f.State) + len(f.Context) + len(f.Events),
	})
}
