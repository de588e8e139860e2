// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics reduces a component set to project-level statistics.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/compgraph/services/compgraph/graph"
	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Aggregator computes model.Metrics with a fixed matcher and depth cap.
//
// Thread Safety: Safe for concurrent use; it holds no mutable state.
type Aggregator struct {
	matcher  heuristics.Matcher
	maxDepth int
}

// NewAggregator returns an Aggregator.
//
// Inputs:
//
//	matcher - Used to name the context a hook consumes. Must not be nil.
//	maxDepth - Cap on the reported prop depth. Non-positive selects
//	    graph.DefaultMaxPropDepth.
func NewAggregator(matcher heuristics.Matcher, maxDepth int) *Aggregator {
	if maxDepth <= 0 {
		maxDepth = graph.DefaultMaxPropDepth
	}
	return &Aggregator{matcher: matcher, maxDepth: maxDepth}
}

// Aggregate computes metrics for components, traced and measured.
//
// Outputs:
//
//	model.Metrics - The reduction. Zero values for empty input.
//	error - Non-nil only when ctx is already cancelled.
func (a *Aggregator) Aggregate(ctx context.Context, components []model.Component) (model.Metrics, error) {
	_, span := startAggregateSpan(ctx, len(components))
	defer span.End()

	if err := ctx.Err(); err != nil {
		setAggregateSpanError(span, err)
		return model.Metrics{}, fmt.Errorf("aggregate metrics: %w", err)
	}

	start := time.Now()
	m := Aggregate(components, a.maxDepth, a.matcher.ContextName)
	recordAggregateMetrics(time.Since(start), m)
	setAggregateSpanResult(span, m)
	return m, nil
}

// ContextNamer maps a context hook to the name of the context it reads.
type ContextNamer func(hook model.StateHook) string

// Aggregate is the pure reduction behind Aggregator.Aggregate.
//
// Description:
//
//	Counts components, histograms hook kinds with every kind present,
//	averages the unrounded complexity, measures containment depth and
//	cycles, and counts distinct (component, context) pairs among context
//	hooks. A nil contextName counts each context hook's raw argument.
//
// Inputs:
//
//	components - Components with Children resolved.
//	maxDepth - Depth cap passed to graph.ContainmentDepth.
//	contextName - Context naming function, usually Matcher.ContextName.
//
// Outputs:
//
//	model.Metrics - Never divides by zero; empty input gives zero values
//	    and a histogram of zeros.
//
// Thread Safety: Pure function.
func Aggregate(components []model.Component, maxDepth int, contextName ContextNamer) model.Metrics {
	m := model.Metrics{
		ComponentCount: len(components),
		HookHistogram:  model.NewHookHistogram(),
	}
	if len(components) == 0 {
		return m
	}

	if contextName == nil {
		contextName = func(h model.StateHook) string { return h.Argument }
	}

	var complexitySum float64
	contextPairs := make(map[[2]string]struct{})
	for i := range components {
		c := &components[i]
		complexitySum += model.Complexity(c)
		for _, h := range c.Hooks {
			m.HookHistogram[h.Kind]++
			if h.Kind != model.HookKindContext {
				continue
			}
			contextPairs[[2]string{c.ID, contextName(h)}] = struct{}{}
		}
	}
	m.MeanComplexity = complexitySum / float64(len(components))
	m.ContextHookUsages = len(contextPairs)

	depth := graph.ContainmentDepth(components, maxDepth)
	m.MaxPropDepth = depth.Depth
	m.DepthCapped = depth.Capped
	m.ContainmentCycles = depth.Cycles
	return m
}
