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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var graphTracer = otel.Tracer("compgraph.graph")

var (
	buildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "compgraph",
			Subsystem: "graph",
			Name:      "build_duration_seconds",
			Help:      "Duration of graph assembly in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	buildEdgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "compgraph",
		Subsystem: "graph",
		Name:      "containment_edges_total",
		Help:      "Total containment edges resolved.",
	})

	// unresolvedReferencesTotal counts element references dropped during
	// containment, by reason ("unresolved" or "ambiguous").
	unresolvedReferencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compgraph",
			Subsystem: "graph",
			Name:      "dropped_references_total",
			Help:      "Total element references that could not be resolved to one component.",
		},
		[]string{"reason"},
	)
)

func startBuildSpan(ctx context.Context, components int) (context.Context, trace.Span) {
	return graphTracer.Start(ctx, "graph.Builder.Build",
		trace.WithAttributes(attribute.Int("build.components", components)),
	)
}

func setBuildSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func setBuildSpanResult(span trace.Span, stats BuildStats) {
	span.SetAttributes(
		attribute.Int("build.edges", stats.ContainmentEdges),
		attribute.Int("build.unresolved", stats.UnresolvedReferences),
		attribute.Int("build.ambiguous", stats.AmbiguousReferences),
		attribute.Int("build.prop_flows", stats.StructuralPropFlows+stats.HeuristicPropFlows),
		attribute.Int("build.state_flows", stats.StateFlows),
		attribute.Int("build.context_flows", stats.ContextFlows),
		attribute.Int("build.event_flows", stats.EventFlows),
	)
}

func recordBuildMetrics(d time.Duration, stats BuildStats, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	buildDuration.WithLabelValues(status).Observe(d.Seconds())
	if !success {
		return
	}
	buildEdgesTotal.Add(float64(stats.ContainmentEdges))
	unresolvedReferencesTotal.WithLabelValues("unresolved").Add(float64(stats.UnresolvedReferences))
	unresolvedReferencesTotal.WithLabelValues("ambiguous").Add(float64(stats.AmbiguousReferences))
}
