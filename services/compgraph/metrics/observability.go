// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

var metricsTracer = otel.Tracer("compgraph.metrics")

var (
	aggregateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "compgraph",
		Subsystem: "metrics",
		Name:      "aggregate_duration_seconds",
		Help:      "Duration of metrics aggregation in seconds.",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
	})

	// lastMaxPropDepth is the depth reported by the latest aggregation.
	lastMaxPropDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "compgraph",
		Subsystem: "metrics",
		Name:      "max_prop_depth",
		Help:      "Longest containment chain of the most recent analysis.",
	})
)

func startAggregateSpan(ctx context.Context, components int) (context.Context, trace.Span) {
	return metricsTracer.Start(ctx, "metrics.Aggregator.Aggregate",
		trace.WithAttributes(attribute.Int("metrics.components", components)),
	)
}

func setAggregateSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func setAggregateSpanResult(span trace.Span, m model.Metrics) {
	span.SetAttributes(
		attribute.Float64("metrics.mean_complexity", m.MeanComplexity),
		attribute.Int("metrics.max_prop_depth", m.MaxPropDepth),
		attribute.Bool("metrics.depth_capped", m.DepthCapped),
		attribute.Int("metrics.context_usages", m.ContextHookUsages),
		attribute.Int("metrics.cycles", m.ContainmentCycles),
	)
}

func recordAggregateMetrics(d time.Duration, m model.Metrics) {
	aggregateDuration.Observe(d.Seconds())
	lastMaxPropDepth.Set(float64(m.MaxPropDepth))
}
