// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

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

var rulesTracer = otel.Tracer("compgraph.rules")

var (
	// ruleDuration measures per-rule evaluation time.
	//
	// Labels:
	//   - rule: registered rule name
	//   - status: "success" or "error"
	ruleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "compgraph",
			Subsystem: "rules",
			Name:      "duration_seconds",
			Help:      "Duration of a single rule evaluation in seconds.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
		},
		[]string{"rule", "status"},
	)

	patternsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compgraph",
			Subsystem: "rules",
			Name:      "patterns_total",
			Help:      "Total patterns emitted, by rule.",
		},
		[]string{"rule"},
	)
)

func startEvaluateSpan(ctx context.Context, rules, components int) (context.Context, trace.Span) {
	return rulesTracer.Start(ctx, "rules.Registry.Evaluate",
		trace.WithAttributes(
			attribute.Int("rules.count", rules),
			attribute.Int("rules.components", components),
		),
	)
}

func setEvaluateSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func setEvaluateSpanResult(span trace.Span, patterns, failures int) {
	span.SetAttributes(
		attribute.Int("rules.patterns", patterns),
		attribute.Int("rules.failures", failures),
	)
}

func recordRuleMetrics(rule string, d time.Duration, patterns int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ruleDuration.WithLabelValues(rule, status).Observe(d.Seconds())
	if patterns > 0 {
		patternsTotal.WithLabelValues(rule).Add(float64(patterns))
	}
}
