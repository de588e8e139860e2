// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

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

var parserTracer = otel.Tracer("compgraph.ast")

// Package-level Prometheus metrics for component extraction.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// parseDuration measures per-file extraction time.
	//
	// Labels:
	//   - language: "tsx", "typescript", "javascript" or "" when unresolved
	//   - status: "success" or "error"
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "compgraph",
			Subsystem: "parser",
			Name:      "parse_duration_seconds",
			Help:      "Duration of per-file component extraction in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"language", "status"},
	)

	// parseTotal counts parsed files.
	parseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compgraph",
			Subsystem: "parser",
			Name:      "files_total",
			Help:      "Total number of files processed by the component parser.",
		},
		[]string{"language", "status"},
	)

	// componentsExtracted counts recognized components.
	componentsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compgraph",
			Subsystem: "parser",
			Name:      "components_total",
			Help:      "Total number of components recognized.",
		},
		[]string{"language"},
	)
)

func startParseSpan(ctx context.Context, fileID string, size int) (context.Context, trace.Span) {
	return parserTracer.Start(ctx, "ast.ComponentParser.Parse",
		trace.WithAttributes(
			attribute.String("file.id", fileID),
			attribute.Int("file.size", size),
		),
	)
}

func setParseSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func setParseSpanResult(span trace.Span, components, diagnostics int) {
	span.SetAttributes(
		attribute.Int("parse.components", components),
		attribute.Int("parse.diagnostics", diagnostics),
	)
}

// recordParseMetrics records one finished Parse call.
//
// Thread Safety: Safe for concurrent use.
func recordParseMetrics(language string, duration time.Duration, components int, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	parseDuration.WithLabelValues(language, status).Observe(duration.Seconds())
	parseTotal.WithLabelValues(language, status).Inc()
	if components > 0 {
		componentsExtracted.WithLabelValues(language).Add(float64(components))
	}
}
