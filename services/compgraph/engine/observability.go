// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

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

var engineTracer = otel.Tracer("compgraph.engine")

// runStats are per-run counters reported on spans and metrics only. They
// never reach model.Result.
type runStats struct {
	FilesParsed   int
	ParseFailures int
	CacheHits     int
	Components    int
	Patterns      int
	Diagnostics   int
}

var (
	analyzeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "compgraph",
			Subsystem: "engine",
			Name:      "analyze_duration_seconds",
			Help:      "Duration of a full project analysis in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	parseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "compgraph",
		Subsystem: "engine",
		Name:      "parse_failures_total",
		Help:      "Files skipped because they could not be parsed.",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "compgraph",
		Subsystem: "engine",
		Name:      "parse_cache_hits_total",
		Help:      "Parse results served from the cache.",
	})
)

func startAnalyzeSpan(ctx context.Context, project string, files int) (context.Context, trace.Span) {
	return engineTracer.Start(ctx, "engine.Engine.Analyze",
		trace.WithAttributes(
			attribute.String("engine.project", project),
			attribute.Int("engine.files", files),
		),
	)
}

func setAnalyzeSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func setAnalyzeSpanResult(span trace.Span, s runStats) {
	span.SetAttributes(
		attribute.Int("engine.files_parsed", s.FilesParsed),
		attribute.Int("engine.parse_failures", s.ParseFailures),
		attribute.Int("engine.cache_hits", s.CacheHits),
		attribute.Int("engine.components", s.Components),
		attribute.Int("engine.patterns", s.Patterns),
		attribute.Int("engine.diagnostics", s.Diagnostics),
	)
}

func recordAnalyzeMetrics(d time.Duration, s runStats, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	analyzeDuration.WithLabelValues(status).Observe(d.Seconds())
	if s.ParseFailures > 0 {
		parseFailuresTotal.Add(float64(s.ParseFailures))
	}
	if s.CacheHits > 0 {
		cacheHitsTotal.Add(float64(s.CacheHits))
	}
}
