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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/compgraph/services/compgraph/ast"
	"github.com/AleutianAI/compgraph/services/compgraph/graph"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/rules"
)

// parseSlot is written by exactly one parse goroutine.
type parseSlot struct {
	result *ast.ParseResult
	err    error
	cached bool
}

// Analyze runs the whole pipeline over one project's files.
//
// Description:
//
//	Phases run in order: validate, parse (bounded fan-out, one result
//	slot per file), barrier merge in file-ID order, graph assembly, then
//	rules and metrics concurrently. Files that fail to parse are skipped
//	and reported as error diagnostics. The result contains no timestamps,
//	so identical input always serializes identically.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked between phases.
//	project - Free-form project name echoed on the result.
//	files - Source files. IDs must be non-empty and unique.
//
// Outputs:
//
//	*model.Result - The complete result. Nil on error.
//	error - ErrInvalidInput, ErrDuplicateFileID, or a context error.
//	    No partial result is returned.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Analyze(ctx context.Context, project string, files []ast.SourceFile) (result *model.Result, err error) {
	ctx, span := startAnalyzeSpan(ctx, project, len(files))
	defer span.End()

	start := time.Now()
	var stats runStats
	defer func() {
		if err != nil {
			setAnalyzeSpanError(span, err)
		} else {
			setAnalyzeSpanResult(span, stats)
		}
		recordAnalyzeMetrics(time.Since(start), stats, err == nil)
	}()

	if err := validateFiles(files); err != nil {
		return nil, err
	}

	order := make([]int, len(files))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return files[order[a]].ID < files[order[b]].ID })

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyze %s: before parse: %w", project, err)
	}

	slots := e.parseAll(ctx, files)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyze %s: parse phase: %w", project, err)
	}

	// Barrier: merge in file-ID order so downstream input is independent
	// of completion order.
	input := graph.BuildInput{
		Components: make([]model.Component, 0),
		Imports:    make([]model.ImportBinding, 0),
	}
	diagnostics := make([]model.Diagnostic, 0)
	for _, i := range order {
		slot := slots[i]
		if slot.cached {
			stats.CacheHits++
		}
		if slot.err != nil {
			stats.ParseFailures++
			e.logger.Warn("file skipped",
				slog.String("file", files[i].ID),
				slog.String("error", slot.err.Error()),
			)
			diagnostics = append(diagnostics, model.Diagnostic{
				File:     files[i].ID,
				Severity: model.SeverityError,
				Code:     model.CodeParseFailure,
				Message:  slot.err.Error(),
			})
			continue
		}
		stats.FilesParsed++
		input.Components = append(input.Components, slot.result.Components...)
		input.Imports = append(input.Imports, slot.result.Imports...)
		diagnostics = append(diagnostics, slot.result.Diagnostics...)
	}

	built, err := e.builder.Build(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", project, err)
	}
	g := built.Graph
	components := g.Components()
	flows := g.Flows()

	e.logger.Debug("graph assembled",
		slog.String("project", project),
		slog.Int("components", built.Stats.ComponentsIndexed),
		slog.Int("containment_edges", built.Stats.ContainmentEdges),
		slog.Int("unresolved_references", built.Stats.UnresolvedReferences),
		slog.Int("ambiguous_references", built.Stats.AmbiguousReferences),
		slog.Int("unresolved_contexts", built.Stats.UnresolvedContexts),
	)

	var (
		eval    *rules.Evaluation
		summary model.Metrics
	)
	stage, sctx := errgroup.WithContext(ctx)
	stage.Go(func() error {
		var err error
		eval, err = e.registry.Evaluate(sctx, rules.Input{Components: components, Flows: flows})
		return err
	})
	stage.Go(func() error {
		var err error
		summary, err = e.aggregator.Aggregate(sctx, components)
		return err
	})
	if err := stage.Wait(); err != nil {
		return nil, fmt.Errorf("analyze %s: rules and metrics: %w", project, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", project, err)
	}

	diagnostics = append(diagnostics, eval.Diagnostics...)

	stats.Components = len(components)
	stats.Patterns = len(eval.Patterns)
	stats.Diagnostics = len(diagnostics)

	e.logger.Info("analysis complete",
		slog.String("project", project),
		slog.Int("files", len(files)),
		slog.Int("components", stats.Components),
		slog.Int("patterns", stats.Patterns),
		slog.Int("diagnostics", stats.Diagnostics),
		slog.Duration("duration", time.Since(start)),
	)

	return &model.Result{
		Project:      project,
		Components:   components,
		Containment:  flows.Containment,
		PropFlows:    flows.Props,
		StateFlows:   flows.State,
		ContextFlows: flows.Context,
		EventFlows:   flows.Events,
		Patterns:     eval.Patterns,
		Metrics:      summary,
		Diagnostics:  diagnostics,
	}, nil
}

// validateFiles rejects empty and duplicate file IDs.
func validateFiles(files []ast.SourceFile) error {
	seen := make(map[string]struct{}, len(files))
	for i, f := range files {
		if f.ID == "" {
			return fmt.Errorf("%w: file %d has an empty id", ErrInvalidInput, i)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFileID, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// parseAll parses files with at most e.workers goroutines. Slot i belongs
// to files[i] and is written only by its goroutine.
func (e *Engine) parseAll(ctx context.Context, files []ast.SourceFile) []parseSlot {
	slots := make([]parseSlot, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range files {
		g.Go(func() error {
			slots[i] = e.parseOne(gctx, files[i])
			// Parse failures are per-file; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (e *Engine) parseOne(ctx context.Context, file ast.SourceFile) parseSlot {
	key := cacheKey(file)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return parseSlot{result: cached, cached: true}
		}
	}

	res, err := e.parser.Parse(ctx, file)
	if err != nil {
		return parseSlot{err: err}
	}
	if e.cache != nil {
		e.cache.Add(key, res)
	}
	return parseSlot{result: res}
}

// cacheKey identifies a parse by file ID, grammar and content.
func cacheKey(file ast.SourceFile) string {
	lang, _ := file.ResolveLanguage()
	sum := sha256.Sum256(file.Content)
	return file.ID + "\x00" + string(lang) + "\x00" + hex.EncodeToString(sum[:])
}
