// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs the full analysis pipeline for one project.
//
// A run parses every file concurrently, waits at a barrier, assembles the
// component graph, and then evaluates pattern rules and metrics
// concurrently. Only invalid input is fatal; everything else degrades to
// diagnostics on the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/compgraph/services/compgraph/ast"
	"github.com/AleutianAI/compgraph/services/compgraph/config"
	"github.com/AleutianAI/compgraph/services/compgraph/graph"
	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/metrics"
	"github.com/AleutianAI/compgraph/services/compgraph/rules"
)

var (
	// ErrDuplicateFileID is returned when two input files share an ID.
	ErrDuplicateFileID = errors.New("duplicate file id")

	// ErrInvalidInput is returned for malformed input such as an empty file ID.
	ErrInvalidInput = errors.New("invalid input")
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	cfg      *config.EngineConfig
	workers  int
	cache    int
	cacheSet bool
	registry *rules.Registry
	logger   *slog.Logger
	progress graph.ProgressFunc
}

// WithConfig uses cfg instead of the process-wide engine configuration.
func WithConfig(cfg *config.EngineConfig) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithWorkers overrides the parse worker count. Non-positive values are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCacheSize overrides the parse cache capacity. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.cache = n
			o.cacheSet = true
		}
	}
}

// WithRegistry replaces the built-in rule registry.
func WithRegistry(r *rules.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBuildProgress forwards graph builder progress to fn.
func WithBuildProgress(fn graph.ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Engine analyzes projects.
//
// Description:
//
//	An Engine owns a parser, a graph builder, a rule registry and a metrics
//	aggregator, all configured from one EngineConfig. Analyze calls share
//	nothing except the parse cache, whose entries are immutable.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	cfg        *config.EngineConfig
	matcher    heuristics.Matcher
	parser     *ast.ComponentParser
	builder    *graph.Builder
	registry   *rules.Registry
	aggregator *metrics.Aggregator
	cache      *lru.Cache[string, *ast.ParseResult]
	workers    int
	logger     *slog.Logger
}

// New creates an Engine.
//
// Inputs:
//
//	ctx - Used when loading the default configuration.
//	opts - Optional configuration functions.
//
// Outputs:
//
//	*Engine - Ready to use.
//	error - Non-nil when the configuration cannot be loaded or the cache
//	    cannot be created.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.GetEngineConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		cfg = loaded
	}

	workers := cfg.Engine.Workers
	if o.workers > 0 {
		workers = o.workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	cacheSize := cfg.Engine.CacheSize
	if o.cacheSet {
		cacheSize = o.cache
	}

	matcher := heuristics.NewNameMatcher(cfg)

	e := &Engine{
		cfg:     cfg,
		matcher: matcher,
		parser: ast.NewComponentParser(matcher,
			ast.WithMaxFileSize(cfg.Parser.MaxFileSize),
			ast.WithWarnFileSize(cfg.Parser.WarnFileSize),
			ast.WithMaxWalkDepth(cfg.Parser.MaxWalkDepth),
		),
		builder: graph.NewBuilder(matcher,
			graph.WithMaxPropDepth(cfg.Assembly.MaxPropDepth),
			graph.WithProgressCallback(o.progress),
		),
		registry:   o.registry,
		aggregator: metrics.NewAggregator(matcher, cfg.Assembly.MaxPropDepth),
		workers:    workers,
		logger:     o.logger,
	}
	if e.registry == nil {
		e.registry = rules.NewDefaultRegistry(matcher)
	}

	if cacheSize > 0 {
		cache, err := lru.New[string, *ast.ParseResult](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("engine: creating parse cache: %w", err)
		}
		e.cache = cache
	}

	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.EngineConfig {
	return e.cfg
}

// Matcher returns the name heuristics shared by every stage.
func (e *Engine) Matcher() heuristics.Matcher {
	return e.matcher
}

// Workers returns the parse worker count.
func (e *Engine) Workers() int {
	return e.workers
}

// CachedFiles returns the number of parse results currently cached.
func (e *Engine) CachedFiles() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// PurgeCache drops every cached parse result.
func (e *Engine) PurgeCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}
