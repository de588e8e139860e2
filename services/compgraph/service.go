// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compgraph exposes the component graph engine over HTTP.
//
// The Service owns one engine.Engine and an optional snapshot.Store.
// Handlers translate JSON requests into Service calls; they never derive
// graph facts themselves.
package compgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/compgraph/services/compgraph/ast"
	"github.com/AleutianAI/compgraph/services/compgraph/config"
	"github.com/AleutianAI/compgraph/services/compgraph/engine"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/snapshot"
	"github.com/AleutianAI/compgraph/services/compgraph/source"
)

var (
	// ErrSnapshotsDisabled is returned when no snapshot store is configured.
	ErrSnapshotsDisabled = errors.New("snapshots are not enabled")

	// ErrFilesystemDisabled is returned for directory analysis when the
	// service was not configured with an allowed root.
	ErrFilesystemDisabled = errors.New("filesystem analysis is not enabled")

	// ErrRootNotAllowed is returned for a directory outside the allowed root.
	ErrRootNotAllowed = errors.New("root is outside the allowed directory")
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Engine is the engine configuration. Nil uses the process default.
	Engine *config.EngineConfig

	// Workers overrides Engine.Engine.Workers when positive.
	Workers int

	// SnapshotDir is the badger directory. Empty with SnapshotsInMemory
	// false disables snapshots.
	SnapshotDir string

	// SnapshotsInMemory keeps snapshots in memory only.
	SnapshotsInMemory bool

	// AllowedRoot enables {"root": ...} requests for directories below it.
	// Empty disables filesystem access.
	AllowedRoot string

	// MaxRequestFiles bounds the number of inline files per request.
	MaxRequestFiles int

	// RateLimit is the sustained request rate per second. Zero disables
	// rate limiting.
	RateLimit float64

	// RateBurst is the limiter bucket size.
	RateBurst int
}

// DefaultServiceConfig returns the defaults used by the serve command.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxRequestFiles: 10000,
		RateLimit:       20,
		RateBurst:       40,
	}
}

// Service runs analyses and manages snapshots.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	cfg       ServiceConfig
	engine    *engine.Engine
	snapshots *snapshot.Store
	logger    *slog.Logger
}

// NewService creates a Service.
//
// Outputs:
//
//	*Service - Ready to serve. Close releases the snapshot store.
//	error - Non-nil if the engine or the snapshot store cannot be created.
func NewService(ctx context.Context, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Engine != nil {
		opts = append(opts, engine.WithConfig(cfg.Engine))
	}
	if cfg.Workers > 0 {
		opts = append(opts, engine.WithWorkers(cfg.Workers))
	}
	eng, err := engine.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	s := &Service{cfg: cfg, engine: eng, logger: logger}
	if cfg.SnapshotDir != "" || cfg.SnapshotsInMemory {
		dir := cfg.SnapshotDir
		if cfg.SnapshotsInMemory {
			dir = ""
		}
		store, err := snapshot.Open(dir, logger)
		if err != nil {
			return nil, err
		}
		s.snapshots = store
	}
	return s, nil
}

// Close releases the snapshot store.
func (s *Service) Close() error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Close()
}

// Engine returns the underlying engine.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Snapshots returns the snapshot store, or nil when disabled.
func (s *Service) Snapshots() *snapshot.Store {
	return s.snapshots
}

// Analyze runs the engine over inline files.
func (s *Service) Analyze(ctx context.Context, project string, files []ast.SourceFile) (*model.Result, error) {
	return s.engine.Analyze(ctx, project, files)
}

// AnalyzeDir discovers and analyzes the project at root.
//
// Outputs:
//
//	error - ErrFilesystemDisabled, ErrRootNotAllowed, a discovery error or
//	    an engine error.
func (s *Service) AnalyzeDir(ctx context.Context, project, root string) (*model.Result, error) {
	dir, err := s.resolveRoot(root)
	if err != nil {
		return nil, err
	}
	files, err := source.Discover(ctx, dir, source.Options{
		MaxFileSize: s.engine.Config().Parser.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}
	return s.engine.Analyze(ctx, project, files)
}

// Save stores result as a snapshot.
func (s *Service) Save(ctx context.Context, result *model.Result, label string) (*snapshot.Metadata, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	return s.snapshots.Save(ctx, result, label)
}

// Diff loads two snapshots and compares them.
func (s *Service) Diff(ctx context.Context, baseID, targetID string) (*snapshot.Diff, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	base, _, err := s.snapshots.Load(ctx, baseID)
	if err != nil {
		return nil, fmt.Errorf("loading base: %w", err)
	}
	target, _, err := s.snapshots.Load(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("loading target: %w", err)
	}
	return snapshot.Compare(base, target, baseID, targetID)
}

// resolveRoot maps a request root to an absolute directory below the
// allowed root. Relative roots are taken relative to the allowed root.
func (s *Service) resolveRoot(root string) (string, error) {
	if s.cfg.AllowedRoot == "" {
		return "", ErrFilesystemDisabled
	}
	allowed, err := filepath.Abs(s.cfg.AllowedRoot)
	if err != nil {
		return "", fmt.Errorf("resolving allowed root: %w", err)
	}
	dir := root
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(allowed, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(allowed, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrRootNotAllowed, root)
	}
	return dir, nil
}
