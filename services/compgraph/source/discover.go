// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source turns a project directory into engine input and watches
// it for changes.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/compgraph/services/compgraph/ast"
)

// DefaultIgnoreDirs are directory names never descended into.
var DefaultIgnoreDirs = []string{
	"node_modules", ".git", "dist", "build", "coverage", ".next",
}

// Options configures Discover.
type Options struct {
	// IgnoreDirs replaces DefaultIgnoreDirs when non-empty.
	IgnoreDirs []string

	// Extensions replaces ast.SupportedExtensions() when non-empty.
	Extensions []string

	// MaxFileSize skips larger files. Zero means ast.DefaultMaxFileSize.
	MaxFileSize int64

	// IncludeDeclarations keeps .d.ts files, which never hold components.
	IncludeDeclarations bool
}

func (o Options) withDefaults() Options {
	if len(o.IgnoreDirs) == 0 {
		o.IgnoreDirs = DefaultIgnoreDirs
	}
	if len(o.Extensions) == 0 {
		o.Extensions = ast.SupportedExtensions()
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = ast.DefaultMaxFileSize
	}
	return o
}

// Discover collects the source files of the project rooted at root.
//
// Description:
//
//	Walks root, skipping ignored directory names and files with other
//	extensions. Oversized files are skipped with a warning. File IDs are
//	slash-separated paths relative to root, so they are stable across
//	machines.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per directory entry.
//	root - Project directory.
//	opts - Walk options. The zero value selects the defaults.
//
// Outputs:
//
//	[]ast.SourceFile - Files sorted by ID. Never nil on success.
//	error - Non-nil if root is not a directory or a read fails.
func Discover(ctx context.Context, root string, opts Options) ([]ast.SourceFile, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover %s: not a directory", root)
	}

	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		ignore[d] = struct{}{}
	}

	files := make([]ast.SourceFile, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := ignore[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !opts.accepts(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)
		if fi.Size() > opts.MaxFileSize {
			slog.Warn("skipping oversized source file",
				slog.String("file", id),
				slog.Int64("size_bytes", fi.Size()),
			)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, ast.SourceFile{ID: id, Path: id, Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (o Options) accepts(name string) bool {
	lower := strings.ToLower(name)
	if !o.IncludeDeclarations && strings.HasSuffix(lower, ".d.ts") {
		return false
	}
	ext := filepath.Ext(lower)
	for _, e := range o.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Ignored reports whether any element of the slash-separated relative
// path is an ignored directory name.
func (o Options) Ignored(rel string) bool {
	o = o.withDefaults()
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, d := range o.IgnoreDirs {
			if part == d {
				return true
			}
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
