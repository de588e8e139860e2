// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/compgraph/services/compgraph/engine"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/snapshot"
	"github.com/AleutianAI/compgraph/services/compgraph/source"
)

func newAnalyzeCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <dir>",
		Short: "Analyze a project directory and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runAnalyze(cmd.Context(), args[0])
		},
	}
	f := cmd.Flags()
	f.Bool("json", false, "Print the full result as indented JSON")
	f.Bool("snapshot", false, "Save the result to the snapshot database")
	f.String("label", "", "Label for the saved snapshot")
	f.String("project", "", "Project name (defaults to the directory name)")
	f.Float64("min-confidence", 0, "Hide patterns below this confidence")
	return cmd
}

func (a *cli) runAnalyze(ctx context.Context, dir string) error {
	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	result, err := a.analyzeDir(ctx, eng, dir)
	if err != nil {
		return err
	}

	if a.v.GetBool("snapshot") {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		meta, err := store.Save(ctx, result, a.v.GetString("label"))
		if err != nil {
			return err
		}
		a.logger.Info("snapshot saved",
			slog.String("id", meta.ID),
			slog.String("project", meta.Project),
		)
	}

	if a.v.GetBool("json") {
		if minConf := a.v.GetFloat64("min-confidence"); minConf > 0 {
			filtered := *result
			filtered.Patterns = filterPatterns(result.Patterns, minConf)
			result = &filtered
		}
		return writeJSON(a.stdout, result)
	}
	return renderReport(a.stdout, result, reportOptions{
		Styled:        isTerminal(a.stdout),
		MinConfidence: a.v.GetFloat64("min-confidence"),
	})
}

// analyzeDir discovers and analyzes the project rooted at dir.
func (a *cli) analyzeDir(ctx context.Context, eng *engine.Engine, dir string) (*model.Result, error) {
	files, err := source.Discover(ctx, dir, source.Options{
		MaxFileSize: eng.Config().Parser.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}
	return eng.Analyze(ctx, a.projectName(dir), files)
}

// projectName returns --project or the base name of dir.
func (a *cli) projectName(dir string) string {
	if name := a.v.GetString("project"); name != "" {
		return name
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}

// openStore opens the snapshot database at --db, or ~/.compgraph/snapshots.
func (a *cli) openStore() (*snapshot.Store, error) {
	dir := a.v.GetString("db")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving snapshot directory: %w", err)
		}
		dir = filepath.Join(home, ".compgraph", "snapshots")
	}
	return snapshot.Open(dir, a.logger)
}
