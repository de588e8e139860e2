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
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/compgraph/services/compgraph/ast"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/source"
)

func newWatchCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-analyze a project whenever its sources change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.runWatch(ctx, args[0])
		},
	}
	cmd.Flags().String("project", "", "Project name (defaults to the directory name)")
	cmd.Flags().Duration("debounce", source.DefaultDebounce, "Quiet period before re-analysis")
	return cmd
}

func (a *cli) runWatch(ctx context.Context, dir string) error {
	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	project := a.projectName(dir)

	result, err := a.analyzeDir(ctx, eng, dir)
	if err != nil {
		return err
	}
	a.printSummary(result)

	opts := source.Options{MaxFileSize: eng.Config().Parser.MaxFileSize}
	w, err := source.NewWatcher(dir, opts, func(ctx context.Context, files []ast.SourceFile) error {
		result, err := eng.Analyze(ctx, project, files)
		if err != nil {
			return err
		}
		a.printSummary(result)
		return nil
	},
		source.WithDebounce(a.v.GetDuration("debounce")),
		source.WithWatcherLogger(a.logger),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	a.logger.Info("watching for changes")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printSummary writes a one-line summary of result.
func (a *cli) printSummary(result *model.Result) {
	anti := 0
	for _, p := range result.Patterns {
		if p.Kind == model.PatternKindAntiPattern {
			anti++
		}
	}
	fmt.Fprintf(a.stdout, "%s  components=%d patterns=%d anti-patterns=%d diagnostics=%d mean-complexity=%.2f\n",
		time.Now().Format(time.TimeOnly),
		result.Metrics.ComponentCount, len(result.Patterns), anti,
		len(result.Diagnostics), result.Metrics.MeanComplexity)
}
