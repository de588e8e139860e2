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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/compgraph/services/compgraph/snapshot"
)

func newSnapshotCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect saved analysis snapshots",
	}
	cmd.AddCommand(
		newSnapshotListCmd(app),
		newSnapshotShowCmd(app),
		newSnapshotDeleteCmd(app),
		newSnapshotDiffCmd(app),
	)
	return cmd
}

func newSnapshotListCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			projectHash := ""
			if project := app.v.GetString("project"); project != "" {
				projectHash = snapshot.ProjectHash(project)
			}
			list, err := store.List(cmd.Context(), projectHash, app.v.GetInt("limit"))
			if err != nil {
				return err
			}
			if app.v.GetBool("json") {
				return writeJSON(app.stdout, list)
			}
			return renderSnapshotList(app.stdout, list, isTerminal(app.stdout))
		},
	}
	cmd.Flags().String("project", "", "Only list snapshots of this project")
	cmd.Flags().Int("limit", snapshot.DefaultListLimit, "Maximum snapshots to list")
	cmd.Flags().Bool("json", false, "Print metadata as JSON")
	return cmd
}

func newSnapshotShowCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			result, _, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if app.v.GetBool("json") {
				return writeJSON(app.stdout, result)
			}
			return renderReport(app.stdout, result, reportOptions{
				Styled:        isTerminal(app.stdout),
				MinConfidence: app.v.GetFloat64("min-confidence"),
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print the full result as indented JSON")
	cmd.Flags().Float64("min-confidence", 0, "Hide patterns below this confidence")
	return cmd
}

func newSnapshotDeleteCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.logger.Info("snapshot deleted", "id", args[0])
			return nil
		},
	}
}

func newSnapshotDiffCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <base> <target>",
		Short: "Compare two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			base, _, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			target, _, err := store.Load(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			diff, err := snapshot.Compare(base, target, args[0], args[1])
			if err != nil {
				return err
			}
			if app.v.GetBool("json") {
				return writeJSON(app.stdout, diff)
			}
			return renderDiff(app.stdout, diff, isTerminal(app.stdout))
		},
	}
	cmd.Flags().Bool("json", false, "Print the diff as JSON")
	return cmd
}
