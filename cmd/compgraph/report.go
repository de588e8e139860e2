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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/snapshot"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("white")).Bold(true)
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	antiStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	patternStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// reportOptions controls text rendering.
type reportOptions struct {
	// Styled enables lipgloss colors. Plain text otherwise.
	Styled bool

	// MinConfidence hides patterns below this confidence.
	MinConfidence float64
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type painter struct {
	styled bool
}

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// filterPatterns keeps patterns at or above minConfidence, in order.
func filterPatterns(patterns []model.Pattern, minConfidence float64) []model.Pattern {
	out := make([]model.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Confidence >= minConfidence {
			out = append(out, p)
		}
	}
	return out
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderReport writes a human-readable summary of result.
func renderReport(w io.Writer, result *model.Result, opts reportOptions) error {
	p := painter{styled: opts.Styled}
	var b strings.Builder

	m := result.Metrics
	fmt.Fprintf(&b, "%s\n", p.paint(titleStyle, "Component graph: "+result.Project))
	fmt.Fprintf(&b, "  components %d   mean complexity %.2f   max depth %d",
		m.ComponentCount, m.MeanComplexity, m.MaxPropDepth)
	if m.DepthCapped {
		b.WriteString("+")
	}
	fmt.Fprintf(&b, "   context usages %d   cycles %d\n", m.ContextHookUsages, m.ContainmentCycles)

	kinds := make([]string, 0, len(m.HookHistogram))
	for k := range m.HookHistogram {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	hooks := make([]string, 0, len(kinds))
	for _, k := range kinds {
		hooks = append(hooks, fmt.Sprintf("%s=%d", k, m.HookHistogram[model.HookKind(k)]))
	}
	if len(hooks) > 0 {
		fmt.Fprintf(&b, "  %s\n", p.paint(mutedStyle, "hooks "+strings.Join(hooks, " ")))
	}

	flows := result.Flows()
	fmt.Fprintf(&b, "  %s\n", p.paint(mutedStyle, fmt.Sprintf(
		"flows containment=%d props=%d state=%d context=%d events=%d",
		len(flows.Containment), len(flows.Props), len(flows.State), len(flows.Context), len(flows.Events))))

	patterns := filterPatterns(result.Patterns, opts.MinConfidence)
	fmt.Fprintf(&b, "\n%s\n", p.paint(headingStyle, fmt.Sprintf("Patterns (%d)", len(patterns))))
	if len(patterns) == 0 {
		fmt.Fprintf(&b, "  %s\n", p.paint(mutedStyle, "none"))
	}
	for _, pat := range patterns {
		style := patternStyle
		if pat.Kind == model.PatternKindAntiPattern {
			style = antiStyle
		}
		fmt.Fprintf(&b, "  %s %s %s\n",
			p.paint(style, fmt.Sprintf("%-16s", pat.Name)),
			fmt.Sprintf("%.2f", pat.Confidence),
			pat.Description)
		if len(pat.ComponentIDs) > 1 {
			fmt.Fprintf(&b, "    %s\n", p.paint(mutedStyle, strings.Join(pat.ComponentIDs, ", ")))
		}
		for _, s := range pat.Suggestions {
			fmt.Fprintf(&b, "    %s\n", p.paint(mutedStyle, "- "+s))
		}
	}

	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.paint(headingStyle, fmt.Sprintf("Diagnostics (%d)", len(result.Diagnostics))))
		for _, d := range result.Diagnostics {
			style := warnStyle
			if d.Severity == model.SeverityError {
				style = errorStyle
			}
			subject := d.File
			if subject == "" {
				subject = "-"
			}
			fmt.Fprintf(&b, "  %s %s %s\n", p.paint(style, string(d.Severity)), subject, d.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// renderSnapshotList writes one line per snapshot.
func renderSnapshotList(w io.Writer, list []*snapshot.Metadata, styled bool) error {
	p := painter{styled: styled}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, p.paint(mutedStyle, "no snapshots"))
		return err
	}
	for _, m := range list {
		label := m.Label
		if label == "" {
			label = "-"
		}
		if _, err := fmt.Fprintf(w, "%s  %-20s %-16s components=%d patterns=%d\n",
			p.paint(titleStyle, m.ID), m.Project, label, m.ComponentCount, m.PatternCount); err != nil {
			return err
		}
	}
	return nil
}

// renderDiff writes a summary of d.
func renderDiff(w io.Writer, d *snapshot.Diff, styled bool) error {
	p := painter{styled: styled}
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", p.paint(titleStyle, fmt.Sprintf("%s..%s", d.BaseID, d.TargetID)))
	if d.IsEmpty() {
		fmt.Fprintf(&b, "  %s\n", p.paint(mutedStyle, "no changes"))
		_, err := io.WriteString(w, b.String())
		return err
	}
	for _, id := range d.ComponentsAdded {
		fmt.Fprintf(&b, "  %s %s\n", p.paint(patternStyle, "+"), id)
	}
	for _, id := range d.ComponentsRemoved {
		fmt.Fprintf(&b, "  %s %s\n", p.paint(antiStyle, "-"), id)
	}
	for _, c := range d.ComponentsModified {
		fmt.Fprintf(&b, "  %s %s (%s)\n", p.paint(warnStyle, "~"), c.ID, strings.Join(c.Changes, ", "))
	}
	for _, id := range d.PatternsAdded {
		fmt.Fprintf(&b, "  %s pattern %s\n", p.paint(antiStyle, "+"), id)
	}
	for _, id := range d.PatternsRemoved {
		fmt.Fprintf(&b, "  %s pattern %s\n", p.paint(patternStyle, "-"), id)
	}
	f := d.Flows
	fmt.Fprintf(&b, "  %s\n", p.paint(mutedStyle, fmt.Sprintf(
		"flows containment=%+d props=%+d state=%+d context=%+d events=%+d",
		f.Containment, f.Props, f.State, f.Context, f.Events)))
	fmt.Fprintf(&b, "  %d changes across %d files (ratio %.2f)\n",
		d.Summary.TotalChanges, d.Summary.FilesAffected, d.Summary.ChangeRatio)

	_, err := io.WriteString(w, b.String())
	return err
}
