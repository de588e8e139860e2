// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Component change kinds reported in ComponentChange.Changes.
const (
	ChangeKind     = "kind_changed"
	ChangeProps    = "props_changed"
	ChangeHooks    = "hooks_changed"
	ChangeChildren = "children_changed"
	ChangeMoved    = "moved"
)

// Diff lists what changed between two results.
type Diff struct {
	BaseID   string `json:"base_id"`
	TargetID string `json:"target_id"`

	ComponentsAdded    []string          `json:"components_added"`
	ComponentsRemoved  []string          `json:"components_removed"`
	ComponentsModified []ComponentChange `json:"components_modified"`

	PatternsAdded   []string `json:"patterns_added"`
	PatternsRemoved []string `json:"patterns_removed"`

	// Flows holds target count minus base count per flow kind.
	Flows FlowDelta `json:"flows"`

	Summary DiffSummary `json:"summary"`
}

// ComponentChange describes one component present in both results.
type ComponentChange struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Changes []string `json:"changes"`
}

// FlowDelta is the signed change in flow counts.
type FlowDelta struct {
	Containment int `json:"containment"`
	Props       int `json:"props"`
	State       int `json:"state"`
	Context     int `json:"context"`
	Events      int `json:"events"`
}

// DiffSummary aggregates a Diff.
type DiffSummary struct {
	// TotalChanges counts added, removed and modified components plus
	// added and removed patterns.
	TotalChanges int `json:"total_changes"`

	// FilesAffected counts distinct files of changed components.
	FilesAffected int `json:"files_affected"`

	// ChangeRatio is changed components over the larger component count.
	ChangeRatio float64 `json:"change_ratio"`
}

// Compare computes the differences between base and target.
//
// Description:
//
//	Components are matched by ID, so a component moved to another file
//	shows as one removal and one addition. A matched component is modified
//	when its kind, props, hooks, children or start line differ. Patterns
//	are matched by ID. All lists are sorted.
//
// Outputs:
//
//	*Diff - The differences. Never nil on success.
//	error - Non-nil if either result is nil.
//
// Thread Safety: Pure function.
func Compare(base, target *model.Result, baseID, targetID string) (*Diff, error) {
	if base == nil {
		return nil, fmt.Errorf("base result must not be nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target result must not be nil")
	}

	d := &Diff{
		BaseID:             baseID,
		TargetID:           targetID,
		ComponentsAdded:    []string{},
		ComponentsRemoved:  []string{},
		ComponentsModified: []ComponentChange{},
		PatternsAdded:      []string{},
		PatternsRemoved:    []string{},
	}

	baseComponents := indexComponents(base.Components)
	targetComponents := indexComponents(target.Components)
	files := make(map[string]struct{})

	for id, tc := range targetComponents {
		bc, ok := baseComponents[id]
		if !ok {
			d.ComponentsAdded = append(d.ComponentsAdded, id)
			files[tc.File] = struct{}{}
			continue
		}
		if changes := componentChanges(bc, tc); len(changes) > 0 {
			d.ComponentsModified = append(d.ComponentsModified, ComponentChange{ID: id, Name: tc.Name, Changes: changes})
			files[tc.File] = struct{}{}
		}
	}
	for id, bc := range baseComponents {
		if _, ok := targetComponents[id]; !ok {
			d.ComponentsRemoved = append(d.ComponentsRemoved, id)
			files[bc.File] = struct{}{}
		}
	}

	basePatterns := patternIDs(base.Patterns)
	targetPatterns := patternIDs(target.Patterns)
	for id := range targetPatterns {
		if _, ok := basePatterns[id]; !ok {
			d.PatternsAdded = append(d.PatternsAdded, id)
		}
	}
	for id := range basePatterns {
		if _, ok := targetPatterns[id]; !ok {
			d.PatternsRemoved = append(d.PatternsRemoved, id)
		}
	}

	sort.Strings(d.ComponentsAdded)
	sort.Strings(d.ComponentsRemoved)
	sort.Strings(d.PatternsAdded)
	sort.Strings(d.PatternsRemoved)
	sort.Slice(d.ComponentsModified, func(i, j int) bool {
		return d.ComponentsModified[i].ID < d.ComponentsModified[j].ID
	})

	d.Flows = FlowDelta{
		Containment: len(target.Containment) - len(base.Containment),
		Props:       len(target.PropFlows) - len(base.PropFlows),
		State:       len(target.StateFlows) - len(base.StateFlows),
		Context:     len(target.ContextFlows) - len(base.ContextFlows),
		Events:      len(target.EventFlows) - len(base.EventFlows),
	}

	changed := len(d.ComponentsAdded) + len(d.ComponentsRemoved) + len(d.ComponentsModified)
	total := max(len(baseComponents), len(targetComponents))
	ratio := 0.0
	if total > 0 {
		ratio = float64(changed) / float64(total)
	}
	d.Summary = DiffSummary{
		TotalChanges:  changed + len(d.PatternsAdded) + len(d.PatternsRemoved),
		FilesAffected: len(files),
		ChangeRatio:   ratio,
	}
	return d, nil
}

// IsEmpty reports whether the diff records no change at all.
func (d *Diff) IsEmpty() bool {
	return d.Summary.TotalChanges == 0 && d.Flows == FlowDelta{}
}

func indexComponents(cs []model.Component) map[string]*model.Component {
	out := make(map[string]*model.Component, len(cs))
	for i := range cs {
		out[cs[i].ID] = &cs[i]
	}
	return out
}

func patternIDs(ps []model.Pattern) map[string]struct{} {
	out := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		out[p.ID] = struct{}{}
	}
	return out
}

// componentChanges returns the change kinds between two versions of a
// component, in a fixed order.
func componentChanges(base, target *model.Component) []string {
	var changes []string
	if base.Kind != target.Kind {
		changes = append(changes, ChangeKind)
	}
	if !reflect.DeepEqual(normalizeProps(base.Props), normalizeProps(target.Props)) {
		changes = append(changes, ChangeProps)
	}
	if !sameHooks(base.Hooks, target.Hooks) {
		changes = append(changes, ChangeHooks)
	}
	if !reflect.DeepEqual(normalizeStrings(base.Children), normalizeStrings(target.Children)) {
		changes = append(changes, ChangeChildren)
	}
	if base.Span.StartLine != target.Span.StartLine {
		changes = append(changes, ChangeMoved)
	}
	return changes
}

// sameHooks compares hook sequences ignoring source positions.
func sameHooks(a, b []model.StateHook) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Name != y.Name || x.Kind != y.Kind || x.Binding != y.Binding ||
			x.Setter != y.Setter || x.Argument != y.Argument {
			return false
		}
	}
	return true
}

func normalizeProps(ps []model.PropSpec) []model.PropSpec {
	if len(ps) == 0 {
		return nil
	}
	return ps
}

func normalizeStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
