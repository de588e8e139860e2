// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "math"

// PatternKind separates positive findings from problems.
type PatternKind string

const (
	PatternKindPattern     PatternKind = "pattern"
	PatternKindAntiPattern PatternKind = "anti-pattern"
)

// Pattern is one scored structural finding.
type Pattern struct {
	// ID is deterministic: rule name plus the subject, e.g.
	// "god-component:src/App.tsx#App".
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Kind PatternKind `json:"kind"`

	// Confidence is always within [0, 1].
	Confidence float64 `json:"confidence"`

	ComponentIDs []string `json:"component_ids"`
	Description  string   `json:"description"`
	Suggestions  []string `json:"suggestions"`
}

// ClampConfidence limits v to [0, 1]. NaN maps to 0.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Severity grades a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic codes.
const (
	CodeParseFailure = "parse_failure"
	CodeSyntaxError  = "syntax_error"
	CodeRuleFailure  = "rule_failure"
)

// Diagnostic is a non-fatal problem recorded during a run.
type Diagnostic struct {
	File     string   `json:"file,omitempty"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// Metrics summarizes one project.
type Metrics struct {
	ComponentCount int `json:"component_count"`

	// HookHistogram always carries every hook kind, zero or not.
	HookHistogram map[HookKind]int `json:"hook_histogram"`

	// MeanComplexity averages the unrounded complexity score.
	MeanComplexity float64 `json:"mean_complexity"`

	// MaxPropDepth is the longest containment chain, in components,
	// limited to the configured cap.
	MaxPropDepth int  `json:"max_prop_depth"`
	DepthCapped  bool `json:"depth_capped,omitempty"`

	// ContextHookUsages counts distinct (component, context) pairs.
	ContextHookUsages int `json:"context_hook_usages"`

	// ContainmentCycles counts cyclic groups of components.
	ContainmentCycles int `json:"containment_cycles"`
}

// NewHookHistogram returns a histogram with every kind set to zero.
func NewHookHistogram() map[HookKind]int {
	h := make(map[HookKind]int, len(AllHookKinds))
	for _, k := range AllHookKinds {
		h[k] = 0
	}
	return h
}

// Result is everything one analysis run hands to its consumers.
// It carries no timestamps or random values, so equal inputs produce
// byte-identical JSON.
type Result struct {
	Project      string            `json:"project"`
	Components   []Component       `json:"components"`
	Containment  []ContainmentEdge `json:"containment"`
	PropFlows    []PropFlow        `json:"prop_flows"`
	StateFlows   []StateFlow       `json:"state_flows"`
	ContextFlows []ContextFlow     `json:"context_flows"`
	EventFlows   []EventFlow       `json:"event_flows"`
	Patterns     []Pattern         `json:"patterns"`
	Metrics      Metrics           `json:"metrics"`
	Diagnostics  []Diagnostic      `json:"diagnostics"`
}

// Flows regroups the flow lists of r.
func (r *Result) Flows() Flows {
	return Flows{
		Containment: r.Containment,
		Props:       r.PropFlows,
		State:       r.StateFlows,
		Context:     r.ContextFlows,
		Events:      r.EventFlows,
	}
}

// Component looks up a component by ID.
func (r *Result) Component(id string) (*Component, bool) {
	for i := range r.Components {
		if r.Components[i].ID == id {
			return &r.Components[i], true
		}
	}
	return nil, false
}
