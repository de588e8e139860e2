// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Built-in rule names, in registration order.
const (
	RuleGodComponent    = "god-component"
	RuleHookOveruse     = "hook-overuse"
	RulePropDrilling    = "prop-drilling"
	RuleCustomHook      = "custom-hook"
	RuleRenderProps     = "render-props"
	RuleContextProvider = "context-provider"
)

// Thresholds and scales of the built-in rules.
const (
	// GodComponentThreshold is exceeded by rounded complexity to trigger.
	GodComponentThreshold = 10
	godComponentScale     = 15.0

	// HookOveruseThreshold is exceeded by the hook count to trigger.
	HookOveruseThreshold = 8
	hookOveruseScale     = 15.0

	// PropDrillingThreshold is exceeded by distinct participants to trigger.
	PropDrillingThreshold = 3
	propDrillingOffset    = 2.0
	propDrillingScale     = 5.0

	customHookConfidence      = 0.8
	renderPropsConfidence     = 0.7
	contextProviderConfidence = 0.8
)

// NewDefaultRegistry returns a registry with the six built-in rules.
//
// Inputs:
//
//	matcher - Name heuristics used by render-props and context-provider.
//
// Outputs:
//
//	*Registry - Rules registered in a fixed order.
func NewDefaultRegistry(matcher heuristics.Matcher) *Registry {
	r := NewRegistry()
	r.MustRegister(Rule{Name: RuleGodComponent, Kind: model.PatternKindAntiPattern, Evaluate: godComponentRule})
	r.MustRegister(Rule{Name: RuleHookOveruse, Kind: model.PatternKindAntiPattern, Evaluate: hookOveruseRule})
	r.MustRegister(Rule{Name: RulePropDrilling, Kind: model.PatternKindAntiPattern, Evaluate: propDrillingRule})
	r.MustRegister(Rule{Name: RuleCustomHook, Kind: model.PatternKindPattern, Evaluate: customHookRule})
	r.MustRegister(Rule{Name: RuleRenderProps, Kind: model.PatternKindPattern, Evaluate: renderPropsRule(matcher)})
	r.MustRegister(Rule{Name: RuleContextProvider, Kind: model.PatternKindPattern, Evaluate: contextProviderRule(matcher)})
	return r
}

func patternID(rule string, parts ...string) string {
	id := rule
	for _, p := range parts {
		id += ":" + p
	}
	return id
}

// godComponentRule flags components whose rounded complexity exceeds the
// threshold.
func godComponentRule(ctx context.Context, in Input) ([]model.Pattern, error) {
	var out []model.Pattern
	for i := range in.Components {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &in.Components[i]
		x := model.RoundedComplexity(c)
		if x <= GodComponentThreshold {
			continue
		}
		out = append(out, model.Pattern{
			ID:           patternID(RuleGodComponent, c.ID),
			Name:         RuleGodComponent,
			Kind:         model.PatternKindAntiPattern,
			Confidence:   math.Min(float64(x)/godComponentScale, 1),
			ComponentIDs: []string{c.ID},
			Description: fmt.Sprintf(
				"%s has complexity %d (%d props, %d hooks, %d effects, %d custom hooks, %d children)",
				c.Name, x, len(c.Props), len(c.Hooks),
				c.HookCount(model.HookKindEffect), c.HookCount(model.HookKindCustom), len(c.Children)),
			Suggestions: []string{
				"Split the component into smaller components with one responsibility each",
				"Move effect and data logic into custom hooks",
			},
		})
	}
	return out, nil
}

// hookOveruseRule flags components calling more hooks than the threshold.
func hookOveruseRule(ctx context.Context, in Input) ([]model.Pattern, error) {
	var out []model.Pattern
	for i := range in.Components {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &in.Components[i]
		h := len(c.Hooks)
		if h <= HookOveruseThreshold {
			continue
		}
		out = append(out, model.Pattern{
			ID:           patternID(RuleHookOveruse, c.ID),
			Name:         RuleHookOveruse,
			Kind:         model.PatternKindAntiPattern,
			Confidence:   math.Min(float64(h)/hookOveruseScale, 1),
			ComponentIDs: []string{c.ID},
			Description:  fmt.Sprintf("%s calls %d hooks", c.Name, h),
			Suggestions: []string{
				"Group related state into a reducer",
				"Extract cohesive hook sequences into custom hooks",
			},
		})
	}
	return out, nil
}

// propDrillingRule flags prop names declared by more than the threshold
// number of components. Participants are counted project-wide by exact
// name, so unrelated components sharing a common prop name also count.
func propDrillingRule(ctx context.Context, in Input) ([]model.Pattern, error) {
	holders := make(map[string]map[string]bool)
	for i := range in.Components {
		c := &in.Components[i]
		for _, p := range c.Props {
			if holders[p.Name] == nil {
				holders[p.Name] = make(map[string]bool)
			}
			holders[p.Name][c.ID] = true
		}
	}

	names := make([]string, 0, len(holders))
	for name := range holders {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []model.Pattern
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := len(holders[name])
		if n <= PropDrillingThreshold {
			continue
		}
		ids := make([]string, 0, n)
		for id := range holders[name] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		out = append(out, model.Pattern{
			ID:           patternID(RulePropDrilling, name),
			Name:         RulePropDrilling,
			Kind:         model.PatternKindAntiPattern,
			Confidence:   math.Min((float64(n)-propDrillingOffset)/propDrillingScale, 1),
			ComponentIDs: ids,
			Description: fmt.Sprintf(
				"prop %q is declared by %d components (matched by name across the project; the components may not share a render path)",
				name, n),
			Suggestions: []string{
				"Provide the value through a context",
				"Compose children so intermediate components do not forward the prop",
			},
		})
	}
	return out, nil
}

// customHookRule reports every custom hook call.
func customHookRule(ctx context.Context, in Input) ([]model.Pattern, error) {
	var out []model.Pattern
	for i := range in.Components {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &in.Components[i]
		for j, h := range c.Hooks {
			if h.Kind != model.HookKindCustom {
				continue
			}
			out = append(out, model.Pattern{
				ID:           patternID(RuleCustomHook, c.ID, h.Name, fmt.Sprint(j)),
				Name:         RuleCustomHook,
				Kind:         model.PatternKindPattern,
				Confidence:   customHookConfidence,
				ComponentIDs: []string{c.ID},
				Description:  fmt.Sprintf("%s uses custom hook %s", c.Name, h.Name),
			})
		}
	}
	return out, nil
}

// renderPropsRule reports props that take render functions or node content.
func renderPropsRule(matcher heuristics.Matcher) RuleFunc {
	return func(ctx context.Context, in Input) ([]model.Pattern, error) {
		var out []model.Pattern
		for i := range in.Components {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			c := &in.Components[i]
			for _, p := range c.Props {
				if !matcher.IsRenderProp(p) {
					continue
				}
				out = append(out, model.Pattern{
					ID:           patternID(RuleRenderProps, c.ID, p.Name),
					Name:         RuleRenderProps,
					Kind:         model.PatternKindPattern,
					Confidence:   renderPropsConfidence,
					ComponentIDs: []string{c.ID},
					Description:  fmt.Sprintf("%s accepts render prop %s", c.Name, p.Name),
				})
			}
		}
		return out, nil
	}
}

// contextProviderRule reports components marked as providers by name or by
// rendering X.Provider, and components that consume a context.
func contextProviderRule(matcher heuristics.Matcher) RuleFunc {
	return func(ctx context.Context, in Input) ([]model.Pattern, error) {
		var out []model.Pattern
		for i := range in.Components {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			c := &in.Components[i]
			provides := matcher.IsProvider(c.Name) || len(c.ProvidedContexts) > 0
			consumes := c.HookCount(model.HookKindContext) > 0
			if !provides && !consumes {
				continue
			}

			desc := fmt.Sprintf("%s consumes a context", c.Name)
			if provides {
				desc = fmt.Sprintf("%s provides a context", c.Name)
			}
			out = append(out, model.Pattern{
				ID:           patternID(RuleContextProvider, c.ID),
				Name:         RuleContextProvider,
				Kind:         model.PatternKindPattern,
				Confidence:   contextProviderConfidence,
				ComponentIDs: []string{c.ID},
				Description:  desc,
			})
		}
		return out, nil
	}
}
