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
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	m, err := heuristics.NewDefaultMatcher(context.Background())
	require.NoError(t, err)
	return NewDefaultRegistry(m)
}

func component(id string) model.Component {
	file, name, _ := model.SplitComponentID(id)
	return model.Component{
		ID:       id,
		Name:     name,
		File:     file,
		Kind:     model.ComponentKindFunction,
		Props:    []model.PropSpec{},
		Hooks:    []model.StateHook{},
		Children: []string{},
	}
}

func patternsNamed(ps []model.Pattern, name string) []model.Pattern {
	var out []model.Pattern
	for _, p := range ps {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func TestDefaultRegistry_Order(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, []string{
		RuleGodComponent,
		RuleHookOveruse,
		RulePropDrilling,
		RuleCustomHook,
		RuleRenderProps,
		RuleContextProvider,
	}, r.Names())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, Input) ([]model.Pattern, error) { return nil, nil }

	require.NoError(t, r.Register(Rule{Name: "a", Evaluate: noop}))
	assert.ErrorIs(t, r.Register(Rule{Name: "a", Evaluate: noop}), ErrDuplicateRule)
	assert.ErrorIs(t, r.Register(Rule{Name: "", Evaluate: noop}), ErrInvalidRule)
	assert.ErrorIs(t, r.Register(Rule{Name: "b"}), ErrInvalidRule)
	assert.Equal(t, 1, r.Len())
}

func TestGodComponentAndHookOveruse(t *testing.T) {
	c := component("src/Dashboard.tsx#Dashboard")
	for i := 0; i < 12; i++ {
		c.Hooks = append(c.Hooks, model.StateHook{
			Name:    "useState",
			Kind:    model.HookKindState,
			Binding: fmt.Sprintf("v%d", i),
		})
	}
	require.Equal(t, 13, model.RoundedComplexity(&c))

	eval, err := newTestRegistry(t).Evaluate(context.Background(), Input{Components: []model.Component{c}})
	require.NoError(t, err)
	require.Empty(t, eval.Diagnostics)

	god := patternsNamed(eval.Patterns, RuleGodComponent)
	require.Len(t, god, 1)
	assert.InDelta(t, 13.0/15.0, god[0].Confidence, 1e-9)
	assert.Equal(t, "god-component:src/Dashboard.tsx#Dashboard", god[0].ID)
	assert.Equal(t, model.PatternKindAntiPattern, god[0].Kind)

	overuse := patternsNamed(eval.Patterns, RuleHookOveruse)
	require.Len(t, overuse, 1)
	assert.InDelta(t, 0.8, overuse[0].Confidence, 1e-9)

	assert.Len(t, eval.Patterns, 2)
	assert.Equal(t, RuleGodComponent, eval.Patterns[0].Name, "higher confidence sorts first")
}

func TestGodComponent_Boundary(t *testing.T) {
	c := component("a.tsx#A")
	for i := 0; i < 3; i++ {
		c.Hooks = append(c.Hooks, model.StateHook{Name: "useEffect", Kind: model.HookKindEffect})
	}
	// 1 + 3 + 6 = 10: not above the threshold.
	require.Equal(t, 10, model.RoundedComplexity(&c))

	patterns, err := godComponentRule(context.Background(), Input{Components: []model.Component{c}})
	require.NoError(t, err)
	assert.Empty(t, patterns)

	c.Props = append(c.Props, model.PropSpec{Name: "x"}, model.PropSpec{Name: "y"})
	// 10 + 0.5*2 = 11.
	patterns, err = godComponentRule(context.Background(), Input{Components: []model.Component{c}})
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.InDelta(t, 11.0/15.0, patterns[0].Confidence, 1e-9)
}

func TestPropDrilling(t *testing.T) {
	var comps []model.Component
	for _, name := range []string{"A", "B", "C", "D"} {
		c := component("src/" + name + ".tsx#" + name)
		c.Props = []model.PropSpec{{Name: "userId", Type: "string", Required: true}}
		comps = append(comps, c)
	}
	other := component("src/E.tsx#E")
	other.Props = []model.PropSpec{{Name: "title", Type: "string"}}
	comps = append(comps, other)

	eval, err := newTestRegistry(t).Evaluate(context.Background(), Input{Components: comps})
	require.NoError(t, err)

	drilling := patternsNamed(eval.Patterns, RulePropDrilling)
	require.Len(t, drilling, 1)
	assert.Equal(t, "prop-drilling:userId", drilling[0].ID)
	assert.InDelta(t, 0.4, drilling[0].Confidence, 1e-9)
	assert.Equal(t, []string{"src/A.tsx#A", "src/B.tsx#B", "src/C.tsx#C", "src/D.tsx#D"}, drilling[0].ComponentIDs)

	t.Run("three participants do not trigger", func(t *testing.T) {
		patterns, err := propDrillingRule(context.Background(), Input{Components: comps[:3]})
		require.NoError(t, err)
		assert.Empty(t, patterns)
	})

	t.Run("confidence saturates", func(t *testing.T) {
		var many []model.Component
		for i := 0; i < 9; i++ {
			c := component(fmt.Sprintf("f%d.tsx#C%d", i, i))
			c.Props = []model.PropSpec{{Name: "theme"}}
			many = append(many, c)
		}
		patterns, err := propDrillingRule(context.Background(), Input{Components: many})
		require.NoError(t, err)
		require.Len(t, patterns, 1)
		assert.Equal(t, 1.0, patterns[0].Confidence)
	})
}

func TestPatternRules(t *testing.T) {
	list := component("src/List.tsx#List")
	list.Props = []model.PropSpec{
		{Name: "items", Type: "Item[]", Required: true},
		{Name: "renderItem", Type: "(item: Item) => JSX.Element", Required: true},
		{Name: "empty", Type: "React.ReactNode"},
	}
	list.Hooks = []model.StateHook{
		{Name: "useVirtualList", Kind: model.HookKindCustom},
		{Name: "useState", Kind: model.HookKindState},
		{Name: "useVirtualList", Kind: model.HookKindCustom},
	}

	provider := component("src/Theme.tsx#ThemeProvider")
	consumer := component("src/Button.tsx#Button")
	consumer.Hooks = []model.StateHook{{Name: "useContext", Kind: model.HookKindContext, Argument: "ThemeContext"}}

	eval, err := newTestRegistry(t).Evaluate(context.Background(), Input{
		Components: []model.Component{consumer, list, provider},
	})
	require.NoError(t, err)

	custom := patternsNamed(eval.Patterns, RuleCustomHook)
	require.Len(t, custom, 2, "one record per custom hook call")
	assert.NotEqual(t, custom[0].ID, custom[1].ID)
	assert.Equal(t, 0.8, custom[0].Confidence)

	render := patternsNamed(eval.Patterns, RuleRenderProps)
	require.Len(t, render, 2)
	assert.Equal(t, "render-props:src/List.tsx#List:renderItem", render[0].ID)
	assert.Equal(t, "render-props:src/List.tsx#List:empty", render[1].ID)
	assert.Equal(t, 0.7, render[0].Confidence)

	providers := patternsNamed(eval.Patterns, RuleContextProvider)
	require.Len(t, providers, 2)
	assert.Equal(t, "context-provider:src/Button.tsx#Button", providers[0].ID)
	assert.Equal(t, "context-provider:src/Theme.tsx#ThemeProvider", providers[1].ID)

	// 0.8 patterns precede 0.7 patterns; ties keep registration order.
	var names []string
	for _, p := range eval.Patterns {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		RuleCustomHook, RuleCustomHook,
		RuleContextProvider, RuleContextProvider,
		RuleRenderProps, RuleRenderProps,
	}, names)
}

func TestEvaluate_FailingRulesAreIsolated(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Rule{Name: "boom", Kind: model.PatternKindPattern, Evaluate: func(context.Context, Input) ([]model.Pattern, error) {
		panic("unexpected nil")
	}})
	r.MustRegister(Rule{Name: "err", Kind: model.PatternKindPattern, Evaluate: func(context.Context, Input) ([]model.Pattern, error) {
		return []model.Pattern{{ID: "partial"}}, errors.New("bad input")
	}})
	r.MustRegister(Rule{Name: "ok", Kind: model.PatternKindPattern, Evaluate: func(context.Context, Input) ([]model.Pattern, error) {
		return []model.Pattern{
			{ID: "ok:high", Confidence: 7},
			{ID: "ok:nan", Confidence: math.NaN()},
			{ID: "ok:neg", Confidence: -0.5},
		}, nil
	}})

	eval, err := r.Evaluate(context.Background(), Input{})
	require.NoError(t, err)

	require.Len(t, eval.Diagnostics, 2)
	for _, d := range eval.Diagnostics {
		assert.Equal(t, model.CodeRuleFailure, d.Code)
		assert.Equal(t, model.SeverityError, d.Severity)
	}
	assert.Contains(t, eval.Diagnostics[0].Message, "boom")
	assert.Contains(t, eval.Diagnostics[1].Message, "bad input")

	require.Len(t, eval.Patterns, 3, "partial output of a failed rule is discarded")
	assert.Equal(t, "ok:high", eval.Patterns[0].ID)
	for _, p := range eval.Patterns {
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
		assert.Equal(t, "ok", p.Name, "name defaults to the rule name")
		assert.NotNil(t, p.ComponentIDs)
		assert.NotNil(t, p.Suggestions)
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRegistry(t).Evaluate(ctx, Input{Components: []model.Component{component("a.tsx#A")}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_EmptyInput(t *testing.T) {
	eval, err := newTestRegistry(t).Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	assert.NotNil(t, eval.Patterns)
	assert.Empty(t, eval.Patterns)
	assert.Empty(t, eval.Diagnostics)
}
