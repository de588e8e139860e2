// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

func newTestBuilder(t *testing.T, opts ...BuilderOption) *Builder {
	t.Helper()
	m, err := heuristics.NewDefaultMatcher(context.Background())
	require.NoError(t, err)
	return NewBuilder(m, opts...)
}

func comp(file, name string, props []model.PropSpec, hooks []model.StateHook, elements ...model.ElementRef) model.Component {
	if props == nil {
		props = []model.PropSpec{}
	}
	if hooks == nil {
		hooks = []model.StateHook{}
	}
	return model.Component{
		ID:       model.ComponentID(file, name),
		Name:     name,
		File:     file,
		Kind:     model.ComponentKindFunction,
		Exported: true,
		Props:    props,
		Hooks:    hooks,
		Elements: elements,
	}
}

func el(name string, attrs ...model.Attribute) model.ElementRef {
	intrinsic := name != "" && name[0] >= 'a' && name[0] <= 'z'
	return model.ElementRef{Name: name, Intrinsic: intrinsic, Attributes: attrs}
}

func ident(name, value string) model.Attribute {
	return model.Attribute{Name: name, Value: value, Identifier: true}
}

func build(t *testing.T, b *Builder, input BuildInput) *BuildResult {
	t.Helper()
	result, err := b.Build(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result.Graph)
	return result
}

func TestBuilder_ContainmentAndPropFlows(t *testing.T) {
	button := comp("src/Button.tsx", "Button", []model.PropSpec{
		{Name: "label", Type: "string", Required: true},
		{Name: "size", Type: "string"},
	}, nil)
	app := comp("src/App.tsx", "App", nil, nil,
		el("div"),
		el("Button", model.Attribute{Name: "label", Value: "Save"}, ident("variant", "kind"), model.Attribute{Name: "key", Value: "1"}, ident("onClick", "save")),
		el("Button", model.Attribute{Name: "label", Value: "Cancel"}),
		el("Missing"),
	)

	result := build(t, newTestBuilder(t), BuildInput{
		Components: []model.Component{button, app},
		Imports: []model.ImportBinding{
			{File: "src/App.tsx", LocalName: "Button", ImportedName: "Button", Module: "./Button"},
		},
	})

	flows := result.Graph.Flows()
	require.Len(t, flows.Containment, 1, "duplicate element instances collapse into one edge")
	assert.Equal(t, "src/App.tsx#App", flows.Containment[0].Parent)
	assert.Equal(t, "src/Button.tsx#Button", flows.Containment[0].Child)
	assert.Equal(t, 1, result.Stats.UnresolvedReferences)

	require.Len(t, flows.Props, 3)
	assert.Equal(t, "label", flows.Props[0].PropName)
	assert.True(t, flows.Props[0].Required)
	assert.Equal(t, model.DerivationStructural, flows.Props[0].Derivation)
	assert.Equal(t, "size", flows.Props[1].PropName)
	assert.False(t, flows.Props[1].Required)

	heuristic := flows.Props[2]
	assert.Equal(t, "variant", heuristic.PropName)
	assert.Equal(t, model.DerivationHeuristic, heuristic.Derivation)
	assert.Empty(t, heuristic.PropType)
	assert.False(t, heuristic.Required)

	appOut, ok := result.Graph.Component("src/App.tsx#App")
	require.True(t, ok)
	assert.Equal(t, []string{"src/Button.tsx#Button"}, appOut.Children)
	assert.Nil(t, app.Children, "input components must not be mutated")
	assert.Equal(t, []string{"src/App.tsx#App"}, result.Graph.ParentsOf("src/Button.tsx#Button"))
}

func TestBuilder_ResolutionOrder(t *testing.T) {
	localCard := comp("src/pages/Home.tsx", "Card", nil, nil)
	sharedCard := comp("src/ui/Card.tsx", "Card", nil, nil)
	otherCard := comp("src/legacy/Card.tsx", "Card", nil, nil)
	home := comp("src/pages/Home.tsx", "Home", nil, nil, el("Card"))
	profile := comp("src/pages/Profile.tsx", "Profile", nil, nil, el("Card"))
	settings := comp("src/pages/Settings.tsx", "Settings", nil, nil, el("Card"))

	result := build(t, newTestBuilder(t), BuildInput{
		Components: []model.Component{localCard, sharedCard, otherCard, home, profile, settings},
		Imports: []model.ImportBinding{
			{File: "src/pages/Profile.tsx", LocalName: "Card", ImportedName: "Card", Module: "../ui/Card"},
		},
	})

	g := result.Graph
	assert.Equal(t, []string{"src/pages/Home.tsx#Card"}, g.ChildrenOf("src/pages/Home.tsx#Home"), "same file wins")
	assert.Equal(t, []string{"src/ui/Card.tsx#Card"}, g.ChildrenOf("src/pages/Profile.tsx#Profile"), "import binding wins")
	assert.Empty(t, g.ChildrenOf("src/pages/Settings.tsx#Settings"), "ambiguous global name is dropped")
	assert.Equal(t, 1, result.Stats.AmbiguousReferences)
}

func TestBuilder_NamespaceAndDefaultImports(t *testing.T) {
	icon := comp("src/icons/index.tsx", "Icon", nil, nil)
	header := comp("src/layout/Header.tsx", "Header", nil, nil)
	page := comp("src/Page.tsx", "Page", nil, nil, el("icons.Icon"), el("TopBar"))

	result := build(t, newTestBuilder(t), BuildInput{
		Components: []model.Component{icon, header, page},
		Imports: []model.ImportBinding{
			{File: "src/Page.tsx", LocalName: "icons", ImportedName: "*", Module: "./icons"},
			{File: "src/Page.tsx", LocalName: "TopBar", ImportedName: "default", Module: "@/layout/Header"},
		},
	})

	assert.Equal(t,
		[]string{"src/icons/index.tsx#Icon", "src/layout/Header.tsx#Header"},
		result.Graph.ChildrenOf("src/Page.tsx#Page"))
}

func TestBuilder_ExternalImportShadowsProjectComponent(t *testing.T) {
	button := comp("src/ui/Button.tsx", "Button", []model.PropSpec{
		{Name: "kind", Type: "string", Required: true},
	}, nil)
	app := comp("src/App.tsx", "App", nil, nil,
		el("Button", model.Attribute{Name: "variant", Value: "text"}),
		el("Mui.Card"),
	)

	result := build(t, newTestBuilder(t), BuildInput{
		Components: []model.Component{button, app},
		Imports: []model.ImportBinding{
			{File: "src/App.tsx", LocalName: "Button", ImportedName: "Button", Module: "@mui/material"},
			{File: "src/App.tsx", LocalName: "Mui", ImportedName: "*", Module: "@mui/material"},
		},
	})

	flows := result.Graph.Flows()
	assert.Empty(t, flows.Containment, "a package import must not resolve to a project component")
	assert.Empty(t, flows.Props)
	assert.Empty(t, result.Graph.ParentsOf("src/ui/Button.tsx#Button"))
	assert.Equal(t, 2, result.Stats.UnresolvedReferences)
	assert.Zero(t, result.Stats.AmbiguousReferences)
}

func TestBuilder_DefaultImportUnderAnotherName(t *testing.T) {
	title := comp("src/Card.tsx", "Title", []model.PropSpec{{Name: "text", Type: "string", Required: true}}, nil)
	title.DefaultExport = true
	body := comp("src/Card.tsx", "Body", nil, nil)
	solo := comp("src/Solo.tsx", "Solo", nil, nil)
	solo.Exported = false
	page := comp("src/Page.tsx", "Page", nil, nil,
		el("Heading", model.Attribute{Name: "text", Value: "x"}),
		el("Alone"),
	)

	result := build(t, newTestBuilder(t), BuildInput{
		Components: []model.Component{title, body, solo, page},
		Imports: []model.ImportBinding{
			{File: "src/Page.tsx", LocalName: "Heading", ImportedName: "default", Module: "./Card"},
			{File: "src/Page.tsx", LocalName: "Alone", ImportedName: "default", Module: "./Solo"},
		},
	})

	assert.Equal(t,
		[]string{"src/Card.tsx#Title", "src/Solo.tsx#Solo"},
		result.Graph.ChildrenOf("src/Page.tsx#Page"))

	flows := result.Graph.Flows()
	require.Len(t, flows.Props, 1)
	assert.Equal(t, "text", flows.Props[0].PropName)
	assert.Equal(t, "src/Card.tsx#Title", flows.Props[0].To)
	assert.Equal(t, model.DerivationStructural, flows.Props[0].Derivation)
	assert.Zero(t, result.Stats.UnresolvedReferences)
}

func TestBuilder_MutualContainmentTerminates(t *testing.T) {
	a := comp("a.tsx", "A", []model.PropSpec{{Name: "fromB", Type: "string", Required: true}}, nil, el("B"))
	b := comp("b.tsx", "B", []model.PropSpec{{Name: "fromA", Type: "number", Required: true}}, nil, el("A"))

	result := build(t, newTestBuilder(t), BuildInput{Components: []model.Component{a, b}})

	flows := result.Graph.Flows()
	require.Len(t, flows.Containment, 2)
	require.Len(t, flows.Props, 2)
	assert.Equal(t, "a.tsx#A", flows.Props[0].From)
	assert.Equal(t, "fromA", flows.Props[0].PropName)
	assert.Equal(t, "b.tsx#B", flows.Props[1].From)
	assert.Equal(t, "fromB", flows.Props[1].PropName)

	depth := ContainmentDepth(result.Graph.Components(), DefaultMaxPropDepth)
	assert.Equal(t, 2, depth.Depth)
	assert.Equal(t, 1, depth.Cycles)
	assert.False(t, depth.Capped)
}

func TestBuilder_SelfContainment(t *testing.T) {
	tree := comp("tree.tsx", "TreeNode", []model.PropSpec{{Name: "node", Type: "Node", Required: true}}, nil, el("TreeNode"))

	result := build(t, newTestBuilder(t), BuildInput{Components: []model.Component{tree}})

	assert.Equal(t, []string{"tree.tsx#TreeNode"}, result.Graph.ChildrenOf("tree.tsx#TreeNode"))
	require.Len(t, result.Graph.Flows().Props, 1)

	depth := ContainmentDepth(result.Graph.Components(), 5)
	assert.Equal(t, 1, depth.Depth)
	assert.Equal(t, 1, depth.Cycles)
}

func TestBuilder_StateFlows(t *testing.T) {
	counter := comp("c.tsx", "Counter", nil, []model.StateHook{
		{Name: "useState", Kind: model.HookKindState, Binding: "count", Setter: "setCount"},
		{Name: "useEffect", Kind: model.HookKindEffect},
		{Name: "useReducer", Kind: model.HookKindReducer, Binding: "state"},
	},
		el("Display", ident("value", "count")),
		el("Controls", ident("onIncrement", "setCount"), ident("onReset", "handleCountReset")),
		el("Logger", ident("onLog", "handleSubmit")),
	)
	display := comp("c.tsx", "Display", nil, nil)
	controls := comp("c.tsx", "Controls", nil, nil)
	logger := comp("c.tsx", "Logger", nil, nil)

	result := build(t, newTestBuilder(t), BuildInput{Components: []model.Component{counter, display, controls, logger}})

	state := result.Graph.Flows().State
	require.Len(t, state, 2, "effect hooks own no state")

	count := state[0]
	assert.Equal(t, "c.tsx#Counter", count.Owner)
	assert.Equal(t, "count", count.StateName)
	assert.Equal(t, []string{"c.tsx#Counter", "c.tsx#Display"}, count.Readers)
	assert.Equal(t, []string{"c.tsx#Controls", "c.tsx#Counter"}, count.Writers)

	reducer := state[1]
	assert.Equal(t, "useReducer", reducer.HookName)
	assert.Equal(t, []string{"c.tsx#Counter"}, reducer.Readers)
	assert.Empty(t, reducer.Writers, "reducer without a bound dispatch has no writers")
}

func TestBuilder_ContextFlows(t *testing.T) {
	consumer := comp("x.tsx", "Toolbar", nil, []model.StateHook{
		{Name: "Theme", Kind: model.HookKindContext},
	})
	provider := comp("p.tsx", "ThemeProvider", nil, nil)

	t.Run("with provider", func(t *testing.T) {
		result := build(t, newTestBuilder(t), BuildInput{Components: []model.Component{consumer, provider}})
		ctxFlows := result.Graph.Flows().Context
		require.Len(t, ctxFlows, 1)
		assert.Equal(t, "Theme", ctxFlows[0].ContextName)
		assert.Equal(t, "p.tsx#ThemeProvider", ctxFlows[0].ProviderID)
		assert.Equal(t, []string{"x.tsx#Toolbar"}, ctxFlows[0].ConsumerIDs)
	})

	t.Run("without provider", func(t *testing.T) {
		result := build(t, newTestBuilder(t), BuildInput{Components: []model.Component{consumer}})
		assert.Empty(t, result.Graph.Flows().Context)
		assert.Equal(t, 1, result.Stats.UnresolvedContexts)

		c, ok := result.Graph.Component("x.tsx#Toolbar")
		require.True(t, ok)
		assert.Len(t, c.Hooks, 1, "hook fact stays on the consumer")
	})

	t.Run("provider via rendered Provider element", func(t *testing.T) {
		shell := comp("s.tsx", "AppShell", nil, nil)
		shell.ProvidedContexts = []string{"AuthContext"}
		user := comp("u.tsx", "UserMenu", nil, []model.StateHook{
			{Name: "useContext", Kind: model.HookKindContext, Argument: "AuthContext"},
		})
		result := build(t, newTestBuilder(t), BuildInput{Components: []model.Component{shell, user}})
		ctxFlows := result.Graph.Flows().Context
		require.Len(t, ctxFlows, 1)
		assert.Equal(t, "Auth", ctxFlows[0].ContextName)
		assert.Equal(t, "s.tsx#AppShell", ctxFlows[0].ProviderID)
	})
}

func TestBuilder_EventFlows(t *testing.T) {
	form := comp("f.tsx", "Form", nil, nil,
		el("form", ident("onSubmit", "handleSubmit")),
		el("Field", ident("onChange", "handleChange")),
	)
	page := comp("p.tsx", "Page", nil, nil, el("Field", ident("onChange", "track")))
	field := comp("fld.tsx", "Field", nil, nil)

	result := build(t, newTestBuilder(t), BuildInput{Components: []model.Component{form, page, field}})

	events := result.Graph.Flows().Events
	require.Len(t, events, 2)

	assert.Equal(t, "f.tsx#Form", events[0].Source)
	assert.Equal(t, "onSubmit", events[0].EventType)
	assert.Equal(t, []string{"f.tsx#Form"}, events[0].HandlerIDs)

	assert.Equal(t, "fld.tsx#Field", events[1].Source)
	assert.Equal(t, "onChange", events[1].EventType)
	assert.Equal(t, []string{"f.tsx#Form", "p.tsx#Page"}, events[1].HandlerIDs)
}

func TestBuilder_Deterministic(t *testing.T) {
	a := comp("a.tsx", "A", []model.PropSpec{{Name: "x", Type: "string", Required: true}}, nil, el("B", ident("y", "y")), el("C"))
	b := comp("b.tsx", "B", []model.PropSpec{{Name: "z", Type: "number"}}, nil, el("C"))
	c := comp("c.tsx", "C", nil, []model.StateHook{{Name: "useState", Kind: model.HookKindState, Binding: "open"}})

	builder := newTestBuilder(t)
	first := build(t, builder, BuildInput{Components: []model.Component{a, b, c}})
	second := build(t, builder, BuildInput{Components: []model.Component{c, b, a}})

	j1, err := json.Marshal(struct {
		C []model.Component
		F model.Flows
	}{first.Graph.Components(), first.Graph.Flows()})
	require.NoError(t, err)
	j2, err := json.Marshal(struct {
		C []model.Component
		F model.Flows
	}{second.Graph.Components(), second.Graph.Flows()})
	require.NoError(t, err)

	assert.JSONEq(t, string(j1), string(j2))
	assert.Equal(t, string(j1), string(j2), "output must be byte-identical regardless of input order")
}

func TestBuilder_EmptyInput(t *testing.T) {
	result := build(t, newTestBuilder(t), BuildInput{})

	assert.Equal(t, 0, result.Graph.ComponentCount())
	flows := result.Graph.Flows()
	assert.NotNil(t, flows.Containment)
	assert.NotNil(t, flows.Props)
	assert.Empty(t, flows.Events)
	assert.Equal(t, DepthResult{}, ContainmentDepth(nil, 10))
}

func TestBuilder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestBuilder(t).Build(ctx, BuildInput{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_ProgressCallback(t *testing.T) {
	var phases []ProgressPhase
	b := newTestBuilder(t, WithProgressCallback(func(p BuildProgress) {
		phases = append(phases, p.Phase)
	}))
	build(t, b, BuildInput{Components: []model.Component{comp("a.tsx", "A", nil, nil)}})

	assert.Equal(t, []ProgressPhase{
		ProgressPhaseIndexing,
		ProgressPhaseContainment,
		ProgressPhaseFlows,
		ProgressPhaseFinalizing,
	}, phases)
	assert.Equal(t, "containment", ProgressPhaseContainment.String())
}

func TestContainmentDepth_Cap(t *testing.T) {
	var chain []model.Component
	for i := 0; i < 6; i++ {
		c := comp("chain.tsx", string(rune('A'+i)), nil, nil)
		if i < 5 {
			c.Children = []string{model.ComponentID("chain.tsx", string(rune('A'+i+1)))}
		}
		chain = append(chain, c)
	}

	assert.Equal(t, DepthResult{Depth: 6}, ContainmentDepth(chain, 10))
	assert.Equal(t, DepthResult{Depth: 4, Capped: true}, ContainmentDepth(chain, 4))
}

func TestMatchesImportPath(t *testing.T) {
	tests := []struct {
		file, module, importer string
		want                   bool
	}{
		{"src/Button.tsx", "./Button", "src/App.tsx", true},
		{"src/ui/Button.tsx", "../ui/Button", "src/pages/Home.tsx", true},
		{"src/ui/index.tsx", "./ui", "src/App.tsx", true},
		{"src/ui/Button.tsx", "@/ui/Button", "src/App.tsx", true},
		{"src/my_ui/Button.tsx", "ui/Button", "src/App.tsx", false},
		{"src/Button.tsx", "./Button.tsx", "src/App.tsx", true},
		{"src/Button.tsx", "react", "src/App.tsx", false},
		{"src/ui/Button.tsx", "@mui/material", "src/App.tsx", false},
		{"src/Button.tsx", "", "src/App.tsx", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesImportPath(tt.file, tt.module, tt.importer), "%s <- %s", tt.file, tt.module)
	}
}
