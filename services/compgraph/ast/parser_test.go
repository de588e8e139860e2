// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

const counterSource = `import React, { useState, useEffect } from 'react';
import { Button as PrimaryButton } from './Button';
import * as icons from './icons';
import type { Theme } from './theme';

interface CounterProps {
    label: string;
    initial?: number;
    onChange?: (value: number) => void;
}

export function Counter({ label, initial = 0, onChange }: CounterProps) {
    const [count, setCount] = useState(initial);
    useEffect(() => {
        onChange?.(count);
    }, [count, onChange]);
    useEffect(() => {
        document.title = label;
    });

    return (
        <div className="counter">
            <span>{label}</span>
            <PrimaryButton onClick={() => setCount(count + 1)} count={count} />
        </div>
    );
}

function formatCount(n: number): string {
    return String(n);
}
`

const closureSource = `import React, { memo, useContext } from 'react';

type CardProps = {
    title: string;
    footer?: React.ReactNode;
};

export const Card = memo(({ title, footer }: CardProps) => {
    const theme = useContext(ThemeContext);
    return <section className={theme.card}><h2>{title}</h2>{footer}</section>;
});

const Badge: React.FC<{ text: string }> = (props) => <span>{props.text}</span>;

const notAComponent = (a: number) => a * 2;
`

const classSource = `import React from 'react';

interface GreetingProps {
    name: string;
}

export class Greeting extends React.Component<GreetingProps> {
    render() {
        return <h1>Hello {this.name}</h1>;
    }
}

class Store extends EventEmitter {}
`

const providerSource = `import React, { createContext, useState } from 'react';

export const ThemeContext = createContext('light');

export function ThemeProvider({ children }: { children: React.ReactNode }) {
    const [theme, setTheme] = useState('light');
    return (
        <ThemeContext.Provider value={theme}>
            {children}
        </ThemeContext.Provider>
    );
}
`

func newTestParser(t *testing.T, opts ...ComponentParserOption) *ComponentParser {
	t.Helper()
	m, err := heuristics.NewDefaultMatcher(context.Background())
	if err != nil {
		t.Fatalf("NewDefaultMatcher: %v", err)
	}
	return NewComponentParser(m, opts...)
}

func mustParse(t *testing.T, p *ComponentParser, id, src string) *ParseResult {
	t.Helper()
	result, err := p.Parse(context.Background(), SourceFile{ID: id, Content: []byte(src)})
	if err != nil {
		t.Fatalf("Parse(%s): %v", id, err)
	}
	return result
}

func findComponent(t *testing.T, result *ParseResult, name string) model.Component {
	t.Helper()
	for _, c := range result.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %q not found; have %d components", name, len(result.Components))
	return model.Component{}
}

func TestComponentParser_FunctionComponent(t *testing.T) {
	p := newTestParser(t)
	result := mustParse(t, p, "src/Counter.tsx", counterSource)

	if len(result.Components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(result.Components))
	}

	c := findComponent(t, result, "Counter")
	if c.ID != "src/Counter.tsx#Counter" {
		t.Errorf("ID = %q", c.ID)
	}
	if c.Kind != model.ComponentKindFunction {
		t.Errorf("Kind = %q, want function", c.Kind)
	}
	if !c.Exported {
		t.Error("Counter should be exported")
	}
	if c.Children != nil {
		t.Errorf("parser must leave Children nil, got %v", c.Children)
	}

	t.Run("props", func(t *testing.T) {
		if len(c.Props) != 3 {
			t.Fatalf("expected 3 props, got %d: %+v", len(c.Props), c.Props)
		}
		label, _ := c.Prop("label")
		if !label.Required || label.Type != "string" {
			t.Errorf("label = %+v", label)
		}
		initial, _ := c.Prop("initial")
		if initial.Required {
			t.Error("initial should be optional")
		}
		if initial.Default == nil || *initial.Default != "0" {
			t.Errorf("initial default = %v, want 0", initial.Default)
		}
		onChange, _ := c.Prop("onChange")
		if !strings.Contains(onChange.Type, "=>") {
			t.Errorf("onChange type = %q", onChange.Type)
		}
	})

	t.Run("hooks", func(t *testing.T) {
		if len(c.Hooks) != 3 {
			t.Fatalf("expected 3 hooks, got %d", len(c.Hooks))
		}
		state := c.Hooks[0]
		if state.Kind != model.HookKindState || state.Binding != "count" || state.Setter != "setCount" {
			t.Errorf("state hook = %+v", state)
		}
		if state.Argument != "initial" {
			t.Errorf("state argument = %q, want initial", state.Argument)
		}
		if state.HasDependencyArray() {
			t.Error("useState(initial) has no dependency array")
		}

		withDeps := c.Hooks[1]
		if !reflect.DeepEqual(withDeps.Dependencies, []string{"count", "onChange"}) {
			t.Errorf("dependencies = %v", withDeps.Dependencies)
		}
		if c.Hooks[2].Dependencies != nil {
			t.Errorf("effect without array must have nil dependencies, got %v", c.Hooks[2].Dependencies)
		}
	})

	t.Run("elements", func(t *testing.T) {
		var names []string
		for _, el := range c.Elements {
			names = append(names, el.Name)
		}
		want := []string{"div", "span", "PrimaryButton"}
		if !reflect.DeepEqual(names, want) {
			t.Fatalf("elements = %v, want %v", names, want)
		}
		if !c.Elements[0].Intrinsic || c.Elements[2].Intrinsic {
			t.Error("intrinsic flags wrong")
		}
		attr, ok := c.Elements[2].Attribute("count")
		if !ok || attr.Value != "count" || !attr.Identifier {
			t.Errorf("count attribute = %+v", attr)
		}
		cls, _ := c.Elements[0].Attribute("className")
		if cls.Value != "counter" || cls.Identifier {
			t.Errorf("className attribute = %+v", cls)
		}
	})
}

func TestComponentParser_Imports(t *testing.T) {
	p := newTestParser(t)
	result := mustParse(t, p, "src/Counter.tsx", counterSource)

	got := make(map[string]model.ImportBinding)
	for _, imp := range result.Imports {
		got[imp.LocalName] = imp
	}

	if imp := got["PrimaryButton"]; imp.ImportedName != "Button" || imp.Module != "./Button" {
		t.Errorf("aliased import = %+v", imp)
	}
	if imp := got["React"]; imp.ImportedName != "default" {
		t.Errorf("default import = %+v", imp)
	}
	if imp := got["icons"]; imp.ImportedName != "*" {
		t.Errorf("namespace import = %+v", imp)
	}
	if _, ok := got["Theme"]; ok {
		t.Error("type-only import must be skipped")
	}
	for _, imp := range result.Imports {
		if imp.File != "src/Counter.tsx" {
			t.Errorf("import file = %q", imp.File)
		}
	}
}

func TestComponentParser_ClosureComponents(t *testing.T) {
	p := newTestParser(t)
	result := mustParse(t, p, "src/Card.tsx", closureSource)

	if len(result.Components) != 2 {
		t.Fatalf("expected Card and Badge, got %d", len(result.Components))
	}

	card := findComponent(t, result, "Card")
	if card.Kind != model.ComponentKindClosure {
		t.Errorf("Card kind = %q", card.Kind)
	}
	footer, ok := card.Prop("footer")
	if !ok || footer.Required || footer.Type != "React.ReactNode" {
		t.Errorf("footer = %+v", footer)
	}
	if len(card.Hooks) != 1 || card.Hooks[0].Kind != model.HookKindContext || card.Hooks[0].Argument != "ThemeContext" {
		t.Errorf("Card hooks = %+v", card.Hooks)
	}

	badge := findComponent(t, result, "Badge")
	if badge.Exported {
		t.Error("Badge is not exported")
	}
	if len(badge.Props) != 1 || badge.Props[0].Name != "text" {
		t.Errorf("Badge props from FC annotation = %+v", badge.Props)
	}
}

func TestComponentParser_ClassComponents(t *testing.T) {
	p := newTestParser(t)
	result := mustParse(t, p, "src/Greeting.tsx", classSource)

	if len(result.Components) != 1 {
		t.Fatalf("expected only Greeting, got %d", len(result.Components))
	}
	g := result.Components[0]
	if g.Kind != model.ComponentKindClass || g.Name != "Greeting" {
		t.Errorf("component = %s %s", g.Kind, g.Name)
	}
	if len(g.Props) != 1 || g.Props[0].Name != "name" || !g.Props[0].Required {
		t.Errorf("class props = %+v", g.Props)
	}
}

func TestComponentParser_SeparateExportStatements(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		component     string
		exported      bool
		defaultExport bool
	}{
		{
			name:          "default identifier",
			src:           "function Title(p: { text: string }) { return <h1>{p.text}</h1>; }\nexport default Title;\n",
			component:     "Title",
			exported:      true,
			defaultExport: true,
		},
		{
			name:          "default wrapped in memo",
			src:           "import { memo } from 'react';\nconst Chip = () => <span />;\nexport default memo(Chip);\n",
			component:     "Chip",
			exported:      true,
			defaultExport: true,
		},
		{
			name:      "named clause",
			src:       "function Subtitle() { return <h2 />; }\nfunction Caption() { return <small />; }\nexport { Subtitle, Caption as default };\n",
			component: "Subtitle",
			exported:  true,
		},
		{
			name:          "aliased as default",
			src:           "function Subtitle() { return <h2 />; }\nfunction Caption() { return <small />; }\nexport { Subtitle, Caption as default };\n",
			component:     "Caption",
			exported:      true,
			defaultExport: true,
		},
		{
			name:      "re-export from another module",
			src:       "function Other() { return <i />; }\nexport { Other } from './other';\n",
			component: "Other",
		},
		{
			name:      "not exported",
			src:       "function Hidden() { return <i />; }\nexport const version = 1;\n",
			component: "Hidden",
		},
	}

	p := newTestParser(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := mustParse(t, p, "src/Card.tsx", tc.src)
			c := findComponent(t, result, tc.component)
			if c.Exported != tc.exported || c.DefaultExport != tc.defaultExport {
				t.Errorf("%s: exported=%v default=%v, want %v %v",
					tc.component, c.Exported, c.DefaultExport, tc.exported, tc.defaultExport)
			}
		})
	}
}

func TestComponentParser_DefaultExportDeclaration(t *testing.T) {
	src := `export default function Page() { return <main />; }
export function Side() { return <aside />; }
`
	p := newTestParser(t)
	result := mustParse(t, p, "src/Page.tsx", src)

	page := findComponent(t, result, "Page")
	if !page.Exported || !page.DefaultExport {
		t.Errorf("Page exported=%v default=%v", page.Exported, page.DefaultExport)
	}
	side := findComponent(t, result, "Side")
	if !side.Exported || side.DefaultExport {
		t.Errorf("Side exported=%v default=%v", side.Exported, side.DefaultExport)
	}
}

func TestComponentParser_InterfaceExtends(t *testing.T) {
	src := `interface Base { id: string; label?: string }
interface Labelled { label: number; tone?: string }
interface P2 extends Base, Labelled { name: string }

export function Row(props: P2) { return <div>{props.name}</div>; }
`
	p := newTestParser(t)
	result := mustParse(t, p, "src/Row.tsx", src)

	row := findComponent(t, result, "Row")
	var names []string
	for _, prop := range row.Props {
		names = append(names, prop.Name)
	}
	want := []string{"name", "id", "label", "tone"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("props = %v, want %v", names, want)
	}
	label, _ := row.Prop("label")
	if label.Required || label.Type != "string" {
		t.Errorf("label should come from the first base: %+v", label)
	}
	id, _ := row.Prop("id")
	if !id.Required {
		t.Errorf("id = %+v", id)
	}
}

func TestComponentParser_InterfaceExtendsCycle(t *testing.T) {
	src := `interface A extends B { a: string }
interface B extends A { b: string }

export function Loop(props: A) { return <div />; }
`
	p := newTestParser(t)
	result := mustParse(t, p, "src/Loop.tsx", src)

	loop := findComponent(t, result, "Loop")
	if _, ok := loop.Prop("a"); !ok {
		t.Errorf("props = %+v", loop.Props)
	}
	if _, ok := loop.Prop("b"); !ok {
		t.Errorf("props = %+v", loop.Props)
	}
}

func TestComponentParser_JavaScript(t *testing.T) {
	src := `import React, { Component } from 'react';
const Row = require('./Row');

export default class Table extends Component {
    render() {
        return <table><Row /></table>;
    }
}

export const Cell = ({ value }) => <td>{value}</td>;
`
	p := newTestParser(t)
	result := mustParse(t, p, "src/Table.jsx", src)

	if result.Language != LanguageJavaScript {
		t.Errorf("language = %q", result.Language)
	}
	if len(result.Components) != 2 {
		t.Fatalf("expected Table and Cell, got %d", len(result.Components))
	}

	table := findComponent(t, result, "Table")
	if table.Kind != model.ComponentKindClass {
		t.Errorf("Table kind = %q", table.Kind)
	}
	cell := findComponent(t, result, "Cell")
	if len(cell.Props) != 0 {
		t.Errorf("untyped destructuring must not yield props, got %+v", cell.Props)
	}

	var required bool
	for _, imp := range result.Imports {
		if imp.LocalName == "Row" && imp.Module == "./Row" {
			required = true
		}
	}
	if !required {
		t.Error("require() binding not recorded")
	}
}

func TestComponentParser_ProvidedContexts(t *testing.T) {
	p := newTestParser(t)
	result := mustParse(t, p, "src/theme.tsx", providerSource)

	c := findComponent(t, result, "ThemeProvider")
	if !reflect.DeepEqual(c.ProvidedContexts, []string{"ThemeContext"}) {
		t.Errorf("ProvidedContexts = %v", c.ProvidedContexts)
	}
	children, ok := c.Prop("children")
	if !ok || children.Type != "React.ReactNode" {
		t.Errorf("inline object type prop = %+v", children)
	}
	if len(result.Components) != 1 {
		t.Errorf("createContext binding must not be a component, got %d", len(result.Components))
	}
}

func TestComponentParser_DependencyArrays(t *testing.T) {
	src := `export function Panel() {
    const [items, setItems] = useState([]);
    useEffect(() => {}, []);
    const total = useMemo(() => items.length, [items]);
    const ref = React.useRef(null);
    return <div>{total}</div>;
}
`
	p := newTestParser(t)
	c := findComponent(t, mustParse(t, p, "Panel.tsx", src), "Panel")

	if len(c.Hooks) != 3 {
		t.Fatalf("expected 3 hooks (member calls ignored), got %d", len(c.Hooks))
	}
	if c.Hooks[0].Dependencies != nil {
		t.Error("useState([]) must not be read as a dependency array")
	}
	if c.Hooks[1].Dependencies == nil || len(c.Hooks[1].Dependencies) != 0 {
		t.Errorf("empty array must be non-nil and empty, got %#v", c.Hooks[1].Dependencies)
	}
	if c.Hooks[2].Binding != "total" || !reflect.DeepEqual(c.Hooks[2].Dependencies, []string{"items"}) {
		t.Errorf("useMemo hook = %+v", c.Hooks[2])
	}
}

func TestComponentParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    SourceFile
		opts    []ComponentParserOption
		wantErr error
	}{
		{
			name:    "unsupported extension",
			file:    SourceFile{ID: "styles.css", Content: []byte("a {}")},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name:    "invalid utf8",
			file:    SourceFile{ID: "bad.tsx", Content: []byte{0xff, 0xfe, 0xfd}},
			wantErr: ErrInvalidContent,
		},
		{
			name:    "too large",
			file:    SourceFile{ID: "big.tsx", Content: []byte(strings.Repeat("x", 64))},
			opts:    []ComponentParserOption{WithMaxFileSize(32)},
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser(t, tt.opts...)
			_, err := p.Parse(context.Background(), tt.file)
			if !errors.Is(err, ErrParseFailure) {
				t.Fatalf("error %v does not wrap ErrParseFailure", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error %v does not wrap %v", err, tt.wantErr)
			}
		})
	}
}

func TestComponentParser_CanceledContext(t *testing.T) {
	p := newTestParser(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Parse(ctx, SourceFile{ID: "a.tsx", Content: []byte(counterSource)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestComponentParser_SyntaxErrorIsDiagnostic(t *testing.T) {
	src := `export function Ok() { return <div />; }
const broken = ;
`
	p := newTestParser(t)
	result := mustParse(t, p, "broken.tsx", src)

	if len(result.Diagnostics) == 0 || result.Diagnostics[0].Code != model.CodeSyntaxError {
		t.Fatalf("expected syntax diagnostic, got %+v", result.Diagnostics)
	}
	if result.Diagnostics[0].Severity != model.SeverityWarning {
		t.Errorf("severity = %q", result.Diagnostics[0].Severity)
	}
	findComponent(t, result, "Ok")
}

func TestComponentParser_Deterministic(t *testing.T) {
	p := newTestParser(t)
	first := mustParse(t, p, "src/Counter.tsx", counterSource)

	var wg sync.WaitGroup
	results := make([]*ParseResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := p.Parse(context.Background(), SourceFile{ID: "src/Counter.tsx", Content: []byte(counterSource)})
			if err == nil {
				results[i] = r
			}
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r == nil {
			t.Fatalf("concurrent parse %d failed", i)
		}
		if !reflect.DeepEqual(first, r) {
			t.Errorf("concurrent parse %d differs from sequential parse", i)
		}
	}
}

func TestComponentParser_MaxWalkDepth(t *testing.T) {
	var b strings.Builder
	b.WriteString("export function Deep() {\n  return ")
	for i := 0; i < 40; i++ {
		b.WriteString("<div>")
	}
	b.WriteString("<Leaf />")
	for i := 0; i < 40; i++ {
		b.WriteString("</div>")
	}
	b.WriteString(";\n}\n")

	p := newTestParser(t, WithMaxWalkDepth(20))
	result := mustParse(t, p, "deep.tsx", b.String())

	deep := findComponent(t, result, "Deep")
	for _, el := range deep.Elements {
		if el.Name == "Leaf" {
			t.Error("elements below the walk depth cap must be skipped")
		}
	}
	if len(deep.Elements) == 0 {
		t.Error("shallow elements should still be collected")
	}
}

func TestLanguageForPath(t *testing.T) {
	tests := map[string]Language{
		"a.tsx":     LanguageTSX,
		"a.TSX":     LanguageTSX,
		"b.ts":      LanguageTypeScript,
		"c.jsx":     LanguageJavaScript,
		"d.mjs":     LanguageJavaScript,
		"dir/e.cjs": LanguageJavaScript,
	}
	for path, want := range tests {
		got, ok := LanguageForPath(path)
		if !ok || got != want {
			t.Errorf("LanguageForPath(%q) = %q, %v", path, got, ok)
		}
	}
	if _, ok := LanguageForPath("README.md"); ok {
		t.Error("markdown must not be supported")
	}
}
