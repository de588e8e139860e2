// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the value types shared by every stage of the
// component graph engine: extracted components, their props and hooks,
// the derived flow records, scored patterns and project metrics.
//
// All types are plain values with JSON tags. Nothing in this package holds
// locks or references to parser or graph internals, so a Result can be
// serialized, cached and compared freely.
package model

import (
	"fmt"
	"strings"
)

// IDSeparator joins a file ID and a component name into a component ID.
const IDSeparator = "#"

// ComponentKind identifies the construct a component was recognized from.
type ComponentKind string

const (
	// ComponentKindFunction is a named top-level function that renders markup.
	ComponentKindFunction ComponentKind = "function"

	// ComponentKindClosure is a top-level binding to an arrow function or
	// function expression that renders markup.
	ComponentKindClosure ComponentKind = "closure"

	// ComponentKindClass is a class extending a known component base.
	ComponentKindClass ComponentKind = "class"
)

// HookKind classifies a hook call by its callee name.
type HookKind string

const (
	HookKindState   HookKind = "state"
	HookKindReducer HookKind = "reducer"
	HookKindEffect  HookKind = "effect"
	HookKindContext HookKind = "context"
	HookKindOther   HookKind = "other"
	HookKindCustom  HookKind = "custom"
)

// AllHookKinds lists every hook kind in a fixed order.
var AllHookKinds = []HookKind{
	HookKindState,
	HookKindReducer,
	HookKindEffect,
	HookKindContext,
	HookKindOther,
	HookKindCustom,
}

// IsStateful reports whether hooks of this kind own a piece of state.
func (k HookKind) IsStateful() bool {
	return k == HookKindState || k == HookKindReducer
}

// SourceSpan locates an extracted fact in its file.
//
// Lines are 1-based and columns are 0-based, matching tree-sitter points
// shifted by one row.
type SourceSpan struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// String returns "file:line:col".
func (s SourceSpan) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
}

// PropSpec describes one declared prop of a component.
type PropSpec struct {
	// Name is the prop key as declared.
	Name string `json:"name"`

	// Type is the declared type text, kept opaque. Empty when the
	// declaration has no annotation.
	Type string `json:"type"`

	// Required is false when the declaration carries the optional marker.
	Required bool `json:"required"`

	// Default is the source text of a destructuring default, if any.
	Default *string `json:"default,omitempty"`
}

// StateHook is one hook call found inside a component body.
type StateHook struct {
	// Name is the callee identifier, e.g. "useState".
	Name string `json:"name"`

	// Kind is resolved from Name alone.
	Kind HookKind `json:"kind"`

	// Binding is the first identifier the call result is bound to
	// ("count" in `const [count, setCount] = useState(0)`).
	Binding string `json:"binding,omitempty"`

	// Setter is the second array-destructured identifier, if any.
	Setter string `json:"setter,omitempty"`

	// Argument is the first identifier argument ("ThemeContext" in
	// `useContext(ThemeContext)`).
	Argument string `json:"argument,omitempty"`

	// Dependencies holds the identifiers of a trailing array literal.
	// A nil slice means the call had no dependency array; an empty,
	// non-nil slice means the array was present and empty.
	Dependencies []string `json:"dependencies"`

	Span SourceSpan `json:"span"`
}

// HasDependencyArray reports whether the call passed a dependency array.
func (h StateHook) HasDependencyArray() bool {
	return h.Dependencies != nil
}

// Attribute is one JSX attribute on a rendered element.
type Attribute struct {
	Name string `json:"name"`

	// Value is the identifier or literal text of the attribute value.
	// Empty for boolean shorthand attributes.
	Value string `json:"value,omitempty"`

	// Identifier is true when Value is a bare identifier expression.
	Identifier bool `json:"identifier,omitempty"`
}

// ElementRef is a markup element rendered by a component.
type ElementRef struct {
	// Name is the element name as written ("Button", "ThemeContext.Provider", "div").
	Name string `json:"name"`

	// Intrinsic is true for lower-case host elements.
	Intrinsic bool `json:"intrinsic,omitempty"`

	Attributes []Attribute `json:"attributes,omitempty"`
	Span       SourceSpan  `json:"span"`
}

// Attribute returns the attribute with the given name.
func (e ElementRef) Attribute(name string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// ImportBinding is one local name introduced by an ES import.
type ImportBinding struct {
	// File is the ID of the importing file.
	File string `json:"file"`

	// LocalName is the name used inside File.
	LocalName string `json:"local_name"`

	// ImportedName is the exported name in the source module, or "default".
	ImportedName string `json:"imported_name"`

	// Module is the import specifier, e.g. "./Button".
	Module string `json:"module"`
}

// Component is a recognized UI-producing unit.
//
// Components are created by the parser with nil Children. The assembler
// returns fresh copies with Children resolved; a Component value is never
// modified after the phase that produced it.
type Component struct {
	// ID is File + "#" + Name. Unique within one analysis run.
	ID string `json:"id"`

	Name     string        `json:"name"`
	File     string        `json:"file"`
	Kind     ComponentKind `json:"kind"`
	Exported bool          `json:"exported,omitempty"`

	// DefaultExport is set for `export default` declarations and for
	// components named by `export default X` or `export { X as default }`.
	DefaultExport bool `json:"default_export,omitempty"`

	Props []PropSpec  `json:"props"`
	Hooks []StateHook `json:"hooks"`

	// Children holds IDs of resolved child components, sorted.
	Children []string `json:"children"`

	// Elements are the raw markup references found in the body.
	Elements []ElementRef `json:"elements,omitempty"`

	// ProvidedContexts names context objects rendered as X.Provider.
	ProvidedContexts []string `json:"provided_contexts,omitempty"`

	Span SourceSpan `json:"span"`
}

// ComponentID builds the ID for a component named name in file fileID.
func ComponentID(fileID, name string) string {
	return fileID + IDSeparator + name
}

// SplitComponentID reverses ComponentID. File IDs may themselves contain
// the separator, so the split happens at the last occurrence.
func SplitComponentID(id string) (fileID, name string, ok bool) {
	i := strings.LastIndex(id, IDSeparator)
	if i < 0 {
		return "", "", false
	}
	return id[:i], id[i+len(IDSeparator):], true
}

// Prop returns the declared prop with the given name.
func (c *Component) Prop(name string) (PropSpec, bool) {
	for _, p := range c.Props {
		if p.Name == name {
			return p, true
		}
	}
	return PropSpec{}, false
}

// HookCount returns the number of hooks of the given kind.
func (c *Component) HookCount(kind HookKind) int {
	n := 0
	for _, h := range c.Hooks {
		if h.Kind == kind {
			n++
		}
	}
	return n
}

// WithChildren returns a copy of c whose Children is children.
// The receiver is left untouched.
func (c Component) WithChildren(children []string) Component {
	c.Children = children
	return c
}
