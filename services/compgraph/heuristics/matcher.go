// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package heuristics holds every name-matching decision the engine makes.
//
// The parser, the assembler and the rules never compare names directly;
// they ask a Matcher. NameMatcher is the table-driven implementation built
// from config.EngineConfig, so thresholds and vocabularies change without
// touching extraction or assembly code.
package heuristics

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/compgraph/services/compgraph/config"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Matcher answers naming questions for the parser, assembler and rules.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Matcher interface {
	// HookKind classifies callee. ok is false when callee is not a hook.
	HookKind(callee string) (kind model.HookKind, ok bool)

	// IsComponentBase reports whether a class heritage name marks a component.
	IsComponentBase(heritage string) bool

	// IsClosureWrapper reports whether callee wraps a component closure.
	IsClosureWrapper(callee string) bool

	// IsFunctionComponentType reports whether a type name (without type
	// arguments) declares a function component.
	IsFunctionComponentType(typeName string) bool

	// ContextName derives the context name a hook consumes.
	ContextName(hook model.StateHook) string

	// IsProvider reports whether a component name carries the provider marker.
	IsProvider(componentName string) bool

	// ProvidesContext reports whether a provider component serves contextName.
	ProvidesContext(contextName string, provider *model.Component) bool

	// SetterFor returns the conventional setter name of a state binding.
	SetterFor(stateName string) string

	// IsHandlerFor reports whether identifier looks like an event handler
	// that writes stateName.
	IsHandlerFor(identifier, stateName string) bool

	// IsEventAttribute reports whether a JSX attribute name is an event.
	IsEventAttribute(name string) bool

	// IsIgnoredAttribute reports attributes that never carry props.
	IsIgnoredAttribute(name string) bool

	// IsRenderProp reports whether a prop looks like a render function or
	// node content.
	IsRenderProp(prop model.PropSpec) bool
}

// NameMatcher is the table-driven Matcher.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type NameMatcher struct {
	hookPrefix string
	hookKinds  map[string]model.HookKind

	componentBases  map[string]struct{}
	closureWrappers map[string]struct{}
	fcTypes         map[string]struct{}

	providerMarker    string
	contextPrefixes   []string
	contextSuffixes   []string
	setterPrefix      string
	handlerPrefixes   []string
	eventPrefix       string
	renderNames       map[string]struct{}
	renderPrefixes    []string
	renderTypes       []string
	ignoredAttributes map[string]struct{}
}

// NewNameMatcher builds a NameMatcher from a loaded configuration.
//
// Inputs:
//
//	cfg - Validated engine configuration. Must not be nil.
//
// Outputs:
//
//	*NameMatcher - Ready to use, never nil.
func NewNameMatcher(cfg *config.EngineConfig) *NameMatcher {
	p := cfg.Parser
	h := cfg.Heuristics

	m := &NameMatcher{
		hookPrefix:        p.HookPrefix,
		hookKinds:         make(map[string]model.HookKind),
		componentBases:    toSet(p.ComponentBases),
		closureWrappers:   toSet(p.ClosureWrappers),
		fcTypes:           toSet(p.FunctionComponentTypes),
		providerMarker:    strings.ToLower(h.ProviderMarker),
		contextPrefixes:   h.ContextPrefixes,
		contextSuffixes:   h.ContextSuffixes,
		setterPrefix:      h.SetterPrefix,
		handlerPrefixes:   h.HandlerPrefixes,
		eventPrefix:       h.EventAttributePrefix,
		renderNames:       toSet(h.RenderPropNames),
		renderPrefixes:    h.RenderPropPrefixes,
		renderTypes:       h.RenderPropTypes,
		ignoredAttributes: toSet(h.IgnoredAttributes),
	}

	register := func(names []string, kind model.HookKind) {
		for _, n := range names {
			m.hookKinds[n] = kind
		}
	}
	register(p.StateHooks, model.HookKindState)
	register(p.ReducerHooks, model.HookKindReducer)
	register(p.EffectHooks, model.HookKindEffect)
	register(p.ContextHooks, model.HookKindContext)
	register(p.OtherHooks, model.HookKindOther)

	return m
}

// NewDefaultMatcher builds a NameMatcher from the embedded default configuration.
func NewDefaultMatcher(ctx context.Context) (*NameMatcher, error) {
	cfg, err := config.GetEngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading default matcher tables: %w", err)
	}
	return NewNameMatcher(cfg), nil
}

// HookKind implements Matcher.
//
// A callee is a hook when it equals the prefix or continues it with an
// upper-case letter or digit ("useFoo", "use2D"), so "user" and "useless"
// are not hooks.
func (m *NameMatcher) HookKind(callee string) (model.HookKind, bool) {
	if kind, ok := m.hookKinds[callee]; ok {
		return kind, true
	}
	if !strings.HasPrefix(callee, m.hookPrefix) {
		return "", false
	}
	rest := callee[len(m.hookPrefix):]
	if rest == "" {
		return model.HookKindCustom, true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	if unicode.IsUpper(r) || unicode.IsDigit(r) {
		return model.HookKindCustom, true
	}
	return "", false
}

// IsComponentBase implements Matcher.
func (m *NameMatcher) IsComponentBase(heritage string) bool {
	_, ok := m.componentBases[stripTypeArguments(heritage)]
	return ok
}

// IsClosureWrapper implements Matcher.
func (m *NameMatcher) IsClosureWrapper(callee string) bool {
	_, ok := m.closureWrappers[callee]
	return ok
}

// IsFunctionComponentType implements Matcher.
func (m *NameMatcher) IsFunctionComponentType(typeName string) bool {
	_, ok := m.fcTypes[stripTypeArguments(typeName)]
	return ok
}

// ContextName implements Matcher.
//
// The hook's argument is preferred ("ThemeContext" in useContext(ThemeContext));
// without one the hook name itself is used. One configured prefix and one
// configured suffix are removed, never the whole string.
func (m *NameMatcher) ContextName(hook model.StateHook) string {
	name := hook.Argument
	if name == "" {
		name = hook.Name
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	for _, p := range m.contextPrefixes {
		if hasWordPrefix(name, p) {
			name = name[len(p):]
			break
		}
	}
	for _, s := range m.contextSuffixes {
		if len(name) > len(s) && strings.HasSuffix(name, s) {
			name = name[:len(name)-len(s)]
			break
		}
	}
	return name
}

// IsProvider implements Matcher.
func (m *NameMatcher) IsProvider(componentName string) bool {
	return strings.Contains(strings.ToLower(componentName), m.providerMarker)
}

// ProvidesContext implements Matcher.
//
// A provider serves a context when the lower-cased context name is a
// substring of the provider's name or of a context it renders as X.Provider.
func (m *NameMatcher) ProvidesContext(contextName string, provider *model.Component) bool {
	if contextName == "" || provider == nil {
		return false
	}
	needle := strings.ToLower(contextName)
	isMarked := m.IsProvider(provider.Name) || len(provider.ProvidedContexts) > 0
	if !isMarked {
		return false
	}
	if strings.Contains(strings.ToLower(provider.Name), needle) {
		return true
	}
	for _, ctx := range provider.ProvidedContexts {
		if strings.Contains(strings.ToLower(ctx), needle) {
			return true
		}
	}
	return false
}

// SetterFor implements Matcher.
func (m *NameMatcher) SetterFor(stateName string) string {
	if stateName == "" {
		return ""
	}
	return m.setterPrefix + capitalize(stateName)
}

// IsHandlerFor implements Matcher.
func (m *NameMatcher) IsHandlerFor(identifier, stateName string) bool {
	if identifier == "" || stateName == "" {
		return false
	}
	matched := false
	for _, p := range m.handlerPrefixes {
		if hasWordPrefix(identifier, p) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	return strings.Contains(strings.ToLower(identifier), strings.ToLower(stateName))
}

// IsEventAttribute implements Matcher.
func (m *NameMatcher) IsEventAttribute(name string) bool {
	return hasWordPrefix(name, m.eventPrefix)
}

// IsIgnoredAttribute implements Matcher.
func (m *NameMatcher) IsIgnoredAttribute(name string) bool {
	_, ok := m.ignoredAttributes[name]
	return ok
}

// IsRenderProp implements Matcher.
func (m *NameMatcher) IsRenderProp(prop model.PropSpec) bool {
	if _, ok := m.renderNames[prop.Name]; ok {
		return true
	}
	for _, p := range m.renderPrefixes {
		if hasWordPrefix(prop.Name, p) {
			return true
		}
	}
	for _, t := range m.renderTypes {
		if strings.Contains(prop.Type, t) {
			return true
		}
	}
	return false
}

// hasWordPrefix reports whether s is prefix followed by an upper-case rune.
func hasWordPrefix(s, prefix string) bool {
	if len(s) <= len(prefix) || !strings.HasPrefix(s, prefix) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[len(prefix):])
	return unicode.IsUpper(r)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func stripTypeArguments(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

var _ Matcher = (*NameMatcher)(nil)
