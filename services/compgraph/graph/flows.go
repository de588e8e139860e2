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
	"sort"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// sortEdges orders edges and containment records by (parent, child).
func sortEdges(state *buildState) {
	sort.Slice(state.edges, func(i, j int) bool {
		a, b := state.edges[i], state.edges[j]
		if a.parent != b.parent {
			return a.parent < b.parent
		}
		return a.child < b.child
	})
	c := state.flows.Containment
	sort.Slice(c, func(i, j int) bool {
		if c[i].Parent != c[j].Parent {
			return c[i].Parent < c[j].Parent
		}
		return c[i].Child < c[j].Child
	})
}

// flowsPhase derives every flow kind from the resolved edges.
func (b *Builder) flowsPhase(state *buildState) {
	b.derivePropFlows(state)
	b.deriveStateFlows(state)
	b.deriveContextFlows(state)
	b.deriveEventFlows(state)
}

func (s *buildState) component(id string) *model.Component {
	return &s.components[s.byID[id]]
}

// derivePropFlows emits structural records for every declared prop of a
// child on each edge, followed by heuristic records for attributes the
// parent passes that the child does not declare.
func (b *Builder) derivePropFlows(state *buildState) {
	flows := make([]model.PropFlow, 0)

	for _, e := range state.edges {
		child := state.component(e.child)

		for _, p := range child.Props {
			flows = append(flows, model.PropFlow{
				From:       e.parent,
				To:         e.child,
				PropName:   p.Name,
				PropType:   p.Type,
				Required:   p.Required,
				Derivation: model.DerivationStructural,
			})
			state.result.Stats.StructuralPropFlows++
		}

		passed := make(map[string]bool)
		for _, el := range state.sites[e] {
			for _, attr := range el.Attributes {
				if _, declared := child.Prop(attr.Name); declared {
					continue
				}
				if b.matcher.IsEventAttribute(attr.Name) || b.matcher.IsIgnoredAttribute(attr.Name) {
					continue
				}
				passed[attr.Name] = true
			}
		}
		for _, name := range sortedKeys(passed) {
			flows = append(flows, model.PropFlow{
				From:       e.parent,
				To:         e.child,
				PropName:   name,
				Required:   false,
				Derivation: model.DerivationHeuristic,
			})
			state.result.Stats.HeuristicPropFlows++
		}
	}

	state.flows.Props = flows
}

// deriveStateFlows emits one record per state or reducer hook.
//
// Description:
//
//	Readers are the owner (its own render) plus every child handed the
//	state binding as an identifier attribute. Writers are the owner when
//	a setter exists, every child handed the setter, and every child
//	handed a handler whose name mentions the state.
func (b *Builder) deriveStateFlows(state *buildState) {
	flows := make([]model.StateFlow, 0)

	childEdges := make(map[string][]edgeKey)
	for _, e := range state.edges {
		childEdges[e.parent] = append(childEdges[e.parent], e)
	}

	for i := range state.components {
		owner := &state.components[i]
		for _, hook := range owner.Hooks {
			if !hook.Kind.IsStateful() {
				continue
			}

			setter := hook.Setter
			if setter == "" && hook.Kind == model.HookKindState {
				setter = b.matcher.SetterFor(hook.Binding)
			}

			readers := map[string]bool{owner.ID: true}
			writers := make(map[string]bool)
			if setter != "" {
				writers[owner.ID] = true
			}

			for _, e := range childEdges[owner.ID] {
				for _, el := range state.sites[e] {
					for _, attr := range el.Attributes {
						if !attr.Identifier {
							continue
						}
						switch {
						case hook.Binding != "" && attr.Value == hook.Binding:
							readers[e.child] = true
						case setter != "" && attr.Value == setter:
							writers[e.child] = true
						case b.matcher.IsHandlerFor(attr.Value, hook.Binding):
							writers[e.child] = true
						}
					}
				}
			}

			flows = append(flows, model.StateFlow{
				Owner:     owner.ID,
				HookName:  hook.Name,
				StateName: hook.Binding,
				Readers:   sortedKeys(readers),
				Writers:   sortedKeys(writers),
			})
		}
	}

	state.flows.State = flows
	state.result.Stats.StateFlows = len(flows)
}

// deriveContextFlows groups context hooks by derived context name and
// links each group to its provider. Groups without a provider are dropped
// and counted; the hook facts stay on the consumers.
func (b *Builder) deriveContextFlows(state *buildState) {
	consumers := make(map[string]map[string]bool)
	for i := range state.components {
		c := &state.components[i]
		for _, hook := range c.Hooks {
			if hook.Kind != model.HookKindContext {
				continue
			}
			name := b.matcher.ContextName(hook)
			if name == "" {
				continue
			}
			if consumers[name] == nil {
				consumers[name] = make(map[string]bool)
			}
			consumers[name][c.ID] = true
		}
	}

	flows := make([]model.ContextFlow, 0)
	for _, name := range sortedKeys(consumers) {
		provider := ""
		for i := range state.components {
			if b.matcher.ProvidesContext(name, &state.components[i]) {
				provider = state.components[i].ID
				break
			}
		}
		if provider == "" {
			state.result.Stats.UnresolvedContexts++
			continue
		}
		flows = append(flows, model.ContextFlow{
			ContextName: name,
			ProviderID:  provider,
			ConsumerIDs: sortedKeys(consumers[name]),
		})
	}

	state.flows.Context = flows
	state.result.Stats.ContextFlows = len(flows)
}

// eventKey groups event flows by source and event type.
type eventKey struct {
	source string
	event  string
}

// deriveEventFlows links event attributes to their handling component.
// On a child component the child is the source and the parent handles;
// on an intrinsic element the rendering component is both.
func (b *Builder) deriveEventFlows(state *buildState) {
	handlers := make(map[eventKey]map[string]bool)
	add := func(source, event, handler string) {
		k := eventKey{source: source, event: event}
		if handlers[k] == nil {
			handlers[k] = make(map[string]bool)
		}
		handlers[k][handler] = true
	}

	for _, e := range state.edges {
		for _, el := range state.sites[e] {
			for _, attr := range el.Attributes {
				if b.matcher.IsEventAttribute(attr.Name) {
					add(e.child, attr.Name, e.parent)
				}
			}
		}
	}

	for i := range state.components {
		c := &state.components[i]
		for _, el := range c.Elements {
			if !el.Intrinsic {
				continue
			}
			for _, attr := range el.Attributes {
				if b.matcher.IsEventAttribute(attr.Name) {
					add(c.ID, attr.Name, c.ID)
				}
			}
		}
	}

	keys := make([]eventKey, 0, len(handlers))
	for k := range handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].event < keys[j].event
	})

	flows := make([]model.EventFlow, 0, len(keys))
	for _, k := range keys {
		flows = append(flows, model.EventFlow{
			Source:     k.source,
			EventType:  k.event,
			HandlerIDs: sortedKeys(handlers[k]),
		})
	}

	state.flows.Events = flows
	state.result.Stats.EventFlows = len(flows)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
