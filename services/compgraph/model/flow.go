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

// Derivation tells whether a flow was derived from declared structure or
// from a name-matching heuristic.
type Derivation string

const (
	// DerivationStructural flows reference a prop declared on the target.
	DerivationStructural Derivation = "structural"

	// DerivationHeuristic flows come from attributes passed without a
	// matching declaration.
	DerivationHeuristic Derivation = "heuristic"
)

// ContainmentEdge records that Parent renders Child.
type ContainmentEdge struct {
	Parent string     `json:"parent"`
	Child  string     `json:"child"`
	Span   SourceSpan `json:"span"`
}

// PropFlow is one prop passed along a containment edge.
type PropFlow struct {
	From       string     `json:"from"`
	To         string     `json:"to"`
	PropName   string     `json:"prop_name"`
	PropType   string     `json:"prop_type"`
	Required   bool       `json:"required"`
	Derivation Derivation `json:"derivation"`
}

// StateFlow describes the readers and writers of one state hook.
//
// Readers and writers are approximations: the owner always reads its own
// state during render, and writers are inferred from setter and handler
// names handed to children.
type StateFlow struct {
	Owner     string   `json:"owner"`
	HookName  string   `json:"hook_name"`
	StateName string   `json:"state_name,omitempty"`
	Readers   []string `json:"readers"`
	Writers   []string `json:"writers"`
}

// ContextFlow links a context to its provider and consumers.
type ContextFlow struct {
	ContextName string   `json:"context_name"`
	ProviderID  string   `json:"provider_id,omitempty"`
	ConsumerIDs []string `json:"consumer_ids"`
}

// EventFlow links an event emitted by Source to the components handling it.
type EventFlow struct {
	Source     string   `json:"source"`
	EventType  string   `json:"event_type"`
	HandlerIDs []string `json:"handler_ids"`
}

// Flows bundles every derived relation of one run.
type Flows struct {
	Containment []ContainmentEdge `json:"containment"`
	Props       []PropFlow        `json:"props"`
	State       []StateFlow       `json:"state"`
	Context     []ContextFlow     `json:"context"`
	Events      []EventFlow       `json:"events"`
}
