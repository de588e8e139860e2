// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules scores structural patterns and anti-patterns over an
// assembled component graph.
//
// Rules are pure functions registered by name. The Registry evaluates them
// in isolation and concurrently; a failing rule becomes a diagnostic and
// never affects the output of the others.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

var (
	// ErrDuplicateRule is returned when a rule name is registered twice.
	ErrDuplicateRule = errors.New("duplicate rule")

	// ErrInvalidRule is returned for a rule without a name or function.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrRuleFailed wraps an error or panic raised by a rule.
	ErrRuleFailed = errors.New("rule failed")
)

// Input is the read-only view every rule receives.
type Input struct {
	// Components sorted by ID, with Children resolved.
	Components []model.Component

	// Flows derived by the graph builder.
	Flows model.Flows
}

// RuleFunc computes the patterns of one rule.
//
// Implementations must not retain or modify in.
type RuleFunc func(ctx context.Context, in Input) ([]model.Pattern, error)

// Rule is a named RuleFunc.
type Rule struct {
	Name     string
	Kind     model.PatternKind
	Evaluate RuleFunc
}

// Registry holds rules in registration order.
//
// Thread Safety: Register must not be called concurrently with Evaluate.
// Evaluate itself is safe for concurrent use.
type Registry struct {
	rules []Rule
	names map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register appends rule to the registry.
//
// Outputs:
//
//	error - ErrInvalidRule for an empty name or nil function,
//	        ErrDuplicateRule when the name is taken.
func (r *Registry) Register(rule Rule) error {
	if rule.Name == "" || rule.Evaluate == nil {
		return fmt.Errorf("%w: name and function are required", ErrInvalidRule)
	}
	if r.names[rule.Name] {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.Name)
	}
	r.names[rule.Name] = true
	r.rules = append(r.rules, rule)
	return nil
}

// MustRegister is Register that panics on error. Intended for package init.
func (r *Registry) MustRegister(rule Rule) {
	if err := r.Register(rule); err != nil {
		panic(err)
	}
}

// Names returns rule names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.Name
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
