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
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Evaluation is the combined output of all rules.
type Evaluation struct {
	// Patterns from every rule, stable-sorted by confidence descending.
	// Ties keep registration order, then the rule's own order.
	Patterns []model.Pattern

	// Diagnostics holds one rule_failure entry per failed rule.
	Diagnostics []model.Diagnostic
}

// ruleOutcome is the result slot written by exactly one rule goroutine.
type ruleOutcome struct {
	patterns []model.Pattern
	err      error
	duration time.Duration
}

// Evaluate runs every registered rule against in.
//
// Description:
//
//	Each rule runs in its own goroutine and writes only its own result
//	slot, so no locking is needed. A rule that returns an error or panics
//	contributes no patterns and one diagnostic. After all rules finish,
//	confidences are clamped to [0, 1] and the concatenated patterns are
//	stable-sorted by confidence descending.
//
// Inputs:
//
//	ctx - Context for cancellation, passed to every rule.
//	in - Read-only input shared by all rules.
//
// Outputs:
//
//	*Evaluation - Patterns and diagnostics. Never nil on success.
//	error - Non-nil only when ctx is cancelled.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Evaluate(ctx context.Context, in Input) (*Evaluation, error) {
	ctx, span := startEvaluateSpan(ctx, len(r.rules), len(in.Components))
	defer span.End()

	outcomes := make([]ruleOutcome, len(r.rules))

	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range r.rules {
		g.Go(func() error {
			outcomes[i] = runRule(gctx, rule, in)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		setEvaluateSpanError(span, err)
		return nil, fmt.Errorf("rule evaluation: %w", err)
	}

	eval := &Evaluation{
		Patterns:    make([]model.Pattern, 0),
		Diagnostics: make([]model.Diagnostic, 0),
	}
	for i, rule := range r.rules {
		out := outcomes[i]
		recordRuleMetrics(rule.Name, out.duration, len(out.patterns), out.err)

		if out.err != nil {
			slog.Warn("rule failed",
				slog.String("rule", rule.Name),
				slog.String("error", out.err.Error()),
			)
			eval.Diagnostics = append(eval.Diagnostics, model.Diagnostic{
				Severity: model.SeverityError,
				Code:     model.CodeRuleFailure,
				Message:  fmt.Sprintf("rule %s: %v", rule.Name, out.err),
			})
			continue
		}

		for _, p := range out.patterns {
			eval.Patterns = append(eval.Patterns, normalizePattern(p, rule))
		}
	}

	sort.SliceStable(eval.Patterns, func(i, j int) bool {
		return eval.Patterns[i].Confidence > eval.Patterns[j].Confidence
	})

	setEvaluateSpanResult(span, len(eval.Patterns), len(eval.Diagnostics))
	return eval, nil
}

// runRule executes one rule, converting errors and panics into the outcome.
func runRule(ctx context.Context, rule Rule, in Input) (out ruleOutcome) {
	start := time.Now()
	defer func() {
		out.duration = time.Since(start)
		if rec := recover(); rec != nil {
			slog.Error("panic in rule",
				slog.String("rule", rule.Name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			out.patterns = nil
			out.err = fmt.Errorf("%w: panic: %v", ErrRuleFailed, rec)
		}
	}()

	patterns, err := rule.Evaluate(ctx, in)
	if err != nil {
		return ruleOutcome{err: fmt.Errorf("%w: %w", ErrRuleFailed, err)}
	}
	return ruleOutcome{patterns: patterns}
}

// normalizePattern clamps confidence and fills defaults from the rule.
func normalizePattern(p model.Pattern, rule Rule) model.Pattern {
	p.Confidence = model.ClampConfidence(p.Confidence)
	if p.Name == "" {
		p.Name = rule.Name
	}
	if p.Kind == "" {
		p.Kind = rule.Kind
	}
	if p.ComponentIDs == nil {
		p.ComponentIDs = make([]string, 0)
	}
	if p.Suggestions == nil {
		p.Suggestions = make([]string, 0)
	}
	return p
}
