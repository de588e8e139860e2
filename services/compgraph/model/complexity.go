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

import "math"

// Complexity weights. Changing any of these changes rule output.
const (
	complexityBase          = 1.0
	complexityPerProp       = 0.5
	complexityPerHook       = 1.0
	complexityPerEffectHook = 2.0
	complexityPerCustomHook = 1.5
	complexityPerChild      = 0.3
)

// Complexity returns the unrounded complexity score of c.
//
// Description:
//
//	1 + 0.5*props + hooks + 2*effect hooks + 1.5*custom hooks + 0.3*children.
//	Effect and custom hooks are counted once in the hook total and again
//	in their own term.
//
// Thread Safety: Pure function.
func Complexity(c *Component) float64 {
	return complexityBase +
		complexityPerProp*float64(len(c.Props)) +
		complexityPerHook*float64(len(c.Hooks)) +
		complexityPerEffectHook*float64(c.HookCount(HookKindEffect)) +
		complexityPerCustomHook*float64(c.HookCount(HookKindCustom)) +
		complexityPerChild*float64(len(c.Children))
}

// RoundedComplexity rounds Complexity half away from zero.
func RoundedComplexity(c *Component) int {
	return int(math.Round(Complexity(c)))
}
