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
	"path"
	"strings"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// resolution is the outcome of resolving one element name.
type resolution int

const (
	resolved resolution = iota
	unresolved
	ambiguous
)

// containmentPhase resolves every non-intrinsic element to a component.
//
// Description:
//
//	Parents are visited in ID order and elements in document order. The
//	first element instance of a (parent, child) pair fixes the edge span;
//	later instances only contribute their attributes to flow derivation.
//	A component rendering itself yields a valid self edge.
func (b *Builder) containmentPhase(state *buildState) {
	for pi := range state.components {
		parent := &state.components[pi]
		for _, el := range parent.Elements {
			if el.Intrinsic {
				continue
			}

			childIdx, outcome := state.resolveElement(parent, el.Name)
			switch outcome {
			case unresolved:
				state.result.Stats.UnresolvedReferences++
				continue
			case ambiguous:
				state.result.Stats.AmbiguousReferences++
				continue
			}

			child := &state.components[childIdx]
			key := edgeKey{parent: parent.ID, child: child.ID}
			if _, seen := state.sites[key]; !seen {
				state.edges = append(state.edges, key)
				state.flows.Containment = append(state.flows.Containment, model.ContainmentEdge{
					Parent: parent.ID,
					Child:  child.ID,
					Span:   el.Span,
				})
			}
			state.sites[key] = append(state.sites[key], el)
		}
	}

	// Parents were visited in ID order; children follow document order.
	sortEdges(state)
	state.result.Stats.ContainmentEdges = len(state.edges)
}

// resolveElement maps an element name rendered by parent to a component.
//
// Resolution order:
//
//  1. A component with that name in the parent's file.
//  2. An import binding in the parent's file. The name resolves only to a
//     component of the file matching the import module; a binding whose
//     module matches nothing in the project, such as a package import,
//     leaves the name unresolved. Namespace imports resolve `ns.Name`.
//  3. For names without an import binding, the only component with that
//     name in the project.
func (s *buildState) resolveElement(parent *model.Component, name string) (int, resolution) {
	head, member, isMember := strings.Cut(name, ".")

	if !isMember {
		for _, idx := range s.byName[name] {
			if s.components[idx].File == parent.File {
				return idx, resolved
			}
		}
	}

	if binding, ok := s.importsByFile[parent.File][head]; ok {
		switch {
		case isMember && binding.ImportedName == "*":
			return s.resolveImported(parent.File, binding.Module, member, false)
		case isMember:
			return -1, unresolved
		case binding.ImportedName == "default":
			return s.resolveImported(parent.File, binding.Module, name, true)
		default:
			return s.resolveImported(parent.File, binding.Module, binding.ImportedName, false)
		}
	}

	if isMember {
		return -1, unresolved
	}

	candidates := s.byName[name]
	switch len(candidates) {
	case 0:
		return -1, unresolved
	case 1:
		return candidates[0], resolved
	default:
		return -1, ambiguous
	}
}

// resolveImported picks the component bound by an import of module.
//
// Description:
//
//	A named import matches the component named target in a file matching
//	module. A default import tries, in order: the file's default-exported
//	component, a component named like the local binding, the sole exported
//	component, and the sole component of the file.
func (s *buildState) resolveImported(importer, module, target string, isDefault bool) (int, resolution) {
	var inModule []int
	for i := range s.components {
		if matchesImportPath(s.components[i].File, module, importer) {
			inModule = append(inModule, i)
		}
	}
	if len(inModule) == 0 {
		return -1, unresolved
	}

	pick := func(keep func(c *model.Component) bool) []int {
		var out []int
		for _, i := range inModule {
			if keep(&s.components[i]) {
				out = append(out, i)
			}
		}
		return out
	}

	byTarget := func(c *model.Component) bool { return c.Name == target }
	if !isDefault {
		return single(pick(byTarget))
	}

	for _, keep := range []func(c *model.Component) bool{
		func(c *model.Component) bool { return c.DefaultExport },
		byTarget,
		func(c *model.Component) bool { return c.Exported },
		func(*model.Component) bool { return true },
	} {
		if matches := pick(keep); len(matches) > 0 {
			return single(matches)
		}
	}
	return -1, unresolved
}

func single(matches []int) (int, resolution) {
	switch len(matches) {
	case 0:
		return -1, unresolved
	case 1:
		return matches[0], resolved
	default:
		return -1, ambiguous
	}
}

// sourceExtensions are stripped from file IDs before path comparison.
var sourceExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mts", ".cts", ".mjs", ".cjs"}

// matchesImportPath checks if a file ID corresponds to an import module path.
//
// Description:
//
//	Relative modules ("./Button", "../ui/Button") are joined onto the
//	importer's directory. Bare and aliased modules ("@/ui/Button",
//	"ui/Button") match when the file path ends with the module path at a
//	path boundary, so "my_ui/Button" does not match "ui/Button".
//	"dir/index" files match imports of "dir".
//
// Thread Safety: This function is safe for concurrent use.
func matchesImportPath(fileID, module, importer string) bool {
	if module == "" {
		return false
	}

	normalized := stripSourceExtension(path.Clean(fileID))
	normalized = strings.TrimPrefix(normalized, "./")
	withoutIndex := strings.TrimSuffix(normalized, "/index")

	var fragment string
	if strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") {
		fragment = path.Join(path.Dir(importer), module)
		fragment = stripSourceExtension(strings.TrimPrefix(fragment, "./"))
		return normalized == fragment || withoutIndex == fragment
	}

	fragment = module
	for _, alias := range []string{"@/", "~/"} {
		fragment = strings.TrimPrefix(fragment, alias)
	}
	fragment = stripSourceExtension(fragment)

	for _, candidate := range []string{normalized, withoutIndex} {
		if candidate == fragment || strings.HasSuffix(candidate, "/"+fragment) {
			return true
		}
	}
	return false
}

func stripSourceExtension(p string) string {
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}
