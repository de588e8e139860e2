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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// maxTypeResolveDepth bounds alias chains such as `type A = B; type B = {...}`.
const maxTypeResolveDepth = 8

// collectTypeDeclarations indexes top-level interfaces and type aliases so
// that `props: Props` can be resolved to the declared members.
func (w *fileWalker) collectTypeDeclarations(root *sitter.Node) {
	for _, stmt := range namedChildren(root) {
		decl, _ := unwrapExport(stmt)
		if decl == nil {
			continue
		}

		var name, target *sitter.Node
		switch decl.Type() {
		case nodeInterfaceDecl:
			name = decl.ChildByFieldName("name")
			target = decl
		case nodeTypeAliasDecl:
			name = decl.ChildByFieldName("name")
			target = decl.ChildByFieldName("value")
		default:
			continue
		}

		if name == nil || target == nil {
			continue
		}
		key := w.text(name)
		if _, dup := w.typeDecls[key]; !dup {
			w.typeDecls[key] = target
		}
	}
}

// propsFromParameters extracts declared props from the first parameter.
//
// Description:
//
//	Props are only taken from a type annotation on the first parameter.
//	An unannotated parameter yields no props, even when destructured.
//	Destructuring defaults on the parameter are attached to matching props.
//
// Inputs:
//
//	params - The formal_parameters node. May be nil.
//
// Outputs:
//
//	[]model.PropSpec - Props in declaration order. Nil when none.
func (w *fileWalker) propsFromParameters(params *sitter.Node) []model.PropSpec {
	if params == nil || params.Type() != nodeFormalParameters {
		return nil
	}
	args := nonCommentChildren(params)
	if len(args) == 0 {
		return nil
	}

	first := args[0]
	switch first.Type() {
	case nodeRequiredParameter, nodeOptionalParameter:
	default:
		return nil
	}

	typeNode := first.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	if typeNode.Type() == nodeTypeAnnotation {
		typeNode = typeNode.NamedChild(0)
	}

	defaults := w.destructuringDefaults(first.ChildByFieldName("pattern"))
	return w.propsFromType(typeNode, defaults, 0)
}

// propsFromFunctionComponentType handles `const X: React.FC<Props> = ...`.
func (w *fileWalker) propsFromFunctionComponentType(annotation *sitter.Node) []model.PropSpec {
	if annotation == nil {
		return nil
	}
	t := annotation
	if t.Type() == nodeTypeAnnotation {
		t = t.NamedChild(0)
	}
	if t == nil || t.Type() != nodeGenericType {
		return nil
	}

	name := t.ChildByFieldName("name")
	if name == nil {
		name = t.NamedChild(0)
	}
	if name == nil || !w.p.matcher.IsFunctionComponentType(w.text(name)) {
		return nil
	}

	typeArgs := t.ChildByFieldName("type_arguments")
	if typeArgs == nil {
		typeArgs = firstChildOfType(t, nodeTypeArguments)
	}
	args := nonCommentChildren(typeArgs)
	if len(args) == 0 {
		return nil
	}
	return w.propsFromType(args[0], nil, 0)
}

// propsFromType resolves a type node to its members.
//
// Object literal types are read directly. Type names resolve through the
// same-file declarations. Intersections merge both sides, first occurrence
// of a name wins. Interfaces merge their own members with those of the
// same-file interfaces they extend; own members win. Generic wrappers
// without a local declaration (for example PropsWithChildren<P>) resolve
// through their first type argument.
func (w *fileWalker) propsFromType(t *sitter.Node, defaults map[string]string, depth int) []model.PropSpec {
	if t == nil || depth > maxTypeResolveDepth {
		return nil
	}

	switch t.Type() {
	case nodeObjectType, nodeInterfaceBody:
		return w.propsFromObjectType(t, defaults)

	case nodeInterfaceDecl:
		parts := []*sitter.Node{t.ChildByFieldName("body")}
		if ext := firstChildOfType(t, nodeExtendsTypeClause); ext != nil {
			parts = append(parts, nonCommentChildren(ext)...)
		}
		return w.mergeProps(parts, defaults, depth)

	case nodeTypeIdentifier:
		if decl, ok := w.typeDecls[w.text(t)]; ok {
			return w.propsFromType(decl, defaults, depth+1)
		}
		return nil

	case nodeGenericType:
		name := t.ChildByFieldName("name")
		if name == nil {
			name = t.NamedChild(0)
		}
		if name != nil {
			if decl, ok := w.typeDecls[w.text(name)]; ok {
				return w.propsFromType(decl, defaults, depth+1)
			}
		}
		typeArgs := t.ChildByFieldName("type_arguments")
		if typeArgs == nil {
			typeArgs = firstChildOfType(t, nodeTypeArguments)
		}
		if args := nonCommentChildren(typeArgs); len(args) > 0 {
			return w.propsFromType(args[0], defaults, depth+1)
		}
		return nil

	case nodeIntersectionType:
		return w.mergeProps(nonCommentChildren(t), defaults, depth)

	case nodeParenthesizedType:
		return w.propsFromType(t.NamedChild(0), defaults, depth+1)
	}

	return nil
}

// mergeProps concatenates the props of parts; the first occurrence of a
// name wins.
func (w *fileWalker) mergeProps(parts []*sitter.Node, defaults map[string]string, depth int) []model.PropSpec {
	var merged []model.PropSpec
	seen := make(map[string]bool)
	for _, part := range parts {
		for _, p := range w.propsFromType(part, defaults, depth+1) {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			merged = append(merged, p)
		}
	}
	return merged
}

// propsFromObjectType reads property and method signatures.
func (w *fileWalker) propsFromObjectType(obj *sitter.Node, defaults map[string]string) []model.PropSpec {
	props := make([]model.PropSpec, 0)
	for _, member := range nonCommentChildren(obj) {
		switch member.Type() {
		case nodePropertySignature:
			name := member.ChildByFieldName("name")
			if name == nil {
				continue
			}
			props = append(props, w.newPropSpec(
				w.propertyName(name),
				w.annotationType(member.ChildByFieldName("type")),
				!hasAnonymousChild(member, "?"),
				defaults,
			))

		case nodeMethodSignature:
			name := member.ChildByFieldName("name")
			if name == nil {
				continue
			}
			signature := strings.TrimSpace(string(w.content[name.EndByte():member.EndByte()]))
			signature = strings.TrimPrefix(signature, "?")
			props = append(props, w.newPropSpec(
				w.propertyName(name),
				strings.TrimSpace(signature),
				!hasAnonymousChild(member, "?"),
				defaults,
			))
		}
	}
	return props
}

func (w *fileWalker) newPropSpec(name, typ string, required bool, defaults map[string]string) model.PropSpec {
	spec := model.PropSpec{Name: name, Type: typ, Required: required}
	if def, ok := defaults[name]; ok {
		d := def
		spec.Default = &d
	}
	return spec
}

// propertyName strips quotes from string property keys.
func (w *fileWalker) propertyName(n *sitter.Node) string {
	return strings.Trim(w.text(n), `"'`)
}

// destructuringDefaults maps prop names to default value text for
// `{ size = "md", label: text = "" }` style parameters.
func (w *fileWalker) destructuringDefaults(pattern *sitter.Node) map[string]string {
	if pattern == nil || pattern.Type() != nodeObjectPattern {
		return nil
	}

	defaults := make(map[string]string)
	for _, child := range nonCommentChildren(pattern) {
		switch child.Type() {
		case nodeObjectAssignmentPattern:
			left := child.ChildByFieldName("left")
			right := child.ChildByFieldName("right")
			if left != nil && right != nil {
				defaults[w.text(left)] = w.text(right)
			}
		case nodePairPattern:
			key := child.ChildByFieldName("key")
			value := child.ChildByFieldName("value")
			if key == nil || value == nil || value.Type() != nodeAssignmentPattern {
				continue
			}
			if right := value.ChildByFieldName("right"); right != nil {
				defaults[w.propertyName(key)] = w.text(right)
			}
		}
	}
	return defaults
}
