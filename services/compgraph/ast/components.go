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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// extractComponents recognizes components among the top-level statements
// of root, in document order.
//
// Description:
//
//	Each statement is tried against three rules and the first match wins:
//	  1. named function declaration whose body renders markup (function)
//	  2. variable bound to a closure, optionally wrapped in memo/forwardRef,
//	     whose body renders markup (closure)
//	  3. class whose heritage is a known component base (class)
//	Export wrappers are looked through. A later declaration reusing an
//	earlier component name in the same file is ignored so IDs stay unique.
//	Components exported by a separate statement (`export default X;`,
//	`export { X }`) are marked after all declarations are seen.
func (w *fileWalker) extractComponents(ctx context.Context, root *sitter.Node) []model.Component {
	components := make([]model.Component, 0)
	seen := make(map[string]bool)
	var exports []exportName

	for i := 0; i < int(root.NamedChildCount()); i++ {
		if ctx.Err() != nil {
			return components
		}

		stmt := root.NamedChild(i)
		decl, exported := unwrapExport(stmt)
		if decl == nil {
			if exported {
				exports = append(exports, w.exportedNames(stmt)...)
			}
			continue
		}
		isDefault := exported && hasAnonymousChild(stmt, "default")

		for _, c := range w.recognizeStatement(decl, exported) {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			c.DefaultExport = isDefault
			components = append(components, c)
		}
	}

	for _, e := range exports {
		for i := range components {
			if components[i].Name != e.local {
				continue
			}
			components[i].Exported = true
			if e.isDefault {
				components[i].DefaultExport = true
			}
		}
	}
	return components
}

// exportName is a local binding exported by a statement without a
// declaration.
type exportName struct {
	local     string
	isDefault bool
}

// exportedNames reads `export default X;`, `export default memo(X);` and
// `export { X, Y as default }`. Re-exports from another module are ignored.
func (w *fileWalker) exportedNames(stmt *sitter.Node) []exportName {
	if stmt.ChildByFieldName("source") != nil {
		return nil
	}

	if value := stmt.ChildByFieldName("value"); value != nil {
		if name := w.exportedIdentifier(value); name != "" {
			return []exportName{{local: name, isDefault: true}}
		}
		return nil
	}

	clause := firstChildOfType(stmt, nodeExportClause)
	if clause == nil {
		return nil
	}
	var out []exportName
	for _, spec := range namedChildren(clause) {
		if spec.Type() != nodeExportSpecifier {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		alias := ""
		if aliasNode := spec.ChildByFieldName("alias"); aliasNode != nil {
			alias = w.text(aliasNode)
		}
		out = append(out, exportName{local: w.text(nameNode), isDefault: alias == "default"})
	}
	return out
}

// exportedIdentifier returns the identifier of an export default value,
// looking through configured wrapper calls.
func (w *fileWalker) exportedIdentifier(value *sitter.Node) string {
	for depth := 0; value != nil && depth < 4; depth++ {
		value = unwrapParens(value)
		switch value.Type() {
		case nodeIdentifier:
			return w.text(value)
		case nodeCallExpression:
			callee := value.ChildByFieldName("function")
			if callee == nil || !w.p.matcher.IsClosureWrapper(w.text(callee)) {
				return ""
			}
			args := nonCommentChildren(value.ChildByFieldName("arguments"))
			if len(args) == 0 {
				return ""
			}
			value = args[0]
		default:
			return ""
		}
	}
	return ""
}

// unwrapExport returns the declaration inside an export statement.
func unwrapExport(stmt *sitter.Node) (*sitter.Node, bool) {
	if stmt == nil {
		return nil, false
	}
	if stmt.Type() != nodeExportStatement {
		return stmt, false
	}
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		return decl, true
	}
	return nil, true
}

func (w *fileWalker) recognizeStatement(decl *sitter.Node, exported bool) []model.Component {
	switch decl.Type() {
	case nodeFunctionDeclaration, nodeGeneratorFunction:
		if c, ok := w.recognizeFunction(decl, exported); ok {
			return []model.Component{c}
		}
	case nodeLexicalDeclaration, nodeVariableDeclaration:
		var out []model.Component
		for _, d := range namedChildren(decl) {
			if d.Type() != nodeVariableDeclarator {
				continue
			}
			if c, ok := w.recognizeDeclarator(d, exported); ok {
				out = append(out, c)
			}
		}
		return out
	case nodeClassDeclaration, nodeAbstractClass:
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil {
			return nil
		}
		if c, ok := w.recognizeClass(decl, w.text(nameNode), decl, exported); ok {
			return []model.Component{c}
		}
	}
	return nil
}

// recognizeFunction handles `function Name(props) { ... }`.
func (w *fileWalker) recognizeFunction(fn *sitter.Node, exported bool) (model.Component, bool) {
	nameNode := fn.ChildByFieldName("name")
	body := fn.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return model.Component{}, false
	}
	if !w.containsMarkup(body) {
		return model.Component{}, false
	}

	name := w.text(nameNode)
	props := w.propsFromParameters(fn.ChildByFieldName("parameters"))
	return w.buildComponent(name, model.ComponentKindFunction, exported, props, body, fn), true
}

// recognizeDeclarator handles `const Name = (props) => ...`, including
// closures wrapped in configured wrapper calls and class expressions.
func (w *fileWalker) recognizeDeclarator(d *sitter.Node, exported bool) (model.Component, bool) {
	nameNode := d.ChildByFieldName("name")
	value := unwrapParens(d.ChildByFieldName("value"))
	if nameNode == nil || nameNode.Type() != nodeIdentifier || value == nil {
		return model.Component{}, false
	}
	name := w.text(nameNode)

	if value.Type() == nodeClass {
		return w.recognizeClass(value, name, d, exported)
	}

	closure := w.unwrapClosure(value)
	if closure == nil {
		return model.Component{}, false
	}

	body := closure.ChildByFieldName("body")
	if body == nil || !w.containsMarkup(body) {
		return model.Component{}, false
	}

	props := w.propsFromParameters(closure.ChildByFieldName("parameters"))
	if len(props) == 0 {
		props = w.propsFromFunctionComponentType(d.ChildByFieldName("type"))
	}

	return w.buildComponent(name, model.ComponentKindClosure, exported, props, body, d), true
}

// unwrapClosure returns the function literal bound by value, looking
// through wrapper calls such as memo(...) and forwardRef(...).
func (w *fileWalker) unwrapClosure(value *sitter.Node) *sitter.Node {
	for depth := 0; value != nil && depth < 4; depth++ {
		value = unwrapParens(value)
		if isFunctionLiteral(value) {
			return value
		}
		if value.Type() != nodeCallExpression {
			return nil
		}
		callee := value.ChildByFieldName("function")
		if callee == nil || !w.p.matcher.IsClosureWrapper(w.text(callee)) {
			return nil
		}
		args := nonCommentChildren(value.ChildByFieldName("arguments"))
		if len(args) == 0 {
			return nil
		}
		value = args[0]
	}
	return nil
}

// recognizeClass handles `class Name extends React.Component<Props> {}`.
// The markup test does not apply; heritage alone decides.
func (w *fileWalker) recognizeClass(class *sitter.Node, name string, spanNode *sitter.Node, exported bool) (model.Component, bool) {
	heritage, typeArgs := w.classHeritage(class)
	if heritage == "" || !w.p.matcher.IsComponentBase(heritage) {
		return model.Component{}, false
	}

	var props []model.PropSpec
	if typeArgs != nil {
		if args := nonCommentChildren(typeArgs); len(args) > 0 {
			props = w.propsFromType(args[0], nil, 0)
		}
	}

	body := class.ChildByFieldName("body")
	return w.buildComponent(name, model.ComponentKindClass, exported, props, body, spanNode), true
}

// classHeritage returns the extended base expression and its type
// arguments. Handles both the TypeScript shape
// (class_heritage > extends_clause > value, type_arguments) and the
// JavaScript shape (class_heritage > expression).
func (w *fileWalker) classHeritage(class *sitter.Node) (string, *sitter.Node) {
	heritage := firstChildOfType(class, nodeClassHeritage)
	if heritage == nil {
		return "", nil
	}

	if ext := firstChildOfType(heritage, nodeExtendsClause); ext != nil {
		value := ext.ChildByFieldName("value")
		typeArgs := ext.ChildByFieldName("type_arguments")
		if typeArgs == nil {
			typeArgs = firstChildOfType(ext, nodeTypeArguments)
		}
		if value == nil {
			for _, c := range namedChildren(ext) {
				if c.Type() != nodeTypeArguments {
					value = c
					break
				}
			}
		}
		return strings.TrimSpace(w.text(value)), typeArgs
	}

	for _, c := range namedChildren(heritage) {
		switch c.Type() {
		case nodeIdentifier, nodeMemberExpression:
			return strings.TrimSpace(w.text(c)), nil
		}
	}
	return "", nil
}

// buildComponent assembles the Component record for a recognized body.
func (w *fileWalker) buildComponent(name string, kind model.ComponentKind, exported bool, props []model.PropSpec, body, spanNode *sitter.Node) model.Component {
	if props == nil {
		props = make([]model.PropSpec, 0)
	}

	hooks := make([]model.StateHook, 0)
	var elements []model.ElementRef
	if body != nil {
		hooks = append(hooks, w.extractHooks(body)...)
		elements = w.extractElements(body)
	}

	return model.Component{
		ID:               model.ComponentID(w.fileID, name),
		Name:             name,
		File:             w.fileID,
		Kind:             kind,
		Exported:         exported,
		Props:            props,
		Hooks:            hooks,
		Elements:         elements,
		ProvidedContexts: providedContexts(elements),
		Span:             w.span(spanNode),
	}
}

// nonCommentChildren returns named children of n other than comments.
func nonCommentChildren(n *sitter.Node) []*sitter.Node {
	all := namedChildren(n)
	out := all[:0]
	for _, c := range all {
		if c.Type() != nodeComment {
			out = append(out, c)
		}
	}
	return out
}
